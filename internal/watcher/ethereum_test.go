package watcher

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fystack/deposit-indexer/internal/cursor"
	"github.com/fystack/deposit-indexer/internal/ledger/ledgertest"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testChainID = big.NewInt(1)
	watchedETH  = common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
)

type fakeSub struct {
	errCh chan error
	once  sync.Once
}

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.errCh) }) }
func (s *fakeSub) Err() <-chan error { return s.errCh }

type fakeEthereum struct {
	mu     sync.Mutex
	head   uint64
	blocks map[uint64]*types.Block
	heads  chan<- *types.Header
	subs   int
	// failing counts remaining errors per block number
	failing map[uint64]int
}

func (f *fakeEthereum) ChainID(context.Context) (*big.Int, error) { return testChainID, nil }

func (f *fakeEthereum) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeEthereum) BlockByNumber(_ context.Context, n *big.Int) (*types.Block, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[n.Uint64()] > 0 {
		f.failing[n.Uint64()]--
		return nil, errors.New("read tcp: connection reset by peer")
	}
	if b, ok := f.blocks[n.Uint64()]; ok {
		return b, nil
	}
	return types.NewBlockWithHeader(&types.Header{Number: new(big.Int).Set(n)}), nil
}

func (f *fakeEthereum) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereumSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heads = ch
	f.subs++
	return &fakeSub{errCh: make(chan error, 1)}, nil
}

func (f *fakeEthereum) push(n uint64) {
	f.mu.Lock()
	ch := f.heads
	f.mu.Unlock()
	ch <- &types.Header{Number: new(big.Int).SetUint64(n)}
}

func signedTransfer(t *testing.T, nonce uint64, to common.Address, wei *big.Int) *types.Transaction {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return types.MustSignNewTx(key, types.LatestSignerForChainID(testChainID), &types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    wei,
		Gas:      21_000,
		GasPrice: big.NewInt(1_000_000_000),
	})
}

func blockWith(n uint64, txs ...*types.Transaction) *types.Block {
	return types.NewBlockWithHeader(&types.Header{Number: new(big.Int).SetUint64(n)}).
		WithBody(types.Body{Transactions: txs})
}

func oneAndAHalfEther() *big.Int {
	v, _ := new(big.Int).SetString("1500000000000000000", 10)
	return v
}

func TestEthereumWatcher_ProcessBlock(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	store.AddAddress(enum.ChainEthereum, strings.ToLower(watchedETH.Hex()), "user-1", 0)

	deposit := signedTransfer(t, 0, watchedETH, oneAndAHalfEther())
	other := signedTransfer(t, 1, common.HexToAddress("0x0000000000000000000000000000000000000001"), big.NewInt(5))
	zero := signedTransfer(t, 2, watchedETH, big.NewInt(0))

	client := &fakeEthereum{blocks: map[uint64]*types.Block{100: blockWith(100, deposit, other, zero)}}
	w := newEthereumWatcher(client, testDeps(enum.ChainEthereum, store, cursor.NewMemory()))

	require.NoError(t, w.ProcessBlock(ctx, newWatchList(t, store), 100))

	assert.Equal(t, 1, store.Len())
	tx, err := store.GetTransaction(ctx, deposit.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", tx.Amount.String())
	assert.Equal(t, uint64(100), tx.BlockReference)
	assert.Equal(t, strings.ToLower(watchedETH.Hex()), tx.DepositAddress)
	assert.NotEmpty(t, tx.CounterpartyAddress)
}

func TestEthereumWatcher_ProcessBlockConcurrently(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	store.AddAddress(enum.ChainEthereum, strings.ToLower(watchedETH.Hex()), "user-1", 0)

	client := &fakeEthereum{blocks: map[uint64]*types.Block{}}
	for n := uint64(200); n < 208; n++ {
		client.blocks[n] = blockWith(n, signedTransfer(t, n, watchedETH, oneAndAHalfEther()))
	}
	w := newEthereumWatcher(client, testDeps(enum.ChainEthereum, store, cursor.NewMemory()))
	wl := newWatchList(t, store)

	// the rescanner and the head loop both reach ProcessBlock before a signer exists
	var wg sync.WaitGroup
	for n := uint64(200); n < 208; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.ProcessBlock(ctx, wl, n))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, store.Len())
}

func TestEthereumWatcher_BackfillsThenFollowsHeads(t *testing.T) {
	store := ledgertest.New()
	store.AddAddress(enum.ChainEthereum, watchedETH.Hex(), "user-1", 0)
	cur := cursor.NewMemory()
	require.NoError(t, cur.Save(context.Background(), enum.ChainEthereum, 97))

	early := signedTransfer(t, 0, watchedETH, big.NewInt(10))
	late := signedTransfer(t, 1, watchedETH, oneAndAHalfEther())
	client := &fakeEthereum{
		head: 99,
		blocks: map[uint64]*types.Block{
			98:  blockWith(98, early),
			100: blockWith(100, late),
		},
	}
	w := newEthereumWatcher(client, testDeps(enum.ChainEthereum, store, cur))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, newWatchList(t, store)) }()

	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	client.push(100)
	require.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}

	h, _, _ := cur.Get(context.Background(), enum.ChainEthereum)
	assert.Equal(t, uint64(100), h)
}

func TestEthereumWatcher_BackfillIsBounded(t *testing.T) {
	store := ledgertest.New()
	deps := testDeps(enum.ChainEthereum, store, cursor.NewMemory())
	deps.Config.MaxBackfill = 3
	w := newEthereumWatcher(&fakeEthereum{}, deps)

	assert.Equal(t, uint64(11), w.backfillStart(10, 12))
	assert.Equal(t, uint64(998), w.backfillStart(10, 1000))
}

func TestEthereumWatcher_UnqueuedFailureIsRetried(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	store.AddAddress(enum.ChainEthereum, strings.ToLower(watchedETH.Hex()), "user-1", 0)
	cur := cursor.NewMemory()
	require.NoError(t, cur.Save(ctx, enum.ChainEthereum, 98))

	deposit := signedTransfer(t, 0, watchedETH, oneAndAHalfEther())
	client := &fakeEthereum{
		blocks:  map[uint64]*types.Block{99: blockWith(99, deposit)},
		failing: map[uint64]int{99: 1},
	}
	// no failure queue configured
	w := newEthereumWatcher(client, testDeps(enum.ChainEthereum, store, cur))
	wl := newWatchList(t, store)
	w.last = 98

	w.catchUp(ctx, wl, 100)
	h, _, _ := cur.Get(ctx, enum.ChainEthereum)
	assert.Equal(t, uint64(98), h, "cursor must not pass an unscanned block")
	assert.Equal(t, 0, store.Len())

	w.catchUp(ctx, wl, 101)
	h, _, _ = cur.Get(ctx, enum.ChainEthereum)
	assert.Equal(t, uint64(101), h)
	tx, err := store.GetTransaction(ctx, deposit.Hash().Hex())
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", tx.Amount.String())
}

func TestEthereumWatcher_QueuedFailureMovesOn(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	queue := newMemQueue()
	deps := testDeps(enum.ChainEthereum, store, cursor.NewMemory())
	deps.Failures = queue
	client := &fakeEthereum{failing: map[uint64]int{99: 1}}
	w := newEthereumWatcher(client, deps)
	w.last = 98

	w.catchUp(ctx, newWatchList(t, store), 100)

	assert.Equal(t, uint64(100), w.last)
	assert.Equal(t, []uint64{99}, queue.snapshot(enum.ChainEthereum))
}
