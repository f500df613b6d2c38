package tracker

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/deposit-indexer/internal/ledger/ledgertest"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureEmitter struct {
	mu       sync.Mutex
	deposits []events.DepositEvent
}

func (c *captureEmitter) EmitDeposit(_ context.Context, e events.DepositEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deposits = append(c.deposits, e)
	return nil
}
func (c *captureEmitter) EmitSweep(context.Context, events.SweepEvent) error { return nil }
func (c *captureEmitter) Close()                                            {}

func (c *captureEmitter) eventTypes() []events.EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.EventType, len(c.deposits))
	for i, e := range c.deposits {
		out[i] = e.Type
	}
	return out
}

func seed(t *testing.T, store *ledgertest.Store, chain enum.Chain, hash string, block uint64) {
	t.Helper()
	ok, err := store.InsertPending(context.Background(), &model.Transaction{
		BlockchainHash: hash,
		Chain:          chain,
		Currency:       chain.Currency(),
		Amount:         decimal.RequireFromString("1500000000000000000"),
		Status:         enum.TxStatusPending,
		BlockReference: block,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func chainDeps(chain enum.Chain, confirmations uint64, store *ledgertest.Store, em events.Emitter) Deps {
	return Deps{
		Config:  config.ChainConfig{Name: chain.String(), Chain: chain, Confirmations: confirmations, TrackerInterval: time.Millisecond},
		Store:   store,
		Emitter: em,
	}
}

func status(t *testing.T, store *ledgertest.Store, hash string) (enum.TxStatus, uint64) {
	t.Helper()
	tx, err := store.GetTransaction(context.Background(), hash)
	require.NoError(t, err)
	return tx.Status, tx.Confirmations
}

// --- Ethereum ---

type fakeEthereum struct {
	head     uint64
	receipts map[common.Hash]*types.Receipt
	calls    int
}

func (f *fakeEthereum) BlockNumber(context.Context) (uint64, error) { return f.head, nil }

func (f *fakeEthereum) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.calls++
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.ErrNotFound
}

var ethHash = common.HexToHash("0x01").Hex()

func TestEthereumTracker_DepthThenReceipt(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	em := &captureEmitter{}
	seed(t, store, enum.ChainEthereum, ethHash, 100)

	client := &fakeEthereum{head: 105, receipts: map[common.Hash]*types.Receipt{
		common.HexToHash(ethHash): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
	}}
	tr := NewEthereumTracker(client, chainDeps(enum.ChainEthereum, 12, store, em))

	require.NoError(t, tr.Pass(ctx))
	st, conf := status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Equal(t, uint64(5), conf)
	assert.Zero(t, client.calls, "no receipt below threshold")

	client.head = 111
	require.NoError(t, tr.Pass(ctx))
	st, conf = status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Equal(t, uint64(11), conf)

	client.head = 112
	require.NoError(t, tr.Pass(ctx))
	st, conf = status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusConfirmed, st)
	assert.Equal(t, uint64(12), conf)
	assert.Equal(t, []events.EventType{events.DepositConfirmed}, em.eventTypes())

	// terminal rows are not revisited
	client.head = 200
	require.NoError(t, tr.Pass(ctx))
	_, conf = status(t, store, ethHash)
	assert.Equal(t, uint64(12), conf)
}

func TestEthereumTracker_RevertedReceiptFails(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	em := &captureEmitter{}
	seed(t, store, enum.ChainEthereum, ethHash, 100)
	client := &fakeEthereum{head: 130, receipts: map[common.Hash]*types.Receipt{
		common.HexToHash(ethHash): {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100)},
	}}

	require.NoError(t, NewEthereumTracker(client, chainDeps(enum.ChainEthereum, 12, store, em)).Pass(ctx))

	st, _ := status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusFailed, st)
	assert.Equal(t, []events.EventType{events.DepositFailed}, em.eventTypes())
}

func TestEthereumTracker_MissingReceiptStaysPending(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainEthereum, ethHash, 100)
	client := &fakeEthereum{head: 150}

	require.NoError(t, NewEthereumTracker(client, chainDeps(enum.ChainEthereum, 12, store, nil)).Pass(ctx))
	st, _ := status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusPending, st)
}

func TestEthereumTracker_ReorgedIntoLaterBlock(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainEthereum, ethHash, 100)
	client := &fakeEthereum{head: 112, receipts: map[common.Hash]*types.Receipt{
		common.HexToHash(ethHash): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(104)},
	}}

	require.NoError(t, NewEthereumTracker(client, chainDeps(enum.ChainEthereum, 12, store, nil)).Pass(ctx))
	st, conf := status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Equal(t, uint64(8), conf)
}

func TestEthereumTracker_StuckRowsDoNotStarveNewer(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	for _, n := range []int64{10, 11, 12} {
		seed(t, store, enum.ChainEthereum, common.BigToHash(big.NewInt(n)).Hex(), uint64(n))
	}
	seed(t, store, enum.ChainEthereum, ethHash, 100)

	client := &fakeEthereum{head: 150, receipts: map[common.Hash]*types.Receipt{
		common.HexToHash(ethHash): {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)},
	}}
	deps := chainDeps(enum.ChainEthereum, 12, store, nil)
	deps.BatchSize = 2
	tr := NewEthereumTracker(client, deps)

	require.NoError(t, tr.Pass(ctx))
	st, _ := status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusPending, st, "first page holds only the old rows")

	require.NoError(t, tr.Pass(ctx))
	st, _ = status(t, store, ethHash)
	assert.Equal(t, enum.TxStatusConfirmed, st)

	// the walk wraps back to the oldest rows
	client.calls = 0
	require.NoError(t, tr.Pass(ctx))
	assert.Equal(t, 2, client.calls)
}

func TestEthereumTracker_IgnoresOtherChains(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainBitcoin, "btc-tx", 1)
	client := &fakeEthereum{head: 1000}

	require.NoError(t, NewEthereumTracker(client, chainDeps(enum.ChainEthereum, 12, store, nil)).Pass(ctx))
	st, conf := status(t, store, "btc-tx")
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Zero(t, conf)
}

// --- Bitcoin ---

type fakeTip struct {
	tip uint64
	err error
}

func (f *fakeTip) GetBlockCount(context.Context) (uint64, error) { return f.tip, f.err }

func TestBitcoinTracker(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainBitcoin, "btc-tx", 500)
	client := &fakeTip{tip: 503}
	tr := NewBitcoinTracker(client, chainDeps(enum.ChainBitcoin, 6, store, nil))

	require.NoError(t, tr.Pass(ctx))
	st, conf := status(t, store, "btc-tx")
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Equal(t, uint64(3), conf)

	client.err = errors.New("connection refused")
	assert.Error(t, tr.Pass(ctx))
	_, conf = status(t, store, "btc-tx")
	assert.Equal(t, uint64(3), conf)

	client.err = nil
	client.tip = 506
	require.NoError(t, tr.Pass(ctx))
	st, conf = status(t, store, "btc-tx")
	assert.Equal(t, enum.TxStatusConfirmed, st)
	assert.Equal(t, uint64(6), conf)
}

func TestTracker_RunStopsOnCancel(t *testing.T) {
	store := ledgertest.New()
	tr := NewBitcoinTracker(&fakeTip{err: errors.New("down")}, chainDeps(enum.ChainBitcoin, 6, store, nil))
	seed(t, store, enum.ChainBitcoin, "btc-tx", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, tr.Run(ctx))
}

// --- Solana ---

type scriptedStatuses struct {
	mu    sync.Mutex
	steps []*solana.SignatureStatus
	errs  []error
	calls int
}

func (s *scriptedStatuses) GetSignatureStatuses(_ context.Context, sigs ...string) ([]*solana.SignatureStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	var st *solana.SignatureStatus
	if i < len(s.steps) {
		st = s.steps[i]
	} else if len(s.steps) > 0 {
		st = s.steps[len(s.steps)-1]
	}
	out := make([]*solana.SignatureStatus, len(sigs))
	for j := range out {
		out[j] = st
	}
	return out, nil
}

func commitment(level string) *solana.SignatureStatus {
	return &solana.SignatureStatus{Slot: 100, ConfirmationStatus: level}
}

func TestObserve(t *testing.T) {
	tests := []struct {
		name string
		in   *solana.SignatureStatus
		want Observation
	}{
		{"unseen", nil, Observation{Outcome: Polling}},
		{"processed", commitment(solana.CommitmentProcessed), Observation{Outcome: Polling, Confirmations: 1, Seen: true}},
		{"confirmed", commitment(solana.CommitmentConfirmed), Observation{Outcome: Polling, Confirmations: 8, Seen: true}},
		{"finalized", commitment(solana.CommitmentFinalized), Observation{Outcome: Finalized, Confirmations: 32, Seen: true}},
		{
			"failed",
			&solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed, Err: map[string]any{"InstructionError": []any{0, "Custom"}}},
			Observation{Outcome: Failed, Confirmations: 8, Seen: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Observe(tt.in))
		})
	}
}

func TestSolanaTracker_TrackProgression(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	em := &captureEmitter{}
	seed(t, store, enum.ChainSolana, "sig-1", 100)

	client := &scriptedStatuses{steps: []*solana.SignatureStatus{
		commitment(solana.CommitmentProcessed),
		commitment(solana.CommitmentConfirmed),
		commitment(solana.CommitmentFinalized),
	}}
	var seen []uint64
	var statuses []enum.TxStatus
	poller := NewSignaturePoller(client, 10, time.Millisecond)
	tr := NewSolanaTracker(client, poller, chainDeps(enum.ChainSolana, 32, store, em))

	res, err := poller.Poll(ctx, "sig-1", func(c uint64) {
		seen = append(seen, c)
		tr.setConfirmations(ctx, &model.Transaction{BlockchainHash: "sig-1"}, c)
		st, _ := status(t, store, "sig-1")
		statuses = append(statuses, st)
	})
	require.NoError(t, err)
	assert.Equal(t, Finalized, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []uint64{1, 8}, seen)
	assert.Equal(t, []enum.TxStatus{enum.TxStatusPending, enum.TxStatusPending}, statuses)

	// same script through Track, which also applies the terminal state
	client.calls = 0
	store2 := ledgertest.New()
	seed(t, store2, enum.ChainSolana, "sig-1", 100)
	tr2 := NewSolanaTracker(client, poller, chainDeps(enum.ChainSolana, 32, store2, em))
	tr2.Track(ctx, "sig-1")

	st, conf := status(t, store2, "sig-1")
	assert.Equal(t, enum.TxStatusConfirmed, st)
	assert.Equal(t, uint64(32), conf)
	assert.Equal(t, []events.EventType{events.DepositConfirmed}, em.eventTypes())
}

func TestSolanaTracker_ExhaustedStaysPending(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainSolana, "sig-slow", 100)
	client := &scriptedStatuses{steps: []*solana.SignatureStatus{commitment(solana.CommitmentConfirmed)}}
	poller := NewSignaturePoller(client, 10, time.Millisecond)
	tr := NewSolanaTracker(client, poller, chainDeps(enum.ChainSolana, 32, store, nil))

	tr.Track(ctx, "sig-slow")

	assert.Equal(t, 10, client.calls)
	st, conf := status(t, store, "sig-slow")
	assert.Equal(t, enum.TxStatusPending, st)
	assert.Equal(t, uint64(8), conf)

	// a later pass finishes it
	client.steps = []*solana.SignatureStatus{commitment(solana.CommitmentFinalized)}
	client.calls = 0
	require.NoError(t, tr.Pass(ctx))
	st, conf = status(t, store, "sig-slow")
	assert.Equal(t, enum.TxStatusConfirmed, st)
	assert.Equal(t, uint64(32), conf)
}

func TestSolanaTracker_FailedSignature(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	seed(t, store, enum.ChainSolana, "sig-bad", 100)
	client := &scriptedStatuses{steps: []*solana.SignatureStatus{
		{ConfirmationStatus: solana.CommitmentConfirmed, Err: "InsufficientFundsForFee"},
	}}
	tr := NewSolanaTracker(client, NewSignaturePoller(client, 10, time.Millisecond), chainDeps(enum.ChainSolana, 32, store, nil))

	tr.Track(ctx, "sig-bad")
	st, _ := status(t, store, "sig-bad")
	assert.Equal(t, enum.TxStatusFailed, st)
	assert.Equal(t, 1, client.calls)
}

func TestSignaturePoller_RPCErrorsConsumeAttempts(t *testing.T) {
	boom := errors.New("HTTP 503")
	client := &scriptedStatuses{
		errs:  []error{boom, boom},
		steps: []*solana.SignatureStatus{nil, nil, commitment(solana.CommitmentFinalized)},
	}
	res, err := NewSignaturePoller(client, 10, time.Millisecond).Poll(context.Background(), "sig", nil)
	require.NoError(t, err)
	assert.Equal(t, Finalized, res.Outcome)
	assert.Equal(t, 3, res.Attempts)
	assert.ErrorIs(t, res.LastErr, boom)
}

func TestSignaturePoller_CancelledContext(t *testing.T) {
	client := &scriptedStatuses{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSignaturePoller(client, 10, time.Hour).Poll(ctx, "sig", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
