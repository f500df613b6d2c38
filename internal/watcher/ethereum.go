package watcher

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/deposit-indexer/internal/recorder"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/retry"
)

const headBuffer = 32

// EthereumSource is the subset of ethereum.EthereumAPI the watcher needs.
type EthereumSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereumSubscription, error)
}

type ethereumSubscription interface {
	Unsubscribe()
	Err() <-chan error
}

// EthereumWatcher follows new heads over a websocket subscription. After
// every (re)subscribe it backfills from the cursor so a dropped stream
// leaves at most max_backfill blocks unscanned.
type EthereumWatcher struct {
	base
	client EthereumSource

	signerMu sync.Mutex
	signer   types.Signer

	last uint64
}

func NewEthereumWatcher(client ethereum.EthereumAPI, deps Deps) *EthereumWatcher {
	return newEthereumWatcher(ethAdapter{client}, deps)
}

func newEthereumWatcher(client EthereumSource, deps Deps) *EthereumWatcher {
	return &EthereumWatcher{base: newBase(deps, "stream"), client: client}
}

func (w *EthereumWatcher) Start(ctx context.Context, wl watchlist.Reader) error {
	signer, err := w.senderSigner(ctx)
	if err != nil {
		return err
	}
	w.log.Info("Starting ethereum watcher", "chain_id", signer.ChainID())

	for {
		err := w.follow(ctx, wl)
		if ctx.Err() != nil {
			w.log.Info("Context done, stopping ethereum watcher")
			return nil
		}
		w.deps.Metrics.WatcherReconnect(w.deps.Config.Name)
		w.log.Warn("Head subscription dropped, reconnecting", "err", err, "last", w.last)
		if !sleep(ctx, time.Second) {
			return nil
		}
	}
}

// follow subscribes, closes the gap since the cursor, then processes heads
// until the stream errors.
func (w *EthereumWatcher) follow(ctx context.Context, wl watchlist.Reader) error {
	heads := make(chan *types.Header, headBuffer)
	var sub ethereumSubscription
	err := retry.Exponential(ctx, func() error {
		s, err := w.client.SubscribeNewHead(ctx, heads)
		if err != nil {
			return err
		}
		sub = s
		return nil
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		OnRetry: func(err error, next time.Duration) {
			w.log.Warn("Subscribe failed", "err", err, "next_retry_in", next)
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	head, err := w.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}
	if w.last == 0 {
		if w.last, err = w.resume(ctx, head); err != nil {
			return err
		}
	}
	w.catchUp(ctx, wl, head)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case h := <-heads:
			if h == nil || h.Number == nil {
				continue
			}
			w.catchUp(ctx, wl, h.Number.Uint64())
		}
	}
}

// senderSigner resolves the chain's signer once. Start and the rescanner
// may both get here first.
func (w *EthereumWatcher) senderSigner(ctx context.Context) (types.Signer, error) {
	w.signerMu.Lock()
	defer w.signerMu.Unlock()
	if w.signer != nil {
		return w.signer, nil
	}
	chainID, err := w.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	w.signer = types.LatestSignerForChainID(chainID)
	return w.signer, nil
}

// catchUp processes every block after the cursor up to head, in order.
// A failed block goes to the failure queue so the stream keeps moving; if it
// cannot be queued the cursor stays before it and the next head retries it.
func (w *EthereumWatcher) catchUp(ctx context.Context, wl watchlist.Reader, head uint64) {
	if head <= w.last {
		return
	}
	for n := w.backfillStart(w.last, head); n <= head; n++ {
		if ctx.Err() != nil {
			return
		}
		if err := w.ProcessBlock(ctx, wl, n); err != nil && !w.queueFailed(ctx, n, err) {
			return
		}
		w.last = n
		w.advance(ctx, n)
	}
}

func (w *EthereumWatcher) ProcessBlock(ctx context.Context, wl watchlist.Reader, number uint64) error {
	block, err := w.client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return fmt.Errorf("get block %d: %w", number, err)
	}
	signer, err := w.senderSigner(ctx)
	if err != nil {
		return err
	}
	snapshot := wl.Current()

	var transfers []recorder.Transfer
	for _, tx := range block.Transactions() {
		to := tx.To()
		if to == nil || tx.Value().Sign() <= 0 {
			continue
		}
		toHex := to.Hex()
		if !snapshot.Contains(enum.ChainEthereum, toHex) {
			continue
		}
		var from string
		if sender, err := types.Sender(signer, tx); err == nil {
			from = sender.Hex()
		} else {
			w.log.Warn("Cannot recover sender", "tx", tx.Hash().Hex(), "err", err)
		}
		transfers = append(transfers, recorder.Transfer{
			Chain:          enum.ChainEthereum,
			TxHash:         tx.Hash().Hex(),
			From:           from,
			To:             toHex,
			Amount:         new(big.Int).Set(tx.Value()),
			BlockReference: number,
		})
	}
	_, err = w.record(ctx, transfers)
	return err
}

// ethAdapter narrows ethereum.Subscription to the watcher's interface.
type ethAdapter struct {
	ethereum.EthereumAPI
}

func (a ethAdapter) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereumSubscription, error) {
	return a.EthereumAPI.SubscribeNewHead(ctx, ch)
}
