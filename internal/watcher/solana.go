package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/fystack/deposit-indexer/internal/recorder"
	"github.com/fystack/deposit-indexer/internal/rpc/solana"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/retry"
	"golang.org/x/sync/semaphore"
)

const defaultConfirmConcurrency = 16

var errRootStreamClosed = errors.New("root stream closed")

type SolanaSource interface {
	GetSlot(ctx context.Context, commitment string) (uint64, error)
	GetBlock(ctx context.Context, slot uint64) (*solana.GetBlockResult, error)
	GetBlocks(ctx context.Context, start, end uint64) ([]uint64, error)
}

type RootStream interface {
	Roots() <-chan uint64
	Err() error
	Close() error
}

// RootSubscriber opens a fresh root notification stream.
type RootSubscriber func(ctx context.Context) (RootStream, error)

// SubscribeRootsAt returns a RootSubscriber for a websocket endpoint.
func SubscribeRootsAt(endpoint string) RootSubscriber {
	return func(ctx context.Context) (RootStream, error) {
		return solana.SubscribeRoots(ctx, endpoint)
	}
}

// SignatureTracker follows a recorded signature to finality.
type SignatureTracker interface {
	Track(ctx context.Context, signature string)
}

// SolanaWatcher scans every rooted slot for system transfers to watched
// addresses. Root notifications can jump several slots at once, so the gap
// is resolved with getBlocks.
type SolanaWatcher struct {
	base
	client    SolanaSource
	subscribe RootSubscriber
	tracker   SignatureTracker
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	last uint64
}

func NewSolanaWatcher(client SolanaSource, subscribe RootSubscriber, tracker SignatureTracker, deps Deps) *SolanaWatcher {
	n := int64(deps.Config.Throttle.Concurrency)
	if n <= 0 {
		n = defaultConfirmConcurrency
	}
	return &SolanaWatcher{
		base:      newBase(deps, "stream"),
		client:    client,
		subscribe: subscribe,
		tracker:   tracker,
		sem:       semaphore.NewWeighted(n),
	}
}

func (w *SolanaWatcher) Start(ctx context.Context, wl watchlist.Reader) error {
	w.log.Info("Starting solana watcher")
	defer w.wg.Wait()

	for {
		err := w.follow(ctx, wl)
		if ctx.Err() != nil {
			w.log.Info("Context done, stopping solana watcher")
			return nil
		}
		w.deps.Metrics.WatcherReconnect(w.deps.Config.Name)
		w.log.Warn("Root subscription dropped, reconnecting", "err", err, "last", w.last)
		if !sleep(ctx, time.Second) {
			return nil
		}
	}
}

func (w *SolanaWatcher) follow(ctx context.Context, wl watchlist.Reader) error {
	var stream RootStream
	err := retry.Exponential(ctx, func() error {
		s, err := w.subscribe(ctx)
		if err != nil {
			return err
		}
		stream = s
		return nil
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		OnRetry: func(err error, next time.Duration) {
			w.log.Warn("Root subscribe failed", "err", err, "next_retry_in", next)
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe roots: %w", err)
	}
	defer stream.Close()

	if w.last == 0 {
		tip, err := w.client.GetSlot(ctx, solana.CommitmentFinalized)
		if err != nil {
			return fmt.Errorf("get slot: %w", err)
		}
		if w.last, err = w.resume(ctx, tip); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case root, ok := <-stream.Roots():
			if !ok {
				if err := stream.Err(); err != nil {
					return err
				}
				return errRootStreamClosed
			}
			w.catchUp(ctx, wl, root)
		}
	}
}

// catchUp scans the produced slots in (last, root].
func (w *SolanaWatcher) catchUp(ctx context.Context, wl watchlist.Reader, root uint64) {
	if root <= w.last {
		return
	}
	start := w.backfillStart(w.last, root)

	slots := []uint64{root}
	if start < root {
		var err error
		slots, err = w.client.GetBlocks(ctx, start, root)
		if err != nil {
			// walk every slot; skipped ones come back empty
			w.log.Warn("getBlocks failed, scanning slot by slot", "start", start, "end", root, "err", err)
			slots = slots[:0]
			for s := start; s <= root; s++ {
				slots = append(slots, s)
			}
		}
	}

	for _, slot := range slots {
		if ctx.Err() != nil {
			return
		}
		inserted, err := w.scan(ctx, wl, slot)
		for _, sig := range inserted {
			w.confirm(ctx, sig)
		}
		if err != nil && !w.queueFailed(ctx, slot, err) {
			// stay before the slot; the next root retries from here
			if slot > w.last+1 {
				w.last = slot - 1
				w.advance(ctx, w.last)
			}
			return
		}
	}
	w.last = root
	w.advance(ctx, root)
}

// ProcessBlock scans one slot without starting confirmation pollers; rows
// it records are finalized by the periodic tracker pass.
func (w *SolanaWatcher) ProcessBlock(ctx context.Context, wl watchlist.Reader, slot uint64) error {
	_, err := w.scan(ctx, wl, slot)
	return err
}

func (w *SolanaWatcher) scan(ctx context.Context, wl watchlist.Reader, slot uint64) ([]string, error) {
	block, err := w.client.GetBlock(ctx, slot)
	if err != nil {
		return nil, err
	}
	if block == nil {
		w.log.Debug("Skipped slot", "slot", slot)
		return nil, nil
	}
	snapshot := wl.Current()

	var transfers []recorder.Transfer
	for i := range block.Transactions {
		txn := &block.Transactions[i]
		if !txn.Succeeded() {
			continue
		}
		sig := txn.Signature()
		var m matches
		for _, ins := range txn.AllInstructions() {
			info, ok := ins.SystemTransfer()
			if !ok || info.Lamports == 0 || !snapshot.Contains(enum.ChainSolana, info.Destination) {
				continue
			}
			m.add(recorder.Transfer{
				Chain:          enum.ChainSolana,
				TxHash:         sig,
				From:           info.Source,
				To:             info.Destination,
				Amount:         new(big.Int).SetUint64(info.Lamports),
				BlockReference: slot,
			})
		}
		transfers = append(transfers, m.transfers()...)
	}

	return w.record(ctx, transfers)
}

// confirm starts a bounded poll for sig. When every slot is busy the
// periodic tracker pass picks it up instead.
func (w *SolanaWatcher) confirm(ctx context.Context, sig string) {
	if w.tracker == nil {
		return
	}
	if !w.sem.TryAcquire(1) {
		w.log.Debug("Confirmation pollers busy, deferring to tracker pass", "tx", sig)
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.sem.Release(1)
		w.tracker.Track(ctx, sig)
	}()
}
