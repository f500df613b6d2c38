package watcher

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fystack/deposit-indexer/internal/recorder"
	"github.com/fystack/deposit-indexer/internal/rpc/bitcoin"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type BitcoinSource interface {
	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockByHeight(ctx context.Context, height uint64) (*bitcoin.Block, error)
}

// BitcoinWatcher polls the tip and walks the gap one block at a time. The
// cursor only moves by one after a block is fully recorded, so a failing
// block is retried next cycle and never skipped.
type BitcoinWatcher struct {
	base
	client BitcoinSource

	lastProcessed atomic.Uint64
	started       bool
}

func NewBitcoinWatcher(client BitcoinSource, deps Deps) *BitcoinWatcher {
	return &BitcoinWatcher{base: newBase(deps, "poll"), client: client}
}

func (w *BitcoinWatcher) LastProcessedHeight() uint64 {
	return w.lastProcessed.Load()
}

func (w *BitcoinWatcher) Start(ctx context.Context, wl watchlist.Reader) error {
	w.log.Info("Starting bitcoin watcher", "poll_interval", w.deps.Config.PollInterval)
	for {
		if err := w.Poll(ctx, wl); err != nil && ctx.Err() == nil {
			w.log.Warn("Poll cycle failed", "err", err, "last_processed", w.LastProcessedHeight())
		}
		if !sleep(ctx, w.deps.Config.PollInterval) {
			w.log.Info("Context done, stopping bitcoin watcher")
			return nil
		}
	}
}

// Poll runs one cycle: every block between the cursor and the tip, in order.
func (w *BitcoinWatcher) Poll(ctx context.Context, wl watchlist.Reader) error {
	tip, err := w.client.GetBlockCount(ctx)
	if err != nil {
		return fmt.Errorf("get block count: %w", err)
	}

	if !w.started {
		last, err := w.resume(ctx, tip)
		if err != nil {
			return err
		}
		w.lastProcessed.Store(last)
		w.started = true
	}

	last := w.lastProcessed.Load()
	if last >= tip {
		w.log.Debug("Waiting for new blocks", "last_processed", last, "tip", tip)
		return nil
	}

	for h := last + 1; h <= tip; h++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.ProcessBlock(ctx, wl, h); err != nil {
			return fmt.Errorf("block %d: %w", h, err)
		}
		w.lastProcessed.Store(h)
		w.advance(ctx, h)
	}
	w.log.Info("Processed blocks", "from", last+1, "to", tip)
	return nil
}

func (w *BitcoinWatcher) ProcessBlock(ctx context.Context, wl watchlist.Reader, height uint64) error {
	block, err := w.client.GetBlockByHeight(ctx, height)
	if err != nil {
		return err
	}
	snapshot := wl.Current()

	var transfers []recorder.Transfer
	for i := range block.Tx {
		tx := &block.Tx[i]
		var m matches
		for _, out := range tx.Vout {
			addr := out.Address()
			if !snapshot.Contains(enum.ChainBitcoin, addr) {
				continue
			}
			sats, err := bitcoin.ToSatoshis(out.Value)
			if err != nil {
				w.log.Error("Skipping output with invalid amount", "tx", tx.TxID, "vout", out.N, "err", err)
				continue
			}
			if sats.Sign() == 0 {
				continue
			}
			m.add(recorder.Transfer{
				Chain:          enum.ChainBitcoin,
				TxHash:         tx.TxID,
				From:           tx.FirstInputAddress(),
				To:             addr,
				Amount:         sats,
				BlockReference: height,
			})
		}
		transfers = append(transfers, m.transfers()...)
	}
	_, err = w.record(ctx, transfers)
	return err
}
