// Package watcher detects native deposits to watched addresses, one
// implementation per chain delivery model.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/fystack/deposit-indexer/internal/cursor"
	"github.com/fystack/deposit-indexer/internal/failqueue"
	"github.com/fystack/deposit-indexer/internal/recorder"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/metrics"
)

// Watcher observes one chain until ctx is cancelled. It returns early only
// on errors it cannot recover from locally; the caller restarts it.
type Watcher interface {
	Name() string
	Start(ctx context.Context, wl watchlist.Reader) error
}

// BlockProcessor scans a single height or slot. The rescanner uses it to
// replay entries from the failure queue.
type BlockProcessor interface {
	ProcessBlock(ctx context.Context, wl watchlist.Reader, height uint64) error
}

// Deps groups what every chain watcher shares.
type Deps struct {
	Config   config.ChainConfig
	Recorder recorder.Recorder
	Cursor   cursor.Store
	Failures failqueue.Queue
	Metrics  *metrics.Metrics
}

type base struct {
	deps Deps
	log  *slog.Logger
}

func newBase(deps Deps, kind string) base {
	if deps.Cursor == nil {
		deps.Cursor = cursor.NewMemory()
	}
	if deps.Failures == nil {
		deps.Failures = failqueue.Noop()
	}
	return base{
		deps: deps,
		log:  logger.With("component", "watcher", "kind", kind, "chain", deps.Config.Name),
	}
}

func (b *base) Name() string {
	return "watcher-" + b.deps.Config.Name
}

// resume picks the last processed height: the persisted cursor first, then
// start_block, then the current tip.
func (b *base) resume(ctx context.Context, tip uint64) (uint64, error) {
	h, found, err := b.deps.Cursor.Get(ctx, b.deps.Config.Chain)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	switch {
	case found:
		b.log.Info("Resuming from cursor", "height", h, "tip", tip)
		return h, nil
	case !b.deps.Config.FromLatest && b.deps.Config.StartBlock > 0:
		b.log.Info("No cursor, starting from configured block", "start_block", b.deps.Config.StartBlock)
		return b.deps.Config.StartBlock - 1, nil
	default:
		b.log.Info("No cursor, starting from tip", "tip", tip)
		return tip, nil
	}
}

func (b *base) advance(ctx context.Context, height uint64) {
	if err := b.deps.Cursor.Save(ctx, b.deps.Config.Chain, height); err != nil {
		b.log.Warn("Failed to save cursor", "height", height, "err", err)
	}
	b.deps.Metrics.SetLastHeight(b.deps.Config.Name, height)
}

// backfillStart bounds how far back a reconnect replays.
func (b *base) backfillStart(last, head uint64) uint64 {
	limit := uint64(b.deps.Config.MaxBackfill)
	if limit == 0 || head-last <= limit {
		return last + 1
	}
	start := head - limit + 1
	b.log.Warn("Gap larger than max backfill, skipping blocks",
		"last", last, "head", head, "skipped_from", last+1, "skipped_to", start-1)
	return start
}

// queueFailed reports whether height was saved for the rescanner. When it
// was not, the caller must not move its cursor past height.
func (b *base) queueFailed(ctx context.Context, height uint64, cause error) bool {
	b.log.Error("Failed to process block", "block", height, "err", cause)
	if err := b.deps.Failures.Push(ctx, b.deps.Config.Chain, height); err != nil {
		b.log.Warn("Failed to enqueue failed block, will retry in place", "block", height, "err", err)
		return false
	}
	b.deps.Metrics.FailedBlock(b.deps.Config.Name, metrics.FailedBlockQueued)
	return true
}

// record hands matches to the recorder and returns the hashes that created
// new rows. The ledger keeps one row per hash, so when a transaction pays
// several watched addresses the first destination with a known owner gets
// the row and the rest are reported as unrecorded. Unresolved owners do not
// fail the block; any other error does.
func (b *base) record(ctx context.Context, transfers []recorder.Transfer) ([]string, error) {
	var (
		errs     []error
		inserted []string
	)
	for _, group := range groupByHash(transfers) {
		created, rest, err := b.recordOne(ctx, group)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !created {
			continue
		}
		inserted = append(inserted, group[0].TxHash)
		// reported once, when the row is first created
		for _, t := range rest {
			b.deps.Recorder.Unrecorded(ctx, t, recorder.ReasonSharedHash)
		}
	}
	return inserted, errors.Join(errs...)
}

// recordOne tries the transfers of one hash in order until one is stored.
// rest holds the transfers after the stored one.
func (b *base) recordOne(ctx context.Context, group []recorder.Transfer) (created bool, rest []recorder.Transfer, err error) {
	for i, t := range group {
		b.log.Info("Matched deposit",
			"tx", t.TxHash, "from", t.From, "to", t.To, "amount", t.Amount.String(), "block", t.BlockReference)
		created, err := b.deps.Recorder.Record(ctx, t)
		switch {
		case err == nil:
			return created, group[i+1:], nil
		case errors.Is(err, recorder.ErrOwnerNotFound):
			continue
		default:
			return false, nil, fmt.Errorf("record %s: %w", t.TxHash, err)
		}
	}
	return false, nil, nil
}

func groupByHash(transfers []recorder.Transfer) [][]recorder.Transfer {
	var groups [][]recorder.Transfer
	idx := make(map[string]int, len(transfers))
	for _, t := range transfers {
		i, ok := idx[t.TxHash]
		if !ok {
			i = len(groups)
			idx[t.TxHash] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}

// matches accumulates per-destination totals for one transaction, keeping
// first-seen order.
type matches struct {
	order  []string
	byAddr map[string]*recorder.Transfer
}

func (m *matches) add(t recorder.Transfer) {
	if m.byAddr == nil {
		m.byAddr = make(map[string]*recorder.Transfer)
	}
	if cur, ok := m.byAddr[t.To]; ok {
		cur.Amount = new(big.Int).Add(cur.Amount, t.Amount)
		return
	}
	cp := t
	cp.Amount = new(big.Int).Set(t.Amount)
	m.byAddr[t.To] = &cp
	m.order = append(m.order, t.To)
}

func (m *matches) transfers() []recorder.Transfer {
	out := make([]recorder.Transfer, 0, len(m.order))
	for _, a := range m.order {
		out = append(out, *m.byAddr[a])
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
