// Package tracker promotes pending deposits to a terminal status once the
// chain's finality rule is met. One tracker runs per chain and only reads
// that chain's rows.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/constant"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/fystack/deposit-indexer/pkg/model"
)

// Tracker runs fixed-delay passes until ctx is cancelled.
type Tracker interface {
	Name() string
	Run(ctx context.Context) error
	// Pass processes one batch of pending rows.
	Pass(ctx context.Context) error
}

type Deps struct {
	Config  config.ChainConfig
	Store   ledger.Store
	Emitter events.Emitter
	Metrics *metrics.Metrics
	// BatchSize caps rows per pass; zero means the package default.
	BatchSize int
}

type base struct {
	deps Deps
	log  *slog.Logger
	// next is where the following pass resumes; nil restarts from the
	// oldest pending row.
	next *ledger.PendingKey
}

func newBase(deps Deps) base {
	if deps.Emitter == nil {
		deps.Emitter = events.Noop()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = constant.DefaultPendingBatchSize
	}
	return base{
		deps: deps,
		log:  logger.With("component", "tracker", "chain", deps.Config.Name),
	}
}

func (b *base) Name() string { return "tracker-" + b.deps.Config.Name }

// loop runs pass, then waits the tracker interval. Errors never end the loop.
func (b *base) loop(ctx context.Context, pass func(context.Context) error) error {
	b.log.Info("Starting confirmation tracker", "interval", b.deps.Config.TrackerInterval)
	for {
		if err := pass(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("Tracker pass failed", "err", err)
		}
		t := time.NewTimer(b.deps.Config.TrackerInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			b.log.Info("Context done, stopping tracker")
			return nil
		case <-t.C:
		}
	}
}

// pending returns the next page of pending rows. Passes walk the table
// page by page and wrap around, so rows that stay pending cannot hold
// newer ones out of every batch.
func (b *base) pending(ctx context.Context) ([]*model.Transaction, error) {
	rows, err := b.deps.Store.ListPending(ctx, b.deps.Config.Chain, b.next, b.deps.BatchSize)
	if err == nil && len(rows) == 0 && b.next != nil {
		rows, err = b.deps.Store.ListPending(ctx, b.deps.Config.Chain, nil, b.deps.BatchSize)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < b.deps.BatchSize {
		b.next = nil
	} else {
		b.next = ledger.KeyOf(rows[len(rows)-1])
	}
	return rows, nil
}

// setConfirmations records a non-terminal depth. Lower values are ignored by
// the store.
func (b *base) setConfirmations(ctx context.Context, tx *model.Transaction, confirmations uint64) {
	if confirmations <= tx.Confirmations {
		return
	}
	updated, err := b.deps.Store.UpdateConfirmations(ctx, tx.BlockchainHash, confirmations)
	if err != nil {
		b.log.Warn("Failed to update confirmations", "tx", tx.BlockchainHash, "err", err)
		return
	}
	if updated {
		tx.Confirmations = confirmations
		b.log.Debug("Updated confirmations", "tx", tx.BlockchainHash, "confirmations", confirmations)
	}
}

// finish moves tx to a terminal status and emits the matching event. It is
// a no-op when another writer already finished the row.
func (b *base) finish(ctx context.Context, tx *model.Transaction, status enum.TxStatus, confirmations uint64) {
	done, err := b.deps.Store.MarkTerminal(ctx, tx.BlockchainHash, status, confirmations)
	if err != nil {
		b.log.Error("Failed to mark transaction", "tx", tx.BlockchainHash, "status", status, "err", err)
		return
	}
	if !done {
		return
	}

	tx.Status = status
	tx.Confirmations = max(tx.Confirmations, confirmations)

	outcome, eventType := metrics.OutcomeConfirmed, events.DepositConfirmed
	if status == enum.TxStatusFailed {
		outcome, eventType = metrics.OutcomeFailed, events.DepositFailed
	}
	b.deps.Metrics.ConfirmationOutcome(b.deps.Config.Name, outcome)
	b.log.Info("Deposit finalized",
		"tx", tx.BlockchainHash, "status", status, "confirmations", tx.Confirmations, "amount", tx.Amount.String())

	if err := b.deps.Emitter.EmitDeposit(ctx, events.NewDepositEvent(eventType, tx)); err != nil {
		b.log.Warn("Failed to emit deposit event", "tx", tx.BlockchainHash, "err", err)
	}
}

func depth(head, ref uint64) uint64 {
	if head < ref {
		return 0
	}
	return head - ref
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
