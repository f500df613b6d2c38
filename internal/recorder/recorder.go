// Package recorder turns matched chain transfers into pending ledger rows.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/events"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/shopspring/decimal"
)

var (
	ErrOwnerNotFound   = errors.New("no owner for deposit address")
	ErrInvalidTransfer = errors.New("invalid transfer")
)

// Transfer is a native transfer a watcher matched against the watch-list.
// Amount is in the chain's smallest unit.
type Transfer struct {
	Chain          enum.Chain
	TxHash         string
	From           string
	To             string
	Amount         *big.Int
	BlockReference uint64
}

func (t Transfer) validate() error {
	switch {
	case t.TxHash == "":
		return fmt.Errorf("%w: empty hash", ErrInvalidTransfer)
	case t.To == "":
		return fmt.Errorf("%w: empty destination", ErrInvalidTransfer)
	case t.Amount == nil || t.Amount.Sign() <= 0:
		return fmt.Errorf("%w: non-positive amount", ErrInvalidTransfer)
	}
	return nil
}

// ReasonSharedHash marks a transfer whose transaction hash already has a
// ledger row for another destination.
const ReasonSharedHash = "shared_hash"

type Recorder interface {
	// Record reports whether a new ledger row was created. Re-recording a
	// known hash returns false and no error.
	Record(ctx context.Context, t Transfer) (bool, error)
	// Unrecorded reports a matched transfer that gets no ledger row.
	Unrecorded(ctx context.Context, t Transfer, reason string)
}

type recorder struct {
	store   ledger.Store
	emitter events.Emitter
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(store ledger.Store, emitter events.Emitter, m *metrics.Metrics) Recorder {
	if emitter == nil {
		emitter = events.Noop()
	}
	return &recorder{
		store:   store,
		emitter: emitter,
		metrics: m,
		log:     logger.With("component", "recorder"),
	}
}

func (r *recorder) Record(ctx context.Context, t Transfer) (bool, error) {
	if err := t.validate(); err != nil {
		return false, err
	}
	chain := t.Chain.String()

	owner, err := r.store.ResolveOwner(ctx, t.Chain, t.To)
	if errors.Is(err, ledger.ErrAddressNotFound) {
		r.metrics.DepositUnresolved(chain)
		r.log.Error("Dropping deposit with unresolved owner",
			"chain", chain, "tx", t.TxHash, "address", t.To, "amount", t.Amount.String())
		return false, fmt.Errorf("%w: %s", ErrOwnerNotFound, t.To)
	}
	if err != nil {
		return false, fmt.Errorf("resolve owner: %w", err)
	}

	tx := &model.Transaction{
		BlockchainHash:      t.TxHash,
		DepositAddress:      t.Chain.NormalizeAddress(t.To),
		CounterpartyAddress: t.From,
		Chain:               t.Chain,
		Currency:            t.Chain.Currency(),
		Amount:              decimal.NewFromBigInt(t.Amount, 0),
		Status:              enum.TxStatusPending,
		BlockReference:      t.BlockReference,
		OwningUserID:        owner,
	}

	inserted, err := r.store.InsertPending(ctx, tx)
	if err != nil {
		return false, fmt.Errorf("insert pending: %w", err)
	}
	if !inserted {
		r.metrics.DepositDuplicate(chain)
		r.log.Debug("Deposit already recorded", "chain", chain, "tx", t.TxHash)
		return false, nil
	}

	r.metrics.DepositRecorded(chain)
	r.log.Info("Recorded pending deposit",
		"chain", chain, "tx", t.TxHash, "to", t.To, "amount", t.Amount.String(), "block", t.BlockReference)

	if err := r.emitter.EmitDeposit(ctx, events.NewDepositEvent(events.DepositDetected, tx)); err != nil {
		r.log.Warn("Failed to emit deposit event", "tx", t.TxHash, "err", err)
	}
	return true, nil
}

func (r *recorder) Unrecorded(ctx context.Context, t Transfer, reason string) {
	chain := t.Chain.String()
	r.metrics.DepositUnrecorded(chain, reason)

	var owner string
	if o, err := r.store.ResolveOwner(ctx, t.Chain, t.To); err == nil {
		owner = o
	}
	var amount string
	if t.Amount != nil {
		amount = t.Amount.String()
	}
	r.log.Error("Watched transfer not recorded",
		"chain", chain, "tx", t.TxHash, "to", t.To, "owner", owner, "amount", amount, "reason", reason)

	event := events.DepositEvent{
		Type:           events.DepositUnrecorded,
		Chain:          t.Chain,
		TxHash:         t.TxHash,
		DepositAddress: t.Chain.NormalizeAddress(t.To),
		FromAddress:    t.From,
		Currency:       t.Chain.Currency(),
		Amount:         amount,
		BlockReference: t.BlockReference,
		OwningUserID:   owner,
	}
	if err := r.emitter.EmitDeposit(ctx, event); err != nil {
		r.log.Warn("Failed to emit unrecorded event", "tx", t.TxHash, "err", err)
	}
}
