package tracker

import (
	"context"
	"fmt"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/common/utils"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/samber/lo"
)

// getSignatureStatuses accepts at most this many signatures per call.
const maxSignaturesPerCall = 256

// SolanaTracker confirms deposits by signature status. Track runs the
// bounded poller for a freshly recorded signature; the periodic pass
// re-reads every pending row once per interval so exhausted polls are
// picked up again.
type SolanaTracker struct {
	base
	client SignatureStatusSource
	poller *SignaturePoller
}

func NewSolanaTracker(client SignatureStatusSource, poller *SignaturePoller, deps Deps) *SolanaTracker {
	if poller == nil {
		poller = NewSignaturePoller(client, deps.Config.PollAttempts, deps.Config.PollDelay)
	}
	return &SolanaTracker{base: newBase(deps), client: client, poller: poller}
}

func (t *SolanaTracker) Run(ctx context.Context) error { return t.loop(ctx, t.Pass) }

// Track follows sig until finality or until the attempt budget runs out.
func (t *SolanaTracker) Track(ctx context.Context, sig string) {
	tx, err := t.deps.Store.GetTransaction(ctx, sig)
	if err != nil {
		t.log.Warn("Cannot track unknown transaction", "tx", sig, "err", err)
		return
	}

	res, err := t.poller.Poll(ctx, sig, func(c uint64) {
		t.setConfirmations(ctx, tx, c)
	})
	if err != nil {
		return
	}
	t.apply(ctx, tx, res.Outcome, res.Confirmations, res.Attempts)
}

func (t *SolanaTracker) apply(ctx context.Context, tx *model.Transaction, outcome Outcome, confirmations uint64, attempts int) {
	switch outcome {
	case Finalized:
		t.finish(ctx, tx, enum.TxStatusConfirmed, confirmations)
	case Failed:
		t.finish(ctx, tx, enum.TxStatusFailed, confirmations)
	case Exhausted:
		t.setConfirmations(ctx, tx, confirmations)
		t.deps.Metrics.ConfirmationOutcome(t.deps.Config.Name, metrics.OutcomeExhausted)
		t.log.Warn("Signature not finalized within attempt budget, leaving pending",
			"tx", tx.BlockchainHash, "attempts", attempts, "confirmations", confirmations)
	}
}

// Pass reads statuses for one page of pending rows, one attempt each.
func (t *SolanaTracker) Pass(ctx context.Context) error {
	rows, err := t.pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}

	for _, batch := range utils.ChunkBySize(rows, maxSignaturesPerCall) {
		sigs := lo.Map(batch, func(tx *model.Transaction, _ int) string {
			return tx.BlockchainHash
		})

		statuses, err := t.client.GetSignatureStatuses(ctx, sigs...)
		if err != nil {
			if isCanceled(err) {
				return err
			}
			t.log.Warn("Failed to fetch signature statuses", "count", len(sigs), "err", err)
			continue
		}

		for i, tx := range batch {
			if i >= len(statuses) {
				break
			}
			obs := Observe(statuses[i])
			switch obs.Outcome {
			case Finalized:
				t.finish(ctx, tx, enum.TxStatusConfirmed, obs.Confirmations)
			case Failed:
				t.finish(ctx, tx, enum.TxStatusFailed, obs.Confirmations)
			default:
				if obs.Seen {
					t.setConfirmations(ctx, tx, obs.Confirmations)
				}
			}
		}
	}
	return nil
}
