package tracker

import (
	"context"
	"fmt"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type BitcoinSource interface {
	GetBlockCount(ctx context.Context) (uint64, error)
}

// BitcoinTracker confirms on depth alone; there is no receipt to consult.
type BitcoinTracker struct {
	base
	client BitcoinSource
}

func NewBitcoinTracker(client BitcoinSource, deps Deps) *BitcoinTracker {
	return &BitcoinTracker{base: newBase(deps), client: client}
}

func (t *BitcoinTracker) Run(ctx context.Context) error { return t.loop(ctx, t.Pass) }

func (t *BitcoinTracker) Pass(ctx context.Context) error {
	rows, err := t.pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	tip, err := t.client.GetBlockCount(ctx)
	if err != nil {
		return fmt.Errorf("get block count: %w", err)
	}

	for _, tx := range rows {
		conf := depth(tip, tx.BlockReference)
		if conf < t.deps.Config.Confirmations {
			t.setConfirmations(ctx, tx, conf)
			continue
		}
		t.finish(ctx, tx, enum.TxStatusConfirmed, conf)
	}
	return nil
}
