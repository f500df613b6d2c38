package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/fystack/deposit-indexer/internal/rpc/ethereum"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type EthereumSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// EthereumTracker confirms by depth, then lets the receipt decide between
// confirmed and failed.
type EthereumTracker struct {
	base
	client EthereumSource
}

func NewEthereumTracker(client EthereumSource, deps Deps) *EthereumTracker {
	return &EthereumTracker{base: newBase(deps), client: client}
}

func (t *EthereumTracker) Run(ctx context.Context) error { return t.loop(ctx, t.Pass) }

func (t *EthereumTracker) Pass(ctx context.Context) error {
	rows, err := t.pending(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	head, err := t.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("block number: %w", err)
	}

	threshold := t.deps.Config.Confirmations
	for _, tx := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conf := depth(head, tx.BlockReference)
		if conf < threshold {
			t.setConfirmations(ctx, tx, conf)
			continue
		}

		receipt, err := t.client.TransactionReceipt(ctx, common.HexToHash(tx.BlockchainHash))
		if errors.Is(err, ethereum.ErrNotFound) {
			t.log.Warn("Receipt not found at depth, leaving pending", "tx", tx.BlockchainHash, "confirmations", conf)
			continue
		}
		if err != nil {
			if isCanceled(err) {
				return err
			}
			t.log.Warn("Failed to fetch receipt", "tx", tx.BlockchainHash, "err", err)
			continue
		}

		// the tx may have been re-included in a different block after a reorg
		if receipt.BlockNumber != nil && receipt.BlockNumber.Uint64() != tx.BlockReference {
			conf = depth(head, receipt.BlockNumber.Uint64())
			if conf < threshold {
				t.log.Info("Transaction moved blocks, waiting for depth again",
					"tx", tx.BlockchainHash, "was", tx.BlockReference, "now", receipt.BlockNumber)
				t.setConfirmations(ctx, tx, conf)
				continue
			}
		}

		status := enum.TxStatusConfirmed
		if receipt.Status != types.ReceiptStatusSuccessful {
			status = enum.TxStatusFailed
		}
		t.finish(ctx, tx, status, conf)
	}
	return nil
}
