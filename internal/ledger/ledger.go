// Package ledger is the durable transaction store shared by the recorder
// and the confirmation trackers. Every write is a single conditional
// statement; nothing reads a row and writes it back.
package ledger

import (
	"context"
	"errors"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
)

var (
	ErrAddressNotFound   = errors.New("deposit address not found")
	ErrNotTerminalStatus = errors.New("status is not terminal")
)

// PendingKey is the position of a pending row in ListPending order.
type PendingKey struct {
	BlockReference uint64
	Hash           string
}

// KeyOf returns the position of tx in ListPending order.
func KeyOf(tx *model.Transaction) *PendingKey {
	return &PendingKey{BlockReference: tx.BlockReference, Hash: tx.BlockchainHash}
}

// AddressSource is the read side consumed by the watch-list and recorder.
type AddressSource interface {
	ListDepositAddresses(ctx context.Context) ([]*model.DepositAddress, error)
	ResolveOwner(ctx context.Context, chain enum.Chain, address string) (string, error)
}

type Store interface {
	AddressSource

	// InsertPending reports whether a new row was created. An existing
	// blockchain_hash leaves the ledger untouched.
	InsertPending(ctx context.Context, tx *model.Transaction) (bool, error)
	// UpdateConfirmations raises the count on a pending row; it never lowers it.
	UpdateConfirmations(ctx context.Context, hash string, confirmations uint64) (bool, error)
	// MarkTerminal moves a pending row to confirmed or failed exactly once.
	MarkTerminal(ctx context.Context, hash string, status enum.TxStatus, confirmations uint64) (bool, error)
	// ListPending returns up to limit pending rows ordered by
	// (block_reference, blockchain_hash), starting after the given key.
	// A nil key starts from the oldest row.
	ListPending(ctx context.Context, chain enum.Chain, after *PendingKey, limit int) ([]*model.Transaction, error)
	GetTransaction(ctx context.Context, hash string) (*model.Transaction, error)
	Ping(ctx context.Context) error
}
