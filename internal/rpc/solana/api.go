package solana

import (
	"context"

	"github.com/fystack/deposit-indexer/internal/rpc"
)

// SolanaAPI is the JSON-RPC surface used by the watcher, tracker and sweeper.
type SolanaAPI interface {
	rpc.NetworkClient

	GetSlot(ctx context.Context, commitment string) (uint64, error)
	// GetBlock returns nil for skipped slots.
	GetBlock(ctx context.Context, slot uint64) (*GetBlockResult, error)
	GetBlocks(ctx context.Context, start, end uint64) ([]uint64, error)
	GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error)
	GetBalance(ctx context.Context, address string) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)
	// GetFeeForMessage returns nil when the blockhash in the message expired.
	GetFeeForMessage(ctx context.Context, messageBase64 string) (*uint64, error)
	SendTransaction(ctx context.Context, txBase64 string) (string, error)
}
