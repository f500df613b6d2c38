package bitcoin

import (
	"context"

	"github.com/fystack/deposit-indexer/internal/rpc"
)

// BitcoinAPI defines the bitcoind RPC surface used by the indexer and sweeper.
type BitcoinAPI interface {
	rpc.NetworkClient

	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (*Block, error)
	GetRawTransaction(ctx context.Context, txid string) (*Transaction, error)
	ScanTxOutSet(ctx context.Context, address string) (*ScanResult, error)
	EstimateSmartFee(ctx context.Context, confTarget int) (*FeeEstimate, error)
	SendRawTransaction(ctx context.Context, rawHex string) (string, error)
}
