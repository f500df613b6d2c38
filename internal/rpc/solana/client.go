package solana

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/internal/rpc"
	"github.com/fystack/deposit-indexer/pkg/ratelimiter"
)

// Node error codes for slots that will never have a block.
const (
	errCodeSlotSkipped         = -32007
	errCodeLongTermStorageSlot = -32009
	errCodeBlockNotAvailable   = -32004
)

type SolanaClient struct {
	*rpc.BaseClient
}

func NewSolanaClient(baseURL string, auth *rpc.AuthConfig, timeout time.Duration, limiter *ratelimiter.Limiter) *SolanaClient {
	return &SolanaClient{BaseClient: rpc.NewBaseClient(baseURL, rpc.NetworkSolana, auth, timeout, limiter)}
}

// NewAPI adapts NewSolanaClient to rpc.ClientBuilder.
func NewAPI(baseURL string, auth *rpc.AuthConfig, timeout time.Duration, limiter *ratelimiter.Limiter) SolanaAPI {
	return NewSolanaClient(baseURL, auth, timeout, limiter)
}

func (c *SolanaClient) call(ctx context.Context, method string, params []any, out any) error {
	resp, err := c.CallRPC(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *SolanaClient) GetSlot(ctx context.Context, commitment string) (uint64, error) {
	var slot uint64
	err := c.call(ctx, "getSlot", []any{map[string]string{"commitment": commitment}}, &slot)
	return slot, err
}

func (c *SolanaClient) GetBlock(ctx context.Context, slot uint64) (*GetBlockResult, error) {
	cfg := GetBlockConfig{
		Encoding:                       "jsonParsed",
		TransactionDetails:             "full",
		Rewards:                        false,
		MaxSupportedTransactionVersion: 0,
		Commitment:                     CommitmentFinalized,
	}
	var out *GetBlockResult
	err := c.call(ctx, "getBlock", []any{slot, cfg}, &out)
	if IsSkippedSlot(err) {
		return nil, nil
	}
	return out, err
}

// IsSkippedSlot reports node errors meaning the slot produced no block.
func IsSkippedSlot(err error) bool {
	var rpcErr *rpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	return rpcErr.Code == errCodeSlotSkipped || rpcErr.Code == errCodeLongTermStorageSlot
}

// IsBlockNotAvailable is the transient "not yet available" answer.
func IsBlockNotAvailable(err error) bool {
	var rpcErr *rpc.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == errCodeBlockNotAvailable
}

func (c *SolanaClient) GetBlocks(ctx context.Context, start, end uint64) ([]uint64, error) {
	var slots []uint64
	err := c.call(ctx, "getBlocks", []any{start, end, map[string]string{"commitment": CommitmentFinalized}}, &slots)
	return slots, err
}

func (c *SolanaClient) GetSignatureStatuses(ctx context.Context, signatures ...string) ([]*SignatureStatus, error) {
	var res contextResult[[]*SignatureStatus]
	err := c.call(ctx, "getSignatureStatuses", []any{signatures, map[string]bool{"searchTransactionHistory": true}}, &res)
	return res.Value, err
}

func (c *SolanaClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	var res contextResult[uint64]
	err := c.call(ctx, "getBalance", []any{address, map[string]string{"commitment": CommitmentFinalized}}, &res)
	return res.Value, err
}

func (c *SolanaClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	var res contextResult[LatestBlockhash]
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]string{"commitment": CommitmentFinalized}}, &res); err != nil {
		return nil, err
	}
	return &res.Value, nil
}

func (c *SolanaClient) GetFeeForMessage(ctx context.Context, messageBase64 string) (*uint64, error) {
	var res contextResult[*uint64]
	err := c.call(ctx, "getFeeForMessage", []any{messageBase64, map[string]string{"commitment": CommitmentProcessed}}, &res)
	return res.Value, err
}

func (c *SolanaClient) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	var sig string
	opts := map[string]any{"encoding": "base64", "preflightCommitment": CommitmentFinalized}
	err := c.call(ctx, "sendTransaction", []any{txBase64, opts}, &sig)
	return sig, err
}
