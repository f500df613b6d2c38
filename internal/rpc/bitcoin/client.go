package bitcoin

import (
	"context"
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/internal/rpc"
	"github.com/fystack/deposit-indexer/pkg/ratelimiter"
)

// BitcoinClient implements the BitcoinAPI interface
type BitcoinClient struct {
	*rpc.BaseClient
}

func NewBitcoinClient(url string, auth *rpc.AuthConfig, timeout time.Duration, limiter *ratelimiter.Limiter) *BitcoinClient {
	return &BitcoinClient{
		BaseClient: rpc.NewBaseClient(url, rpc.NetworkBitcoin, auth, timeout, limiter),
	}
}

// NewAPI adapts NewBitcoinClient to rpc.ClientBuilder.
func NewAPI(url string, auth *rpc.AuthConfig, timeout time.Duration, limiter *ratelimiter.Limiter) BitcoinAPI {
	return NewBitcoinClient(url, auth, timeout, limiter)
}

func (c *BitcoinClient) call(ctx context.Context, method string, params []any, out any) error {
	resp, err := c.CallRPC(ctx, method, params)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", method, err)
	}
	return nil
}

func (c *BitcoinClient) GetBlockCount(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, "getblockcount", nil, &n)
	return n, err
}

func (c *BitcoinClient) GetBlockHash(ctx context.Context, height uint64) (string, error) {
	var h string
	err := c.call(ctx, "getblockhash", []any{height}, &h)
	return h, err
}

// GetBlock fetches verbosity 2 so outputs carry addresses and values.
func (c *BitcoinClient) GetBlock(ctx context.Context, hash string) (*Block, error) {
	var b Block
	if err := c.call(ctx, "getblock", []any{hash, 2}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *BitcoinClient) GetRawTransaction(ctx context.Context, txid string) (*Transaction, error) {
	var tx Transaction
	if err := c.call(ctx, "getrawtransaction", []any{txid, true}, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *BitcoinClient) ScanTxOutSet(ctx context.Context, address string) (*ScanResult, error) {
	var res ScanResult
	descriptors := []string{fmt.Sprintf("addr(%s)", address)}
	if err := c.call(ctx, "scantxoutset", []any{"start", descriptors}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *BitcoinClient) EstimateSmartFee(ctx context.Context, confTarget int) (*FeeEstimate, error) {
	var fe FeeEstimate
	if err := c.call(ctx, "estimatesmartfee", []any{confTarget}, &fe); err != nil {
		return nil, err
	}
	return &fe, nil
}

func (c *BitcoinClient) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	var txid string
	err := c.call(ctx, "sendrawtransaction", []any{rawHex}, &txid)
	return txid, err
}
