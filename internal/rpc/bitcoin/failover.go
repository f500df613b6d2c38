package bitcoin

import (
	"context"
	"fmt"

	"github.com/fystack/deposit-indexer/internal/rpc"
)

// Client runs every call through the failover so callers never pick nodes.
type Client struct {
	failover *rpc.Failover[BitcoinAPI]
}

func NewClient(f *rpc.Failover[BitcoinAPI]) *Client {
	return &Client{failover: f}
}

func (c *Client) GetBlockCount(ctx context.Context) (n uint64, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api BitcoinAPI) error {
		n, err = api.GetBlockCount(ctx)
		return err
	})
	return n, err
}

// GetBlockByHeight resolves the hash then the full block against one node.
func (c *Client) GetBlockByHeight(ctx context.Context, height uint64) (*Block, error) {
	var block *Block
	err := c.failover.ExecuteWithRetry(ctx, func(api BitcoinAPI) error {
		hash, err := api.GetBlockHash(ctx, height)
		if err != nil {
			return err
		}
		block, err = api.GetBlock(ctx, hash)
		if err != nil {
			return err
		}
		if block.Height == 0 {
			block.Height = height
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", height, err)
	}
	return block, nil
}

func (c *Client) GetRawTransaction(ctx context.Context, txid string) (tx *Transaction, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api BitcoinAPI) error {
		tx, err = api.GetRawTransaction(ctx, txid)
		return err
	})
	return tx, err
}

func (c *Client) ScanTxOutSet(ctx context.Context, address string) (res *ScanResult, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api BitcoinAPI) error {
		res, err = api.ScanTxOutSet(ctx, address)
		return err
	})
	return res, err
}

func (c *Client) EstimateSmartFee(ctx context.Context, confTarget int) (fe *FeeEstimate, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api BitcoinAPI) error {
		fe, err = api.EstimateSmartFee(ctx, confTarget)
		return err
	})
	return fe, err
}

// SendRawTransaction is not retried across nodes; a resend of a known tx is
// harmless but its error would mask the first result.
func (c *Client) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	p, err := c.failover.GetBestProvider()
	if err != nil {
		return "", err
	}
	api, ok := p.Client.(BitcoinAPI)
	if !ok {
		return "", fmt.Errorf("provider %s is not a bitcoin client", p.Name)
	}
	return api.SendRawTransaction(ctx, rawHex)
}
