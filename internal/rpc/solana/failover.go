package solana

import (
	"context"
	"fmt"

	"github.com/fystack/deposit-indexer/internal/rpc"
)

// Client runs every call through the failover so callers never pick nodes.
type Client struct {
	failover *rpc.Failover[SolanaAPI]
}

func NewClient(f *rpc.Failover[SolanaAPI]) *Client {
	return &Client{failover: f}
}

func (c *Client) GetSlot(ctx context.Context, commitment string) (slot uint64, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		slot, err = api.GetSlot(ctx, commitment)
		return err
	})
	return slot, err
}

// GetBlock returns nil, nil for a skipped slot.
func (c *Client) GetBlock(ctx context.Context, slot uint64) (block *GetBlockResult, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		block, err = api.GetBlock(ctx, slot)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", slot, err)
	}
	return block, nil
}

func (c *Client) GetBlocks(ctx context.Context, start, end uint64) (slots []uint64, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		slots, err = api.GetBlocks(ctx, start, end)
		return err
	})
	return slots, err
}

func (c *Client) GetSignatureStatuses(ctx context.Context, signatures ...string) (st []*SignatureStatus, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		st, err = api.GetSignatureStatuses(ctx, signatures...)
		return err
	})
	return st, err
}

func (c *Client) GetBalance(ctx context.Context, address string) (bal uint64, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		bal, err = api.GetBalance(ctx, address)
		return err
	})
	return bal, err
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (bh *LatestBlockhash, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		bh, err = api.GetLatestBlockhash(ctx)
		return err
	})
	return bh, err
}

func (c *Client) GetFeeForMessage(ctx context.Context, messageBase64 string) (fee *uint64, err error) {
	err = c.failover.ExecuteWithRetry(ctx, func(api SolanaAPI) error {
		fee, err = api.GetFeeForMessage(ctx, messageBase64)
		return err
	})
	return fee, err
}

// SendTransaction goes to a single node; see bitcoin.Client.SendRawTransaction.
func (c *Client) SendTransaction(ctx context.Context, txBase64 string) (string, error) {
	p, err := c.failover.GetBestProvider()
	if err != nil {
		return "", err
	}
	api, ok := p.Client.(SolanaAPI)
	if !ok {
		return "", fmt.Errorf("provider %s is not a solana client", p.Name)
	}
	return api.SendTransaction(ctx, txBase64)
}
