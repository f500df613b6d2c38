// Package ethereum exposes the go-ethereum client surface used by the
// Ethereum watcher, tracker and sweeper.
package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/retry"
)

// ErrNotFound is returned by TransactionReceipt for unknown or pending txs.
var ErrNotFound = ethereum.NotFound

// EthereumAPI is satisfied by *ethclient.Client.
type EthereumAPI interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	Close()
}

var _ EthereumAPI = (*ethclient.Client)(nil)

// Endpoint prefers the websocket URL since head subscriptions need it.
func Endpoint(chain config.ChainConfig) string {
	if chain.WSURL != "" {
		return chain.WSURL
	}
	return chain.Nodes[0].URL
}

// Dial connects to the chain endpoint, retrying transient dial failures.
func Dial(ctx context.Context, chain config.ChainConfig) (*ethclient.Client, error) {
	endpoint := Endpoint(chain)
	var client *ethclient.Client
	err := retry.Exponential(ctx, func() error {
		dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		c, err := ethclient.DialContext(dialCtx, endpoint)
		if err != nil {
			return err
		}
		client = c
		return nil
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxElapsedTime:  time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s node: %w", chain.Name, err)
	}
	return client, nil
}
