package rpc

import (
	"fmt"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/fystack/deposit-indexer/pkg/ratelimiter"
)

// ClientBuilder constructs one chain client for a node.
type ClientBuilder[T NetworkClient] func(url string, auth *AuthConfig, timeout time.Duration, limiter *ratelimiter.Limiter) T

type observable interface {
	SetObserver(CallObserver)
}

// NewFailoverFromConfig wires one provider per configured node. Nodes that
// share a URL share a limiter through the registry. m may be nil.
func NewFailoverFromConfig[T NetworkClient](
	chain config.ChainConfig,
	limiters *ratelimiter.Registry,
	m *metrics.Metrics,
	build ClientBuilder[T],
) (*Failover[T], error) {
	fc := DefaultFailoverConfig()
	if chain.Client.MaxRetries > 0 {
		fc.MaxAttempts = chain.Client.MaxRetries
	}
	if chain.Client.RetryDelay > 0 {
		fc.RetryInterval = chain.Client.RetryDelay
	}
	f := NewFailover[T](&fc)

	for i, node := range chain.Nodes {
		var limiter *ratelimiter.Limiter
		if limiters != nil {
			limiter = limiters.Get(node.URL, chain.Throttle.RPS, chain.Throttle.Burst)
		}
		client := build(node.URL, NodeToAuthConfig(node), chain.Client.Timeout, limiter)
		if o, ok := any(client).(observable); ok && m != nil {
			o.SetObserver(func(method string, err error, elapsed time.Duration) {
				m.ObserveRPC(chain.Name, method, err, elapsed)
			})
		}
		err := f.AddProvider(&Provider{
			Name:   fmt.Sprintf("%s-%d", chain.Name, i+1),
			URL:    node.URL,
			Client: client,
		})
		if err != nil {
			return nil, err
		}
	}
	if f.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", chain.Name, ErrNoProvider)
	}
	return f, nil
}
