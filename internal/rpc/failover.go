package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/retry"
)

var ErrNoProvider = errors.New("no providers available")

const banLogInterval = 30 * time.Second

// FailoverConfig defines runtime behavior of the failover system.
type FailoverConfig struct {
	EnableBlacklisting bool
	ErrorThreshold     int
	MaxAttempts        int
	RetryInterval      time.Duration
	SlowResponse       time.Duration
}

func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		EnableBlacklisting: true,
		ErrorThreshold:     5,
		MaxAttempts:        retry.DefaultMaxAttempts,
		RetryInterval:      retry.DefaultInterval,
		SlowResponse:       5 * time.Second,
	}
}

// Failover routes calls to one node of a chain at a time and moves to the
// next node when the current one is banned.
type Failover[T NetworkClient] struct {
	mu        sync.Mutex
	providers []*Provider
	current   int
	config    FailoverConfig
	now       func() time.Time
}

func NewFailover[T NetworkClient](config *FailoverConfig) *Failover[T] {
	if config == nil {
		c := DefaultFailoverConfig()
		config = &c
	}
	return &Failover[T]{config: *config, now: time.Now}
}

// AddProvider adds a provider, ensuring its Client is of type T.
func (f *Failover[T]) AddProvider(p *Provider) error {
	if _, ok := p.Client.(T); !ok {
		return fmt.Errorf("invalid provider client type: expected %T, got %T", *new(T), p.Client)
	}
	p.warn.Interval = banLogInterval
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers = append(f.providers, p)
	return nil
}

func (f *Failover[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.providers)
}

// GetBestProvider returns the current provider when usable, else the next
// usable one in configuration order. With every node banned the one whose
// ban ends first is forced back.
func (f *Failover[T]) GetBestProvider() (*Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.providers)
	if n == 0 {
		return nil, ErrNoProvider
	}
	now := f.now()
	for i := range n {
		idx := (f.current + i) % n
		p := f.providers[idx]
		if !p.available(now) {
			continue
		}
		if idx != f.current {
			logger.Info("Switching provider", "from", f.providers[f.current].Name, "to", p.Name)
			f.current = idx
		}
		return p, nil
	}

	if !f.config.EnableBlacklisting {
		return nil, ErrNoProvider
	}
	soonest := 0
	for i, p := range f.providers {
		if p.Health().BannedUntil.Before(f.providers[soonest].Health().BannedUntil) {
			soonest = i
		}
	}
	p := f.providers[soonest]
	p.unban()
	f.current = soonest
	logger.Warn("All providers banned, forcing one back", "provider", p.Name)
	return p, nil
}

func (f *Failover[T]) call(p *Provider, fn func(T) error) error {
	client, ok := p.Client.(T)
	if !ok {
		return fmt.Errorf("provider client type mismatch: expected %T, got %T", *new(T), p.Client)
	}

	start := f.now()
	err := fn(client)
	elapsed := f.now().Sub(start)
	if err == nil {
		p.succeed(elapsed)
		return nil
	}

	issue := f.analyzeError(err, elapsed)
	if issue.Ban && f.config.EnableBlacklisting {
		p.warn.Do(func() {
			logger.Warn("Blacklisting provider", "provider", p.Name, "reason", issue.Reason, "cooldown", issue.Cooldown)
		})
		p.ban(issue.Cooldown, f.now())
		return err
	}
	p.fail(f.config.ErrorThreshold)
	return err
}

// ExecuteWithRetry runs fn with automatic failover and bounded retry.
// JSON-RPC application errors are returned without retrying.
func (f *Failover[T]) ExecuteWithRetry(ctx context.Context, fn func(T) error) error {
	return retry.Constant(ctx, func() error {
		p, err := f.GetBestProvider()
		if err != nil {
			return retry.Permanent(err)
		}
		err = f.call(p, fn)
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && !retryableRPCError(rpcErr) {
			return retry.Permanent(err)
		}
		return err
	}, f.config.RetryInterval, f.config.MaxAttempts)
}

func retryableRPCError(e *RPCError) bool {
	msg := strings.ToLower(e.Message)
	return e.Code == 429 || e.Code == -32005 || strings.Contains(msg, "rate limit") || strings.Contains(msg, "timeout")
}

// ProviderIssue is the classification of one failed call.
type ProviderIssue struct {
	Reason   string
	Cooldown time.Duration
	Ban      bool
}

var errorPatterns = []struct {
	needles  []string
	reason   string
	cooldown time.Duration
}{
	{[]string{"rate limit", "429", "too many requests"}, "rate_limit", 5 * time.Minute},
	{[]string{"exceeded the quota", "quota usage", "quota limit"}, "quota_exceeded", 5 * time.Minute},
	{[]string{"forbidden", "403", "401", "unauthorized"}, "forbidden", time.Hour},
	{[]string{"timeout", "deadline exceeded"}, "timeout", 3 * time.Minute},
	{[]string{"http 502", "http 503", "http 504", "bad gateway", "service unavailable"}, "upstream_unavailable", time.Minute},
	{[]string{"eof", "connection reset", "connection refused", "broken pipe", "no such host"}, "connection_error", 2 * time.Minute},
}

func (f *Failover[T]) analyzeError(err error, elapsed time.Duration) ProviderIssue {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && !retryableRPCError(rpcErr) {
		return ProviderIssue{Reason: "rpc_error"}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(msg, needle) {
				return ProviderIssue{Reason: p.reason, Cooldown: p.cooldown, Ban: true}
			}
		}
	}
	if f.config.SlowResponse > 0 && elapsed > f.config.SlowResponse {
		return ProviderIssue{Reason: "slow_response", Cooldown: 2 * time.Minute, Ban: true}
	}
	return ProviderIssue{Reason: "generic_error"}
}
