package ratelimiter

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles calls to a single RPC endpoint.
type Limiter struct {
	limiter *rate.Limiter
	rps     int
	burst   int
}

// New creates a token bucket refilled at rps tokens per second.
// A non-positive rps disables throttling.
func New(rps, burst int) *Limiter {
	if burst <= 0 {
		burst = max(rps, 1)
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		rps:     rps,
		burst:   burst,
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// TryAcquire takes a token without blocking.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Registry hands out one shared limiter per endpoint so that every
// component talking to the same node shares its budget.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewRegistry() *Registry {
	return &Registry{limiters: make(map[string]*Limiter)}
}

func (r *Registry) Get(endpoint string, rps, burst int) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[endpoint]; ok {
		return l
	}
	l := New(rps, burst)
	r.limiters[endpoint] = l
	return l
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
