package rpc

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type ProviderState int

const (
	StateHealthy ProviderState = iota
	StateDegraded
	StateUnhealthy
	StateBlacklisted
)

func (s ProviderState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnhealthy:
		return "unhealthy"
	case StateBlacklisted:
		return "blacklisted"
	}
	return "unknown"
}

// Provider is one configured node endpoint and its health.
type Provider struct {
	Name   string
	URL    string
	Client NetworkClient

	// warn throttles blacklist logs for this provider.
	warn rate.Sometimes

	mu          sync.RWMutex
	state       ProviderState
	latency     time.Duration
	bannedUntil time.Time
	errors      int
}

// ProviderHealth is a point-in-time copy of a provider's state.
type ProviderHealth struct {
	State       ProviderState
	Latency     time.Duration
	BannedUntil time.Time
	Errors      int
}

func (p *Provider) Health() ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProviderHealth{State: p.state, Latency: p.latency, BannedUntil: p.bannedUntil, Errors: p.errors}
}

// available reports whether calls may go to p. An expired ban is lifted.
func (p *Provider) available(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateBlacklisted {
		return true
	}
	if now.Before(p.bannedUntil) {
		return false
	}
	p.state, p.bannedUntil, p.errors = StateDegraded, time.Time{}, 0
	return true
}

// fail counts a soft error; threshold consecutive errors mark p unhealthy.
func (p *Provider) fail(threshold int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateBlacklisted {
		return
	}
	p.errors++
	switch {
	case p.errors >= threshold:
		p.state = StateUnhealthy
	case p.errors >= 2:
		p.state = StateDegraded
	}
}

func (p *Provider) ban(d time.Duration, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateBlacklisted
	p.bannedUntil = now.Add(d)
}

// unban forces p back into rotation.
func (p *Provider) unban() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state, p.bannedUntil, p.errors = StateDegraded, time.Time{}, 0
}

// succeed resets the error streak and folds elapsed into an exponential
// moving latency average (alpha 1/4).
func (p *Provider) succeed(elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = 0
	p.state = StateHealthy
	if p.latency == 0 {
		p.latency = elapsed
		return
	}
	p.latency += (elapsed - p.latency) / 4
}
