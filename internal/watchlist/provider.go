// Package watchlist holds the deposit addresses watchers match against.
// Refreshes replace the whole set; readers never see a partial update.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
)

type Provider struct {
	source   ledger.AddressSource
	cfg      config.WatchlistConfig
	current  atomic.Pointer[Snapshot]
	log      *slog.Logger
	lastLoad atomic.Int64
}

func NewProvider(source ledger.AddressSource, cfg config.WatchlistConfig) *Provider {
	p := &Provider{
		source: source,
		cfg:    cfg,
		log:    logger.With("component", "watchlist"),
	}
	p.current.Store(Empty())
	return p
}

func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Refresh reads the full address set and swaps it in. On error the
// previous snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	rows, err := p.source.ListDepositAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list deposit addresses: %w", err)
	}
	snap := NewSnapshot(rows, p.cfg.ExpectedItems, p.cfg.FalsePositiveRate)
	p.current.Store(snap)
	p.lastLoad.Store(time.Now().Unix())
	return snap, nil
}

// Load performs the initial refresh. Watchers must not start on failure.
func (p *Provider) Load(ctx context.Context) error {
	snap, err := p.Refresh(ctx)
	if err != nil {
		return err
	}
	p.log.Info("Watch-list loaded", "addresses", snap.Len())
	return nil
}

// LastLoad is the unix time of the last successful refresh, 0 if none.
func (p *Provider) LastLoad() int64 {
	return p.lastLoad.Load()
}

// Run refreshes on a fixed interval until ctx is done.
func (p *Provider) Run(ctx context.Context) error {
	interval := p.cfg.RefreshInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prev := p.Current().Len()
			snap, err := p.Refresh(ctx)
			if err != nil {
				p.log.Warn("Watch-list refresh failed, keeping previous set", "err", err, "addresses", prev)
				continue
			}
			if snap.Len() != prev {
				p.log.Info("Watch-list refreshed", "addresses", snap.Len(), "previous", prev)
			}
		}
	}
}
