package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fystack/deposit-indexer/internal/failqueue"
	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"github.com/fystack/deposit-indexer/pkg/metrics"
)

const (
	// RescannerAlertAfter is the attempt count at which a height is reported
	// as stuck. It stays queued either way.
	RescannerAlertAfter = 5
	RescannerInterval   = 30 * time.Second
	rescannerBatch      = 50
)

// Rescanner drains a chain's failure queue through the watcher's
// BlockProcessor. Heights that keep failing are requeued indefinitely; every
// RescannerAlertAfter failed attempts they are counted as stuck.
type Rescanner struct {
	chain     config.ChainConfig
	processor BlockProcessor
	queue     failqueue.Queue
	metrics   *metrics.Metrics
	interval  time.Duration
	log       *slog.Logger

	attempts map[uint64]int
	// held are heights that failed and could not be requeued
	held []uint64
}

func NewRescanner(chain config.ChainConfig, processor BlockProcessor, queue failqueue.Queue, interval time.Duration, m *metrics.Metrics) *Rescanner {
	if interval <= 0 {
		interval = RescannerInterval
	}
	return &Rescanner{
		chain:     chain,
		processor: processor,
		queue:     queue,
		metrics:   m,
		interval:  interval,
		log:       logger.With("component", "rescanner", "chain", chain.Name),
		attempts:  make(map[uint64]int),
	}
}

func (r *Rescanner) Name() string { return "rescanner-" + r.chain.Name }

func (r *Rescanner) Start(ctx context.Context, wl watchlist.Reader) error {
	r.log.Info("Starting rescanner", "interval", r.interval, "alert_after", RescannerAlertAfter)
	for {
		if !sleep(ctx, r.interval) {
			return nil
		}
		r.Drain(ctx, wl)
	}
}

// Drain processes up to one batch of queued heights, held heights first.
func (r *Rescanner) Drain(ctx context.Context, wl watchlist.Reader) int {
	var retryLater []uint64
	processed := 0

	try := func(h uint64) {
		if err := r.processor.ProcessBlock(ctx, wl, h); err != nil {
			r.attempts[h]++
			n := r.attempts[h]
			if n%RescannerAlertAfter == 0 {
				r.metrics.FailedBlock(r.chain.Name, metrics.FailedBlockStuck)
				r.log.Error("Block keeps failing, still queued", "block", h, "attempts", n, "err", err)
			} else {
				r.log.Warn("Rescan failed, requeueing", "block", h, "attempt", n, "err", err)
			}
			retryLater = append(retryLater, h)
			return
		}
		delete(r.attempts, h)
		processed++
		r.metrics.FailedBlock(r.chain.Name, metrics.FailedBlockRescanned)
		r.log.Info("Rescanned block", "block", h)
	}

	held := r.held
	r.held = nil
	for _, h := range held {
		try(h)
	}

	for i := 0; i < rescannerBatch && ctx.Err() == nil; i++ {
		h, ok, err := r.queue.Pop(ctx, r.chain.Chain)
		if err != nil {
			r.log.Warn("Failed to pop failed block", "err", err)
			break
		}
		if !ok {
			break
		}
		try(h)
	}

	for _, h := range retryLater {
		if err := r.queue.Push(ctx, r.chain.Chain, h); err != nil {
			r.log.Warn("Failed to requeue block, holding it in memory", "block", h, "err", err)
			r.held = append(r.held, h)
		}
	}
	return processed
}
