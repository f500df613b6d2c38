package watcher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/fystack/deposit-indexer/pkg/common/config"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProcessor struct {
	failures map[uint64]int
	done     []uint64
}

func (p *flakyProcessor) ProcessBlock(_ context.Context, _ watchlist.Reader, h uint64) error {
	if p.failures[h] > 0 {
		p.failures[h]--
		return errors.New("still unavailable")
	}
	p.done = append(p.done, h)
	return nil
}

func TestRescanner_Drain(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	for _, h := range []uint64{10, 11, 12} {
		require.NoError(t, queue.Push(ctx, enum.ChainEthereum, h))
	}
	proc := &flakyProcessor{failures: map[uint64]int{11: 1}}
	r := NewRescanner(config.ChainConfig{Name: "ethereum", Chain: enum.ChainEthereum}, proc, queue, 0, nil)
	wl := staticList{snapshot: watchlist.Empty()}

	assert.Equal(t, 2, r.Drain(ctx, wl))
	assert.Equal(t, []uint64{10, 12}, proc.done)
	assert.Equal(t, []uint64{11}, queue.snapshot(enum.ChainEthereum))

	assert.Equal(t, 1, r.Drain(ctx, wl))
	assert.Equal(t, []uint64{10, 12, 11}, proc.done)
	assert.Empty(t, queue.snapshot(enum.ChainEthereum))
}

func TestRescanner_NeverDropsFailingBlock(t *testing.T) {
	ctx := context.Background()
	queue := newMemQueue()
	require.NoError(t, queue.Push(ctx, enum.ChainEthereum, 7))
	proc := &flakyProcessor{failures: map[uint64]int{7: 2*RescannerAlertAfter + 2}}
	reg := prometheus.NewRegistry()
	r := NewRescanner(config.ChainConfig{Name: "ethereum", Chain: enum.ChainEthereum}, proc, queue, 0, metrics.NewMetrics(reg))
	wl := staticList{snapshot: watchlist.Empty()}

	for i := 0; i < 2*RescannerAlertAfter; i++ {
		assert.Equal(t, 0, r.Drain(ctx, wl))
		assert.Equal(t, []uint64{7}, queue.snapshot(enum.ChainEthereum))
	}

	expected := `
# HELP watcher_failed_blocks_total Blocks queued, rescanned or stuck in the failure queue
# TYPE watcher_failed_blocks_total counter
watcher_failed_blocks_total{action="stuck",chain="ethereum"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "watcher_failed_blocks_total"))

	for i := 0; i < RescannerAlertAfter; i++ {
		r.Drain(ctx, wl)
	}
	assert.Equal(t, []uint64{7}, proc.done)
	assert.Empty(t, queue.snapshot(enum.ChainEthereum))
}

type rejectingQueue struct {
	*memQueue
	reject bool
}

func (q *rejectingQueue) Push(ctx context.Context, chain enum.Chain, h uint64) error {
	if q.reject {
		return errors.New("queue unavailable")
	}
	return q.memQueue.Push(ctx, chain, h)
}

func TestRescanner_HoldsBlockWhenRequeueFails(t *testing.T) {
	ctx := context.Background()
	queue := &rejectingQueue{memQueue: newMemQueue()}
	require.NoError(t, queue.Push(ctx, enum.ChainSolana, 300))
	queue.reject = true

	proc := &flakyProcessor{failures: map[uint64]int{300: 1}}
	r := NewRescanner(config.ChainConfig{Name: "solana", Chain: enum.ChainSolana}, proc, queue, 0, nil)
	wl := staticList{snapshot: watchlist.Empty()}

	assert.Equal(t, 0, r.Drain(ctx, wl))
	assert.Empty(t, queue.snapshot(enum.ChainSolana))

	assert.Equal(t, 1, r.Drain(ctx, wl))
	assert.Equal(t, []uint64{300}, proc.done)
}
