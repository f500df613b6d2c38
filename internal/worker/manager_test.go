package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/deposit-indexer/internal/watchlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_FailingTaskDoesNotAffectOthers(t *testing.T) {
	var failures, ticks atomic.Int32

	m := NewManager(context.Background(), WithRestartDelay(time.Millisecond))
	m.Add(
		TaskFunc("watcher-bitcoin", func(ctx context.Context) error {
			failures.Add(1)
			return errors.New("connection refused")
		}),
		TaskFunc("watcher-ethereum", func(ctx context.Context) error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Millisecond):
					ticks.Add(1)
				}
			}
		}),
	)
	m.Start()

	require.Eventually(t, func() bool {
		return failures.Load() >= 3 && ticks.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	m.Stop()
	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no task runs after Stop")
}

func TestManager_RecoversPanics(t *testing.T) {
	var runs atomic.Int32
	m := NewManager(context.Background(), WithRestartDelay(time.Millisecond))
	m.Add(TaskFunc("tracker-solana", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("nil block")
		}
		<-ctx.Done()
		return nil
	}))
	m.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

func TestManager_StopClosesResourcesInReverse(t *testing.T) {
	var mu sync.Mutex
	var order []string
	closeFn := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	m := NewManager(context.Background())
	m.OnStop("database", closeFn("database"))
	m.OnStop("emitter", closeFn("emitter"))
	m.OnStop("redis", func() error { return errors.New("already closed") })
	m.Start()
	m.Stop()

	assert.Equal(t, []string{"emitter", "database"}, order)
	select {
	case <-m.Done():
	default:
		t.Fatal("manager context not cancelled")
	}
}

func TestManager_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	m := NewManager(context.Background(), WithShutdownTimeout(20*time.Millisecond))
	m.Add(TaskFunc("stuck", func(context.Context) error {
		<-release
		return nil
	}))
	m.Start()

	start := time.Now()
	m.Stop()
	assert.Less(t, time.Since(start), time.Second)
}

type fakeScanner struct {
	got watchlist.Reader
}

func (f *fakeScanner) Name() string { return "watcher-solana" }
func (f *fakeScanner) Start(ctx context.Context, wl watchlist.Reader) error {
	f.got = wl
	return nil
}

type emptyList struct{}

func (emptyList) Current() *watchlist.Snapshot { return watchlist.Empty() }

func TestScanTask(t *testing.T) {
	s := &fakeScanner{}
	task := ScanTask(s, emptyList{})
	assert.Equal(t, "watcher-solana", task.Name())
	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, emptyList{}, s.got)
}
