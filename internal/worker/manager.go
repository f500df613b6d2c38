// Package worker supervises the indexer's long-running tasks. Each task
// runs in its own goroutine and is restarted after a delay when it fails,
// without affecting the others.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/logger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultRestartDelay    = 5 * time.Second
)

type closer struct {
	name string
	fn   func() error
}

type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	restartDelay    time.Duration
	shutdownTimeout time.Duration

	mu      sync.Mutex
	tasks   []Task
	closers []closer
	started bool
}

type Option func(*Manager)

func WithRestartDelay(d time.Duration) Option {
	return func(m *Manager) { m.restartDelay = d }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) { m.shutdownTimeout = d }
}

func NewManager(ctx context.Context, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		ctx:             ctx,
		cancel:          cancel,
		restartDelay:    defaultRestartDelay,
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add registers tasks. Tasks added after Start are launched immediately.
func (m *Manager) Add(tasks ...Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, tasks...)
	if m.started {
		for _, t := range tasks {
			m.launch(t)
		}
	}
}

// OnStop registers a resource closed after all tasks stop, in reverse order.
func (m *Manager) OnStop(name string, fn func() error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, closer{name: name, fn: fn})
}

// Start launches all registered tasks.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	for _, t := range m.tasks {
		m.launch(t)
	}
	logger.Info("Workers started", "tasks", len(m.tasks))
}

func (m *Manager) launch(t Task) {
	m.group.Go(func() error {
		m.supervise(t)
		return nil
	})
}

// supervise reruns t until the manager context ends.
func (m *Manager) supervise(t Task) {
	log := logger.With("task", t.Name())
	for restarts := 0; ; restarts++ {
		err := runTask(m.ctx, t)
		if m.ctx.Err() != nil {
			log.Debug("Task stopped")
			return
		}
		if err != nil {
			log.Error("Task failed, restarting", "err", err, "restarts", restarts, "delay", m.restartDelay)
		} else {
			log.Warn("Task exited, restarting", "restarts", restarts, "delay", m.restartDelay)
		}

		timer := time.NewTimer(m.restartDelay)
		select {
		case <-m.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func runTask(ctx context.Context, t Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.Run(ctx)
}

// Done is closed when Stop is called or the parent context ends.
func (m *Manager) Done() <-chan struct{} { return m.ctx.Done() }

// Stop cancels all tasks, waits up to the shutdown timeout, then closes
// resources.
func (m *Manager) Stop() {
	m.cancel()

	done := make(chan struct{})
	go func() {
		_ = m.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("All workers stopped")
	case <-time.After(m.shutdownTimeout):
		logger.Warn("Worker shutdown timed out, proceeding with resource cleanup",
			"timeout", m.shutdownTimeout)
	}

	m.mu.Lock()
	closers := m.closers
	m.closers = nil
	m.mu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].fn(); err != nil {
			logger.Error("Failed to close "+closers[i].name, "err", err)
		}
	}
	logger.Info("Manager stopped")
}
