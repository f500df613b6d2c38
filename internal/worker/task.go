package worker

import (
	"context"

	"github.com/fystack/deposit-indexer/internal/watchlist"
)

// Task is one long-running loop supervised by the Manager.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

func TaskFunc(name string, fn func(ctx context.Context) error) Task {
	return funcTask{name: name, fn: fn}
}

// Scanner is implemented by chain watchers and rescanners.
type Scanner interface {
	Name() string
	Start(ctx context.Context, wl watchlist.Reader) error
}

// ScanTask binds a scanner to the shared watch-list.
func ScanTask(s Scanner, wl watchlist.Reader) Task {
	return TaskFunc(s.Name(), func(ctx context.Context) error {
		return s.Start(ctx, wl)
	})
}
