// Package cursor persists the last fully processed height (or slot) per
// chain so watchers resume where they stopped.
package cursor

import (
	"context"
	"sync"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type Store interface {
	// Get returns found=false when the chain has never saved a cursor.
	Get(ctx context.Context, chain enum.Chain) (height uint64, found bool, err error)
	Save(ctx context.Context, chain enum.Chain, height uint64) error
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.Mutex
	heights map[enum.Chain]uint64
}

func NewMemory() *Memory {
	return &Memory{heights: make(map[enum.Chain]uint64)}
}

func (m *Memory) Get(_ context.Context, chain enum.Chain) (uint64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.heights[chain]
	return h, ok, nil
}

func (m *Memory) Save(_ context.Context, chain enum.Chain, height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heights[chain] = height
	return nil
}
