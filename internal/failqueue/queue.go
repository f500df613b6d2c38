// Package failqueue remembers block heights (or slots) a watcher could not
// scan so a rescanner can retry them later.
package failqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/fystack/deposit-indexer/pkg/store/blockstore"
)

// ErrDisabled is returned by the Noop queue; a height pushed there is not kept.
var ErrDisabled = errors.New("failure queue disabled")

type Queue interface {
	Push(ctx context.Context, chain enum.Chain, height uint64) error
	// Pop returns ok=false when the queue is empty.
	Pop(ctx context.Context, chain enum.Chain) (height uint64, ok bool, err error)
}

func redisKey(chain enum.Chain) string {
	return "failed_blocks:" + chain.String()
}

type redisQueue struct {
	client infra.RedisClient
}

// NewRedisQueue stores heights in the list failed_blocks:<chain>, oldest first out.
func NewRedisQueue(client infra.RedisClient) Queue {
	return &redisQueue{client: client}
}

func (q *redisQueue) Push(ctx context.Context, chain enum.Chain, height uint64) error {
	return q.client.LPush(ctx, redisKey(chain), strconv.FormatUint(height, 10))
}

func (q *redisQueue) Pop(ctx context.Context, chain enum.Chain) (uint64, bool, error) {
	raw, err := q.client.RPop(ctx, redisKey(chain))
	if errors.Is(err, infra.ErrNil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	h, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid height %q in %s: %w", raw, redisKey(chain), err)
	}
	return h, true, nil
}

type kvQueue struct {
	blocks blockstore.Store
}

// NewKVQueue keeps the failed set in the KV store; lowest height pops first.
func NewKVQueue(blocks blockstore.Store) Queue {
	return &kvQueue{blocks: blocks}
}

func (q *kvQueue) Push(_ context.Context, chain enum.Chain, height uint64) error {
	return q.blocks.AddFailed(chain, height)
}

func (q *kvQueue) Pop(_ context.Context, chain enum.Chain) (uint64, bool, error) {
	return q.blocks.PopFailed(chain)
}

type noopQueue struct{}

// Noop keeps nothing. Push fails so callers never treat a height as saved.
func Noop() Queue { return noopQueue{} }

func (noopQueue) Push(context.Context, enum.Chain, uint64) error { return ErrDisabled }
func (noopQueue) Pop(context.Context, enum.Chain) (uint64, bool, error) {
	return 0, false, nil
}
