package failqueue

import (
	"context"
	"testing"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/fystack/deposit-indexer/pkg/kvstore"
	"github.com/fystack/deposit-indexer/pkg/store/blockstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is a list-only stand-in for infra.RedisClient.
type fakeRedis struct {
	lists map[string][]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{lists: map[string][]string{}} }

func (f *fakeRedis) LPush(_ context.Context, key string, values ...any) error {
	for _, v := range values {
		f.lists[key] = append([]string{v.(string)}, f.lists[key]...)
	}
	return nil
}

func (f *fakeRedis) RPop(_ context.Context, key string) (string, error) {
	l := f.lists[key]
	if len(l) == 0 {
		return "", infra.ErrNil
	}
	v := l[len(l)-1]
	f.lists[key] = l[:len(l)-1]
	return v, nil
}

func (f *fakeRedis) LLen(_ context.Context, key string) (int64, error) {
	return int64(len(f.lists[key])), nil
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	r := newFakeRedis()
	q := NewRedisQueue(r)

	require.NoError(t, q.Push(ctx, enum.ChainEthereum, 100))
	require.NoError(t, q.Push(ctx, enum.ChainEthereum, 101))
	assert.Len(t, r.lists["failed_blocks:ethereum"], 2)

	h, ok, err := q.Pop(ctx, enum.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), h)

	h, ok, err = q.Pop(ctx, enum.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(101), h)

	_, ok, err = q.Pop(ctx, enum.ChainEthereum)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisQueue_ChainsAreSeparate(t *testing.T) {
	ctx := context.Background()
	q := NewRedisQueue(newFakeRedis())

	require.NoError(t, q.Push(ctx, enum.ChainSolana, 7))
	_, ok, err := q.Pop(ctx, enum.ChainBitcoin)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVQueue(t *testing.T) {
	ctx := context.Background()
	kv, err := kvstore.NewBadgerStore("", "")
	require.NoError(t, err)
	bs := blockstore.NewBlockStore(kv)
	t.Cleanup(func() { _ = bs.Close() })

	q := NewKVQueue(bs)
	require.NoError(t, q.Push(ctx, enum.ChainBitcoin, 502))
	require.NoError(t, q.Push(ctx, enum.ChainBitcoin, 501))

	h, ok, err := q.Pop(ctx, enum.ChainBitcoin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(501), h)

	h, _, err = q.Pop(ctx, enum.ChainBitcoin)
	require.NoError(t, err)
	assert.Equal(t, uint64(502), h)

	_, ok, err = q.Pop(ctx, enum.ChainBitcoin)
	require.NoError(t, err)
	assert.False(t, ok)
}
