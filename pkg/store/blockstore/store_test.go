package blockstore

import (
	"testing"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) Store {
	t.Helper()
	kv, err := kvstore.NewBadgerStore("", "")
	require.NoError(t, err)
	bs := NewBlockStore(kv)
	t.Cleanup(func() { _ = bs.Close() })
	return bs
}

func TestLatest(t *testing.T) {
	bs := newStore(t)

	_, found, err := bs.Latest(enum.ChainBitcoin)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, bs.SaveLatest(enum.ChainBitcoin, 503))
	h, found, err := bs.Latest(enum.ChainBitcoin)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(503), h)

	assert.ErrorIs(t, bs.SaveLatest("", 1), ErrChainRequired)
}

func TestFailedSet(t *testing.T) {
	bs := newStore(t)

	require.NoError(t, bs.AddFailed(enum.ChainEthereum, 12))
	require.NoError(t, bs.AddFailed(enum.ChainEthereum, 10))
	require.NoError(t, bs.AddFailed(enum.ChainEthereum, 12))
	require.NoError(t, bs.AddFailed(enum.ChainSolana, 7))

	heights, err := bs.Failed(enum.ChainEthereum)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 12}, heights)

	h, ok, err := bs.PopFailed(enum.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(10), h)

	h, ok, err = bs.PopFailed(enum.ChainEthereum)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(12), h)

	_, ok, err = bs.PopFailed(enum.ChainEthereum)
	require.NoError(t, err)
	assert.False(t, ok)

	heights, err = bs.Failed(enum.ChainSolana)
	require.NoError(t, err)
	assert.Equal(t, []uint64{7}, heights)
}
