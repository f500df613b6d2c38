package cursor

import (
	"context"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/store/blockstore"
)

type kvStore struct {
	blocks blockstore.Store
}

// NewKVStore keeps cursors under progress/<chain>/latest.
func NewKVStore(blocks blockstore.Store) Store {
	return &kvStore{blocks: blocks}
}

func (s *kvStore) Get(_ context.Context, chain enum.Chain) (uint64, bool, error) {
	return s.blocks.Latest(chain)
}

func (s *kvStore) Save(_ context.Context, chain enum.Chain, height uint64) error {
	return s.blocks.SaveLatest(chain, height)
}
