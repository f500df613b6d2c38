// Package blockstore keeps per-chain scan progress in a KV backend: the last
// fully processed height and the set of heights that failed to scan.
package blockstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/infra"
	"github.com/fystack/deposit-indexer/pkg/kvstore"
)

var ErrChainRequired = errors.New("chain is required")

func latestKey(chain enum.Chain) string { return "progress/" + chain.String() + "/latest" }
func failedKey(chain enum.Chain) string { return "progress/" + chain.String() + "/failed" }

type Store interface {
	// Latest returns found=false when nothing was saved yet.
	Latest(chain enum.Chain) (height uint64, found bool, err error)
	SaveLatest(chain enum.Chain, height uint64) error

	// Failed lists failed heights in ascending order.
	Failed(chain enum.Chain) ([]uint64, error)
	AddFailed(chain enum.Chain, height uint64) error
	// PopFailed removes and returns the lowest failed height.
	PopFailed(chain enum.Chain) (height uint64, ok bool, err error)

	Close() error
}

type blockStore struct {
	kv infra.KVStore
}

func NewBlockStore(kv infra.KVStore) Store {
	return &blockStore{kv: kv}
}

func (bs *blockStore) Latest(chain enum.Chain) (uint64, bool, error) {
	if chain == "" {
		return 0, false, ErrChainRequired
	}
	raw, err := bs.kv.Get(latestKey(chain))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	h, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cursor for %s: %w", chain, err)
	}
	return h, true, nil
}

func (bs *blockStore) SaveLatest(chain enum.Chain, height uint64) error {
	if chain == "" {
		return ErrChainRequired
	}
	return bs.kv.Put(latestKey(chain), []byte(strconv.FormatUint(height, 10)))
}

func decodeHeights(raw []byte) ([]uint64, error) {
	if raw == nil {
		return nil, nil
	}
	var heights []uint64
	if err := json.Unmarshal(raw, &heights); err != nil {
		return nil, fmt.Errorf("corrupt failed set: %w", err)
	}
	return heights, nil
}

func encodeHeights(heights []uint64) ([]byte, error) {
	if len(heights) == 0 {
		return nil, nil
	}
	return json.Marshal(heights)
}

func (bs *blockStore) Failed(chain enum.Chain) ([]uint64, error) {
	if chain == "" {
		return nil, ErrChainRequired
	}
	raw, err := bs.kv.Get(failedKey(chain))
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeHeights(raw)
}

func (bs *blockStore) AddFailed(chain enum.Chain, height uint64) error {
	if chain == "" {
		return ErrChainRequired
	}
	return bs.kv.Update(failedKey(chain), func(cur []byte) ([]byte, error) {
		heights, err := decodeHeights(cur)
		if err != nil {
			return nil, err
		}
		i, found := slices.BinarySearch(heights, height)
		if found {
			return cur, nil
		}
		return encodeHeights(slices.Insert(heights, i, height))
	})
}

func (bs *blockStore) PopFailed(chain enum.Chain) (uint64, bool, error) {
	if chain == "" {
		return 0, false, ErrChainRequired
	}
	var (
		popped uint64
		ok     bool
	)
	err := bs.kv.Update(failedKey(chain), func(cur []byte) ([]byte, error) {
		popped, ok = 0, false
		heights, err := decodeHeights(cur)
		if err != nil || len(heights) == 0 {
			return cur, err
		}
		popped, ok = heights[0], true
		return encodeHeights(heights[1:])
	})
	if err != nil {
		return 0, false, err
	}
	return popped, ok, nil
}

func (bs *blockStore) Close() error {
	return bs.kv.Close()
}
