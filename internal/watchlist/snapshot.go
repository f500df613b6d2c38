package watchlist

import (
	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
)

// Reader is what watchers see: the latest complete address set.
type Reader interface {
	Current() *Snapshot
}

type chainSet struct {
	filter    *bloom.BloomFilter
	addresses map[string]struct{}
}

// Snapshot is an immutable set of watched addresses per chain. The bloom
// filter answers most misses before the map is consulted.
type Snapshot struct {
	chains map[enum.Chain]*chainSet
	size   int
}

// Empty is the snapshot used before the first load.
func Empty() *Snapshot {
	return &Snapshot{chains: map[enum.Chain]*chainSet{}}
}

// NewSnapshot builds a snapshot from ledger rows. Addresses are normalised
// per chain so lookups are exact.
func NewSnapshot(rows []*model.DepositAddress, expectedItems uint, fpRate float64) *Snapshot {
	byChain := make(map[enum.Chain][]string)
	for _, r := range rows {
		if r == nil || r.Address == "" {
			continue
		}
		byChain[r.Chain] = append(byChain[r.Chain], r.Chain.NormalizeAddress(r.Address))
	}

	s := &Snapshot{chains: make(map[enum.Chain]*chainSet, len(byChain))}
	for chain, addrs := range byChain {
		n := max(expectedItems, uint(len(addrs)))
		set := &chainSet{
			filter:    bloom.NewWithEstimates(n, fpRate),
			addresses: make(map[string]struct{}, len(addrs)),
		}
		for _, a := range addrs {
			set.filter.AddString(a)
			set.addresses[a] = struct{}{}
		}
		s.chains[chain] = set
		s.size += len(set.addresses)
	}
	return s
}

func (s *Snapshot) Contains(chain enum.Chain, address string) bool {
	set, ok := s.chains[chain]
	if !ok || address == "" {
		return false
	}
	a := chain.NormalizeAddress(address)
	if !set.filter.TestString(a) {
		return false
	}
	_, ok = set.addresses[a]
	return ok
}

// Len is the number of distinct addresses across all chains.
func (s *Snapshot) Len() int { return s.size }

func (s *Snapshot) ChainLen(chain enum.Chain) int {
	if set, ok := s.chains[chain]; ok {
		return len(set.addresses)
	}
	return 0
}
