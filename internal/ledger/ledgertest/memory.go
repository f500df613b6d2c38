// Package ledgertest provides an in-memory ledger.Store with the same
// conditional write rules as the postgres store.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fystack/deposit-indexer/internal/ledger"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/fystack/deposit-indexer/pkg/repository"
)

type Store struct {
	mu        sync.Mutex
	txs       map[string]*model.Transaction
	addresses []*model.DepositAddress

	// ListErr, when set, is returned by ListDepositAddresses.
	ListErr error
}

func New() *Store {
	return &Store{txs: make(map[string]*model.Transaction)}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) AddAddress(chain enum.Chain, address, userID string, index uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses = append(s.addresses, &model.DepositAddress{
		Address: address, Chain: chain, UserID: userID, DerivationIndex: index, Active: true,
	})
}

func (s *Store) ListDepositAddresses(context.Context) ([]*model.DepositAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]*model.DepositAddress, 0, len(s.addresses))
	for _, a := range s.addresses {
		if a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ResolveOwner(_ context.Context, chain enum.Chain, address string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.addresses {
		if a.Chain != chain || !a.Active {
			continue
		}
		if a.Address == address || (chain == enum.ChainEthereum && strings.EqualFold(a.Address, address)) {
			return a.UserID, nil
		}
	}
	return "", ledger.ErrAddressNotFound
}

func (s *Store) InsertPending(_ context.Context, tx *model.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[tx.BlockchainHash]; ok {
		return false, nil
	}
	cp := *tx
	cp.Status = enum.TxStatusPending
	s.txs[tx.BlockchainHash] = &cp
	return true, nil
}

func (s *Store) UpdateConfirmations(_ context.Context, hash string, confirmations uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[hash]
	if !ok || tx.Status != enum.TxStatusPending || tx.Confirmations > confirmations {
		return false, nil
	}
	tx.Confirmations = confirmations
	return true, nil
}

func (s *Store) MarkTerminal(_ context.Context, hash string, status enum.TxStatus, confirmations uint64) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("%w: %s", ledger.ErrNotTerminalStatus, status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[hash]
	if !ok || tx.Status != enum.TxStatusPending {
		return false, nil
	}
	tx.Status = status
	tx.Confirmations = max(tx.Confirmations, confirmations)
	return true, nil
}

func (s *Store) ListPending(_ context.Context, chain enum.Chain, after *ledger.PendingKey, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Transaction, 0)
	for _, tx := range s.txs {
		if tx.Chain == chain && tx.Status == enum.TxStatusPending && pastKey(tx, after) {
			cp := *tx
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockReference != out[j].BlockReference {
			return out[i].BlockReference < out[j].BlockReference
		}
		return out[i].BlockchainHash < out[j].BlockchainHash
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func pastKey(tx *model.Transaction, after *ledger.PendingKey) bool {
	if after == nil {
		return true
	}
	if tx.BlockReference != after.BlockReference {
		return tx.BlockReference > after.BlockReference
	}
	return tx.BlockchainHash > after.Hash
}

func (s *Store) GetTransaction(_ context.Context, hash string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *tx
	return &cp, nil
}

// Len is the number of stored transactions.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}
