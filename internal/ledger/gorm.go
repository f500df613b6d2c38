package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/fystack/deposit-indexer/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gormStore struct {
	db           *gorm.DB
	addresses    repository.Repository[model.DepositAddress]
	transactions repository.Repository[model.Transaction]
}

func NewGormStore(db *gorm.DB) Store {
	return &gormStore{
		db:           db,
		addresses:    repository.NewRepository[model.DepositAddress](db),
		transactions: repository.NewRepository[model.Transaction](db),
	}
}

// Migrate creates or updates the ledger tables.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(model.All()...)
}

func (s *gormStore) ListDepositAddresses(ctx context.Context) ([]*model.DepositAddress, error) {
	return s.addresses.Find(ctx, repository.FindOptions{
		Select: []string{"address", "chain", "user_id", "derivation_index"},
		Where:  map[string]any{"active": true},
	})
}

func (s *gormStore) Ping(ctx context.Context) error {
	return s.transactions.Ping(ctx)
}

func (s *gormStore) ResolveOwner(ctx context.Context, chain enum.Chain, address string) (string, error) {
	q := s.db.WithContext(ctx).Model(&model.DepositAddress{}).Where("chain = ? AND active = ?", chain, true)
	if chain == enum.ChainEthereum {
		q = q.Where("LOWER(address) = ?", strings.ToLower(address))
	} else {
		q = q.Where("address = ?", address)
	}

	var row model.DepositAddress
	if err := q.Select("user_id").Take(&row).Error; err != nil {
		err = repository.MapError(err)
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAddressNotFound
		}
		return "", err
	}
	if row.UserID == "" {
		return "", ErrAddressNotFound
	}
	return row.UserID, nil
}

func (s *gormStore) InsertPending(ctx context.Context, tx *model.Transaction) (bool, error) {
	tx.Status = enum.TxStatusPending
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blockchain_hash"}},
			DoNothing: true,
		}).
		Create(tx)
	if res.Error != nil {
		return false, repository.MapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) UpdateConfirmations(ctx context.Context, hash string, confirmations uint64) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("blockchain_hash = ? AND status = ? AND confirmations <= ?", hash, enum.TxStatusPending, confirmations).
		Update("confirmations", confirmations)
	if res.Error != nil {
		return false, repository.MapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) MarkTerminal(ctx context.Context, hash string, status enum.TxStatus, confirmations uint64) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("%w: %s", ErrNotTerminalStatus, status)
	}
	res := s.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("blockchain_hash = ? AND status = ?", hash, enum.TxStatusPending).
		Updates(map[string]any{
			"status":        status,
			"confirmations": gorm.Expr("GREATEST(confirmations, ?)", confirmations),
		})
	if res.Error != nil {
		return false, repository.MapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) ListPending(ctx context.Context, chain enum.Chain, after *PendingKey, limit int) ([]*model.Transaction, error) {
	q := s.db.WithContext(ctx).
		Where("chain = ? AND status = ?", chain, enum.TxStatusPending)
	if after != nil {
		q = q.Where("(block_reference, blockchain_hash) > (?, ?)", after.BlockReference, after.Hash)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*model.Transaction
	if err := q.Order("block_reference ASC, blockchain_hash ASC").Find(&rows).Error; err != nil {
		return nil, repository.MapError(err)
	}
	return rows, nil
}

func (s *gormStore) GetTransaction(ctx context.Context, hash string) (*model.Transaction, error) {
	return s.transactions.FindOne(ctx, repository.FindOptions{
		Where: map[string]any{"blockchain_hash": hash},
	})
}
