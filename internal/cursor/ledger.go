package cursor

import (
	"context"
	"errors"
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
	"github.com/fystack/deposit-indexer/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerStore struct {
	db *gorm.DB
}

// NewLedgerStore keeps cursors in the chain_cursors table next to the
// transactions they describe.
func NewLedgerStore(db *gorm.DB) Store {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) Get(ctx context.Context, chain enum.Chain) (uint64, bool, error) {
	var row model.ChainCursor
	err := s.db.WithContext(ctx).Where("chain = ?", chain).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, repository.MapError(err)
	}
	return row.Height, true, nil
}

func (s *ledgerStore) Save(ctx context.Context, chain enum.Chain, height uint64) error {
	row := model.ChainCursor{Chain: chain, Height: height, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chain"}},
			DoUpdates: clause.AssignmentColumns([]string{"height", "updated_at"}),
		}).
		Create(&row).Error
	return repository.MapError(err)
}
