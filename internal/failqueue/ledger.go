package failqueue

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

type ledgerQueue struct {
	db *gorm.DB
}

// NewLedgerQueue keeps failed heights in the failed_blocks table. It is the
// fallback when neither redis nor a KV store is configured.
func NewLedgerQueue(db *gorm.DB) Queue {
	return &ledgerQueue{db: db}
}

func (q *ledgerQueue) Push(ctx context.Context, chain enum.Chain, height uint64) error {
	row := model.FailedBlock{Chain: chain, Height: height, CreatedAt: time.Now().UTC()}
	err := q.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	return repository.MapError(err)
}

// Pop removes and returns the lowest height. Concurrent poppers skip rows
// another transaction holds.
func (q *ledgerQueue) Pop(ctx context.Context, chain enum.Chain) (uint64, bool, error) {
	var (
		row   model.FailedBlock
		found bool
	)
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("chain = ?", chain).
			Order("height ASC").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return tx.Where("chain = ? AND height = ?", chain, row.Height).Delete(&model.FailedBlock{}).Error
	})
	if err != nil {
		return 0, false, repository.MapError(err)
	}
	return row.Height, found, nil
}
