package model

import (
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

type ChainCursor struct {
	Chain     enum.Chain `gorm:"type:varchar(16);primaryKey" json:"chain"`
	Height    uint64     `gorm:"not null"                    json:"height"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (ChainCursor) TableName() string {
	return "chain_cursors"
}

// All returns every ledger table in migration order.
func All() []any {
	return []any{&DepositAddress{}, &Transaction{}, &ChainCursor{}, &FailedBlock{}}
}
