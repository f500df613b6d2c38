package model

import (
	"time"

	"github.com/fystack/deposit-indexer/pkg/common/enum"
)

// FailedBlock is a height or slot a watcher could not scan. Rows are removed
// once a rescan succeeds.
type FailedBlock struct {
	Chain     enum.Chain `gorm:"type:varchar(16);primaryKey" json:"chain"`
	Height    uint64     `gorm:"primaryKey;autoIncrement:false" json:"height"`
	CreatedAt time.Time  `json:"created_at"`
}

func (FailedBlock) TableName() string {
	return "failed_blocks"
}
