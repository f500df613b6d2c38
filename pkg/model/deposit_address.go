package model

import "github.com/fystack/deposit-indexer/pkg/common/enum"

// DepositAddress is owned by the onboarding side; the indexer only reads it.
type DepositAddress struct {
	BaseModel
	Address         string     `gorm:"type:varchar(128);not null;uniqueIndex:idx_deposit_addresses_chain_address" json:"address"`
	Chain           enum.Chain `gorm:"type:varchar(16);not null;uniqueIndex:idx_deposit_addresses_chain_address"  json:"chain"`
	UserID          string     `gorm:"type:varchar(64);not null;index"                                            json:"user_id"`
	DerivationIndex uint32     `gorm:"not null"                                                                   json:"derivation_index"`
	Active          bool       `gorm:"not null;default:true"                                                      json:"active"`
}

func (DepositAddress) TableName() string {
	return "deposit_addresses"
}
