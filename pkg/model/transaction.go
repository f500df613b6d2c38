package model

import (
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/shopspring/decimal"
)

// Transaction is one observed inbound native transfer. BlockchainHash is the
// natural key; Amount is in the chain's smallest unit.
type Transaction struct {
	BaseModel
	BlockchainHash      string          `gorm:"type:varchar(128);not null;uniqueIndex:idx_transactions_hash" json:"blockchain_hash"`
	DepositAddress      string          `gorm:"type:varchar(128);not null;index"                             json:"deposit_address"`
	CounterpartyAddress string          `gorm:"type:varchar(128)"                                            json:"counterparty_address"`
	Chain               enum.Chain      `gorm:"type:varchar(16);not null;index:idx_transactions_chain_status" json:"chain"`
	Currency            string          `gorm:"type:varchar(16);not null"                                    json:"currency"`
	Amount              decimal.Decimal `gorm:"type:numeric(78,0);not null"                                  json:"amount"`
	Status              enum.TxStatus   `gorm:"type:varchar(16);not null;default:pending;index:idx_transactions_chain_status" json:"status"`
	Confirmations       uint64          `gorm:"not null;default:0"                                           json:"confirmations"`
	BlockReference      uint64          `gorm:"not null"                                                     json:"block_reference"`
	OwningUserID        string          `gorm:"type:varchar(64);not null;index"                              json:"owning_user_id"`
}

func (Transaction) TableName() string {
	return "transactions"
}
