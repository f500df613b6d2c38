package events

import (
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/fystack/deposit-indexer/pkg/model"
)

type EventType string

const (
	DepositDetected  EventType = "deposit.detected"
	DepositConfirmed EventType = "deposit.confirmed"
	DepositFailed    EventType = "deposit.failed"
	// DepositUnrecorded reports a watched transfer that has no ledger row,
	// e.g. a second destination of a transaction already recorded.
	DepositUnrecorded EventType = "deposit.unrecorded"
	SweepCompleted   EventType = "sweep.completed"
)

// DepositEvent mirrors a ledger row at the moment of the transition.
// Amount stays a decimal string in the smallest unit.
type DepositEvent struct {
	Type           EventType     `json:"type"`
	Chain          enum.Chain    `json:"chain"`
	TxHash         string        `json:"tx_hash"`
	DepositAddress string        `json:"deposit_address"`
	FromAddress    string        `json:"from_address"`
	Currency       string        `json:"currency"`
	Amount         string        `json:"amount"`
	Status         enum.TxStatus `json:"status"`
	Confirmations  uint64        `json:"confirmations"`
	BlockReference uint64        `json:"block_reference"`
	OwningUserID   string        `json:"owning_user_id"`
	Timestamp      int64         `json:"timestamp"`
}

type SweepEvent struct {
	Type      EventType  `json:"type"`
	Chain     enum.Chain `json:"chain"`
	Index     uint32     `json:"index"`
	From      string     `json:"from"`
	To        string     `json:"to"`
	TxHashes  []string   `json:"tx_hashes"`
	Amount    string     `json:"amount"`
	Timestamp int64      `json:"timestamp"`
}

func NewDepositEvent(t EventType, tx *model.Transaction) DepositEvent {
	return DepositEvent{
		Type:           t,
		Chain:          tx.Chain,
		TxHash:         tx.BlockchainHash,
		DepositAddress: tx.DepositAddress,
		FromAddress:    tx.CounterpartyAddress,
		Currency:       tx.Currency,
		Amount:         tx.Amount.String(),
		Status:         tx.Status,
		Confirmations:  tx.Confirmations,
		BlockReference: tx.BlockReference,
		OwningUserID:   tx.OwningUserID,
	}
}
