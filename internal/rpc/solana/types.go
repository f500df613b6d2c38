package solana

import (
	"encoding/json"
)

const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"

	SystemProgram = "system"
)

type GetBlockConfig struct {
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	Rewards                        bool   `json:"rewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
	Commitment                     string `json:"commitment,omitempty"`
}

type GetBlockResult struct {
	Blockhash         string     `json:"blockhash"`
	PreviousBlockhash string     `json:"previousBlockhash"`
	ParentSlot        uint64     `json:"parentSlot"`
	BlockTime         *int64     `json:"blockTime"`
	BlockHeight       *uint64    `json:"blockHeight"`
	Transactions      []BlockTxn `json:"transactions"`
}

type BlockTxn struct {
	Meta        *TxnMeta    `json:"meta"`
	Transaction TxnEnvelope `json:"transaction"`
}

// Succeeded is false for failed transactions and ones without meta.
func (t *BlockTxn) Succeeded() bool {
	return t.Meta != nil && t.Meta.Err == nil
}

func (t *BlockTxn) Signature() string {
	if len(t.Transaction.Signatures) == 0 {
		return ""
	}
	return t.Transaction.Signatures[0]
}

// AllInstructions returns outer instructions followed by inner ones.
func (t *BlockTxn) AllInstructions() []Instruction {
	out := append([]Instruction(nil), t.Transaction.Message.Instructions...)
	if t.Meta != nil {
		for _, inner := range t.Meta.InnerInstructions {
			out = append(out, inner.Instructions...)
		}
	}
	return out
}

type TxnMeta struct {
	Err               any                `json:"err"`
	Fee               uint64             `json:"fee"`
	PreBalances       []uint64           `json:"preBalances"`
	PostBalances      []uint64           `json:"postBalances"`
	InnerInstructions []InnerInstruction `json:"innerInstructions"`
}

type InnerInstruction struct {
	Index        uint64        `json:"index"`
	Instructions []Instruction `json:"instructions"`
}

type TxnEnvelope struct {
	Message struct {
		AccountKeys  []AccountKey  `json:"accountKeys"`
		Instructions []Instruction `json:"instructions"`
	} `json:"message"`
	Signatures []string `json:"signatures"`
}

type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// Instruction in jsonParsed form. Parsed is an object for known programs,
// a string for some (memo), and absent otherwise.
type Instruction struct {
	Program   string          `json:"program"`
	ProgramId string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed,omitempty"`
	Data      string          `json:"data,omitempty"`
}

type parsedInstruction struct {
	Type string          `json:"type"`
	Info json.RawMessage `json:"info"`
}

type TransferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    uint64 `json:"lamports"`
}

// SystemTransfer extracts a native SOL transfer; ok is false for anything else.
func (ins Instruction) SystemTransfer() (TransferInfo, bool) {
	if ins.Program != SystemProgram || len(ins.Parsed) == 0 {
		return TransferInfo{}, false
	}
	var p parsedInstruction
	if err := json.Unmarshal(ins.Parsed, &p); err != nil {
		return TransferInfo{}, false
	}
	if p.Type != "transfer" && p.Type != "transferWithSeed" {
		return TransferInfo{}, false
	}
	var info TransferInfo
	if err := json.Unmarshal(p.Info, &info); err != nil || info.Destination == "" {
		return TransferInfo{}, false
	}
	return info, true
}

type SignatureStatus struct {
	Slot               uint64  `json:"slot"`
	Confirmations      *uint64 `json:"confirmations"`
	Err                any     `json:"err"`
	ConfirmationStatus string  `json:"confirmationStatus"`
}

type contextResult[T any] struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value T `json:"value"`
}

type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}
