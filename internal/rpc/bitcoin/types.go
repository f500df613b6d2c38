package bitcoin

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const SatoshisPerBitcoin = 8

// Block is getblock verbosity 2: full transaction bodies.
type Block struct {
	Hash              string        `json:"hash"`
	Height            uint64        `json:"height"`
	PreviousBlockHash string        `json:"previousblockhash"`
	Time              uint64        `json:"time"`
	Tx                []Transaction `json:"tx"`
}

type Transaction struct {
	TxID          string   `json:"txid"`
	Hash          string   `json:"hash"`
	VSize         int      `json:"vsize"`
	Vin           []Input  `json:"vin"`
	Vout          []Output `json:"vout"`
	BlockHash     string   `json:"blockhash,omitempty"`
	Confirmations uint64   `json:"confirmations,omitempty"`
}

type Input struct {
	TxID     string  `json:"txid"`
	Vout     uint32  `json:"vout"`
	Coinbase string  `json:"coinbase,omitempty"`
	PrevOut  *Output `json:"prevout,omitempty"`
}

// Output values stay decimal so satoshi conversion is exact.
type Output struct {
	Value        decimal.Decimal `json:"value"`
	N            uint32          `json:"n"`
	ScriptPubKey ScriptPubKey    `json:"scriptPubKey"`
}

type ScriptPubKey struct {
	Hex       string   `json:"hex"`
	Type      string   `json:"type"`
	Address   string   `json:"address,omitempty"`
	Addresses []string `json:"addresses,omitempty"`
}

func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && tx.Vin[0].Coinbase != ""
}

// Address returns the output's address, falling back to the legacy
// addresses array used by older nodes.
func (o *Output) Address() string {
	if o.ScriptPubKey.Address != "" {
		return o.ScriptPubKey.Address
	}
	if len(o.ScriptPubKey.Addresses) > 0 {
		return o.ScriptPubKey.Addresses[0]
	}
	return ""
}

// FirstInputAddress is the sender when the node included prevouts.
func (tx *Transaction) FirstInputAddress() string {
	for _, in := range tx.Vin {
		if in.PrevOut != nil {
			if a := in.PrevOut.Address(); a != "" {
				return a
			}
		}
	}
	return ""
}

// ToSatoshis converts a BTC decimal amount into satoshis.
func ToSatoshis(btc decimal.Decimal) (*big.Int, error) {
	sats := btc.Shift(SatoshisPerBitcoin)
	if !sats.Equal(sats.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has sub-satoshi precision", btc)
	}
	return sats.BigInt(), nil
}

type Unspent struct {
	TxID         string          `json:"txid"`
	Vout         uint32          `json:"vout"`
	ScriptPubKey string          `json:"scriptPubKey"`
	Amount       decimal.Decimal `json:"amount"`
	Height       uint64          `json:"height"`
}

type ScanResult struct {
	Success     bool            `json:"success"`
	Height      uint64          `json:"height"`
	Unspents    []Unspent       `json:"unspents"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// FeeEstimate is estimatesmartfee; FeeRate is BTC per kvB.
type FeeEstimate struct {
	FeeRate *decimal.Decimal `json:"feerate,omitempty"`
	Errors  []string         `json:"errors,omitempty"`
	Blocks  int              `json:"blocks"`
}

// SatPerVByte converts the estimate, returning 0 when the node had none.
func (f *FeeEstimate) SatPerVByte() int64 {
	if f == nil || f.FeeRate == nil || !f.FeeRate.IsPositive() {
		return 0
	}
	// BTC/kvB -> sat/vB
	return f.FeeRate.Shift(SatoshisPerBitcoin).Div(decimal.NewFromInt(1000)).Ceil().IntPart()
}
