package enum

import (
	"fmt"
	"strings"
)

type Chain string
type TxStatus string
type KVStoreType string
type CursorBackend string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
	ChainBitcoin  Chain = "bitcoin"
)

var AllChains = []Chain{ChainEthereum, ChainSolana, ChainBitcoin}

// ParseChain accepts the lower-case chain name and the common ticker aliases.
func ParseChain(s string) (Chain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ethereum", "eth":
		return ChainEthereum, nil
	case "solana", "sol":
		return ChainSolana, nil
	case "bitcoin", "btc":
		return ChainBitcoin, nil
	}
	return "", fmt.Errorf("unknown chain %q", s)
}

// Currency is the native asset symbol recorded on the ledger.
func (c Chain) Currency() string {
	switch c {
	case ChainEthereum:
		return "ETH"
	case ChainSolana:
		return "SOL"
	case ChainBitcoin:
		return "BTC"
	}
	return ""
}

// Decimals is the exponent between the smallest unit and one whole coin.
func (c Chain) Decimals() int32 {
	switch c {
	case ChainEthereum:
		return 18
	case ChainSolana:
		return 9
	case ChainBitcoin:
		return 8
	}
	return 0
}

// NormalizeAddress returns the canonical watch-list form of an address.
// Hex addresses are case-insensitive, base58 and bech32 are kept verbatim.
func (c Chain) NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if c == ChainEthereum {
		return strings.ToLower(addr)
	}
	return addr
}

func (c Chain) String() string { return string(c) }

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

func (s TxStatus) IsTerminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

const (
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeConsul KVStoreType = "consul"
)

const (
	CursorBackendLedger CursorBackend = "ledger"
	CursorBackendKV     CursorBackend = "kv"
)
