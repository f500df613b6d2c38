package keys

import (
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/mr-tron/base58"
)

// BitcoinParams maps the configured network name to chain params.
func BitcoinParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	}
	return nil, fmt.Errorf("unknown bitcoin network %q", network)
}

// ValidateAddress checks that addr can receive a sweep on chain. Solana
// addresses must be on the ed25519 curve so they are spendable by a key.
func ValidateAddress(chain enum.Chain, addr string, btcNetwork *chaincfg.Params) error {
	switch chain {
	case enum.ChainEthereum:
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid ethereum address %q", addr)
		}
		if common.HexToAddress(addr) == (common.Address{}) {
			return fmt.Errorf("zero ethereum address")
		}
		return nil

	case enum.ChainBitcoin:
		if btcNetwork == nil {
			btcNetwork = &chaincfg.MainNetParams
		}
		a, err := btcutil.DecodeAddress(addr, btcNetwork)
		if err != nil {
			return fmt.Errorf("invalid bitcoin address %q: %w", addr, err)
		}
		if !a.IsForNet(btcNetwork) {
			return fmt.Errorf("bitcoin address %q is not for %s", addr, btcNetwork.Name)
		}
		return nil

	case enum.ChainSolana:
		raw, err := base58.Decode(addr)
		if err != nil {
			return fmt.Errorf("invalid solana address %q: %w", addr, err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("invalid solana address %q: length %d", addr, len(raw))
		}
		if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
			return fmt.Errorf("solana address %q is off curve", addr)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
}
