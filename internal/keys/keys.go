// Package keys derives per-index deposit keypairs from the master mnemonic.
// Derivation is pure: the same mnemonic, chain and index always give the
// same keypair.
package keys

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrIndexOutOfRange  = errors.New("derivation index out of range")
)

// BIP-44 coin types.
const (
	coinTypeBitcoin  = 0
	coinTypeEthereum = 60
	coinTypeSolana   = 501
)

// Keypair is one derived deposit key. Its String form never includes key
// material.
type Keypair struct {
	Chain   enum.Chain
	Index   uint32
	Path    string
	Address string

	secp *btcec.PrivateKey
	ed   ed25519.PrivateKey
}

func (k *Keypair) String() string {
	return fmt.Sprintf("%s[%d] %s", k.Chain, k.Index, k.Address)
}

// ECDSA is the signing key for Ethereum keypairs.
func (k *Keypair) ECDSA() *ecdsa.PrivateKey {
	if k.secp == nil {
		return nil
	}
	return k.secp.ToECDSA()
}

// BTCEC is the signing key for Bitcoin keypairs.
func (k *Keypair) BTCEC() *btcec.PrivateKey { return k.secp }

// Ed25519 is the signing key for Solana keypairs.
func (k *Keypair) Ed25519() ed25519.PrivateKey { return k.ed }

type Deriver struct {
	seed       []byte
	master     *hdkeychain.ExtendedKey
	btcNetwork *chaincfg.Params
}

// NewDeriver validates mnemonic and expands it with passphrase into the
// BIP-39 seed. btcNetwork selects the Bitcoin address encoding; nil means
// mainnet.
func NewDeriver(mnemonic, passphrase string, btcNetwork *chaincfg.Params) (*Deriver, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if btcNetwork == nil {
		btcNetwork = &chaincfg.MainNetParams
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	// the version bytes of the master key do not affect child keys
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	return &Deriver{seed: seed, master: master, btcNetwork: btcNetwork}, nil
}

// Derive returns the keypair at index. Indexes at or above 2^31 are rejected
// since Solana paths harden the index.
func (d *Deriver) Derive(chain enum.Chain, index uint32) (*Keypair, error) {
	if index >= hdkeychain.HardenedKeyStart {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	switch chain {
	case enum.ChainEthereum:
		priv, path, err := d.bip44(coinTypeEthereum, index)
		if err != nil {
			return nil, err
		}
		return &Keypair{
			Chain:   chain,
			Index:   index,
			Path:    path,
			Address: crypto.PubkeyToAddress(priv.ToECDSA().PublicKey).Hex(),
			secp:    priv,
		}, nil

	case enum.ChainBitcoin:
		priv, path, err := d.bip44(coinTypeBitcoin, index)
		if err != nil {
			return nil, err
		}
		pkh := btcutil.Hash160(priv.PubKey().SerializeCompressed())
		addr, err := btcutil.NewAddressPubKeyHash(pkh, d.btcNetwork)
		if err != nil {
			return nil, fmt.Errorf("p2pkh address: %w", err)
		}
		return &Keypair{
			Chain:   chain,
			Index:   index,
			Path:    path,
			Address: addr.EncodeAddress(),
			secp:    priv,
		}, nil

	case enum.ChainSolana:
		path := []uint32{
			hardened(44), hardened(coinTypeSolana), hardened(index), hardened(0),
		}
		key, err := slip10Ed25519(d.seed, path)
		if err != nil {
			return nil, err
		}
		priv := ed25519.NewKeyFromSeed(key)
		return &Keypair{
			Chain:   chain,
			Index:   index,
			Path:    fmt.Sprintf("m/44'/%d'/%d'/0'", coinTypeSolana, index),
			Address: base58.Encode(priv.Public().(ed25519.PublicKey)),
			ed:      priv,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
}

// bip44 walks m/44'/coin'/0'/0/index.
func (d *Deriver) bip44(coin, index uint32) (*btcec.PrivateKey, string, error) {
	key := d.master
	for _, step := range []uint32{hardened(44), hardened(coin), hardened(0), 0, index} {
		next, err := key.Derive(step)
		if err != nil {
			return nil, "", fmt.Errorf("derive child %d: %w", step, err)
		}
		key = next
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, "", err
	}
	return priv, fmt.Sprintf("m/44'/%d'/0'/0/%d", coin, index), nil
}

func hardened(i uint32) uint32 { return i + hdkeychain.HardenedKeyStart }
