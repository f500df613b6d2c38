package keys

import (
	"crypto/ed25519"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fystack/deposit-indexer/pkg/common/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestDeriver(t *testing.T) *Deriver {
	t.Helper()
	d, err := NewDeriver(testMnemonic, "", nil)
	require.NoError(t, err)
	return d
}

func TestDerive_KnownVectors(t *testing.T) {
	d := newTestDeriver(t)

	tests := []struct {
		chain   enum.Chain
		address string
		path    string
	}{
		{enum.ChainEthereum, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", "m/44'/60'/0'/0/0"},
		{enum.ChainBitcoin, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", "m/44'/0'/0'/0/0"},
		{enum.ChainSolana, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk", "m/44'/501'/0'/0'"},
	}
	for _, tt := range tests {
		t.Run(tt.chain.String(), func(t *testing.T) {
			kp, err := d.Derive(tt.chain, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.address, kp.Address)
			assert.Equal(t, tt.path, kp.Path)
		})
	}
}

func TestDerive_DeterministicAndDistinct(t *testing.T) {
	a := newTestDeriver(t)
	b := newTestDeriver(t)

	for _, chain := range enum.AllChains {
		seen := map[string]uint32{}
		for i := uint32(0); i < 5; i++ {
			k1, err := a.Derive(chain, i)
			require.NoError(t, err)
			k2, err := b.Derive(chain, i)
			require.NoError(t, err)
			assert.Equal(t, k1.Address, k2.Address, "%s index %d", chain, i)

			prev, dup := seen[k1.Address]
			assert.False(t, dup, "%s index %d repeats index %d", chain, i, prev)
			seen[k1.Address] = i
		}
	}
}

func TestDerive_KeysMatchAddresses(t *testing.T) {
	d := newTestDeriver(t)

	eth, err := d.Derive(enum.ChainEthereum, 3)
	require.NoError(t, err)
	assert.Equal(t, eth.Address, crypto.PubkeyToAddress(eth.ECDSA().PublicKey).Hex())

	sol, err := d.Derive(enum.ChainSolana, 3)
	require.NoError(t, err)
	msg := []byte("sweep")
	assert.True(t, ed25519.Verify(sol.Ed25519().Public().(ed25519.PublicKey), msg, ed25519.Sign(sol.Ed25519(), msg)))

	btc, err := d.Derive(enum.ChainBitcoin, 3)
	require.NoError(t, err)
	assert.NotNil(t, btc.BTCEC())
	assert.Nil(t, btc.Ed25519())
}

func TestDerive_PassphraseChangesKeys(t *testing.T) {
	plain := newTestDeriver(t)
	salted, err := NewDeriver(testMnemonic, "TREZOR", nil)
	require.NoError(t, err)

	a, err := plain.Derive(enum.ChainEthereum, 0)
	require.NoError(t, err)
	b, err := salted.Derive(enum.ChainEthereum, 0)
	require.NoError(t, err)
	assert.NotEqual(t, a.Address, b.Address)
}

func TestDerive_BitcoinNetwork(t *testing.T) {
	d, err := NewDeriver(testMnemonic, "", &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	kp, err := d.Derive(enum.ChainBitcoin, 0)
	require.NoError(t, err)
	assert.NotEqual(t, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", kp.Address)
	assert.NoError(t, ValidateAddress(enum.ChainBitcoin, kp.Address, &chaincfg.RegressionNetParams))
}

func TestNewDeriver_InvalidMnemonic(t *testing.T) {
	_, err := NewDeriver("abandon abandon abandon", "", nil)
	assert.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = NewDeriver("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", "", nil)
	assert.ErrorIs(t, err, ErrInvalidMnemonic, "bad checksum")
}

func TestDerive_UnsupportedChain(t *testing.T) {
	_, err := newTestDeriver(t).Derive(enum.Chain("tron"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedChain)
}

func TestDerive_IndexOutOfRange(t *testing.T) {
	d := newTestDeriver(t)
	for _, chain := range enum.AllChains {
		_, err := d.Derive(chain, 1<<31)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, chain.String())
		_, err = d.Derive(chain, 1<<32-1)
		assert.ErrorIs(t, err, ErrIndexOutOfRange, chain.String())

		_, err = d.Derive(chain, 1<<31-1)
		assert.NoError(t, err, chain.String())
	}
}

func TestKeypair_StringHasNoKeyMaterial(t *testing.T) {
	kp, err := newTestDeriver(t).Derive(enum.ChainSolana, 7)
	require.NoError(t, err)
	assert.Equal(t, "solana[7] "+kp.Address, kp.String())
}

func TestSlip10_RejectsNormalIndex(t *testing.T) {
	_, err := slip10Ed25519([]byte("seed"), []uint32{hardened(44), 0})
	assert.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	d := newTestDeriver(t)
	sol, err := d.Derive(enum.ChainSolana, 1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		chain   enum.Chain
		addr    string
		wantErr bool
	}{
		{"eth ok", enum.ChainEthereum, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", false},
		{"eth lower case ok", enum.ChainEthereum, "0x9858effd232b4033e47d90003d41ec34ecaeda94", false},
		{"eth zero", enum.ChainEthereum, "0x0000000000000000000000000000000000000000", true},
		{"eth short", enum.ChainEthereum, "0x1234", true},
		{"btc ok", enum.ChainBitcoin, "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA", false},
		{"btc garbage", enum.ChainBitcoin, "not-an-address", true},
		{"sol derived", enum.ChainSolana, sol.Address, false},
		{"sol bad base58", enum.ChainSolana, "0OIl", true},
		{"sol short", enum.ChainSolana, "3yZe7d", true},
		{"unknown chain", enum.Chain("tron"), "T9yD14Nj9j7xAB4dbGeiX9h8unkKHxuWwb", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.chain, tt.addr, &chaincfg.MainNetParams)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBitcoinParams(t *testing.T) {
	p, err := BitcoinParams("regtest")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.RegressionNetParams.Name, p.Name)

	p, err = BitcoinParams("")
	require.NoError(t, err)
	assert.Equal(t, chaincfg.MainNetParams.Name, p.Name)

	_, err = BitcoinParams("signet")
	assert.Error(t, err)
}
