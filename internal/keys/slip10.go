package keys

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

var ed25519Curve = []byte("ed25519 seed")

// slip10Ed25519 returns the 32-byte private seed at path. ed25519 only
// supports hardened children.
func slip10Ed25519(seed []byte, path []uint32) ([]byte, error) {
	mac := hmac.New(sha512.New, ed25519Curve)
	mac.Write(seed)
	sum := mac.Sum(nil)
	key, chainCode := sum[:32], sum[32:]

	for _, i := range path {
		if i < hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("slip10: non-hardened index %d", i)
		}
		data := make([]byte, 0, 37)
		data = append(data, 0x00)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, i)

		mac = hmac.New(sha512.New, chainCode)
		mac.Write(data)
		sum = mac.Sum(nil)
		key, chainCode = sum[:32], sum[32:]
	}
	return key, nil
}
