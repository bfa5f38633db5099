package crypto

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrNoPublicKey is reported when Encrypt is called before a key is installed.
var ErrNoPublicKey = errors.New("crypto: no public key installed")

// PublicKey performs the asymmetric half of the handshake: raw RSA
// (no padding scheme) over a single block of exactly the key's size,
// encrypting the freshly generated session key and credentials under the
// server's shipped public key. Used once per login.
type PublicKey struct {
	n    *big.Int
	e    *big.Int
	size int
}

// NewPublicKey parses a decimal modulus and exponent into a PublicKey.
// The block size derives from the modulus width.
func NewPublicKey(modulus string, exponent uint64) (*PublicKey, error) {
	n, ok := new(big.Int).SetString(modulus, 10)
	if !ok {
		return nil, fmt.Errorf("invalid RSA modulus")
	}
	if exponent == 0 {
		return nil, fmt.Errorf("invalid RSA exponent")
	}
	return &PublicKey{
		n:    n,
		e:    new(big.Int).SetUint64(exponent),
		size: (n.BitLen() + 7) / 8,
	}, nil
}

// BlockSize returns the size of the block Encrypt operates on.
func (k *PublicKey) BlockSize() int {
	if k == nil {
		return 0
	}
	return k.size
}

// Encrypt performs the raw RSA operation m^e mod n over block, in place.
// block must be exactly BlockSize bytes and its leading byte must keep the
// plaintext below the modulus (the protocol writes a zero byte first).
func (k *PublicKey) Encrypt(block []byte) error {
	if k == nil || k.n == nil {
		return ErrNoPublicKey
	}
	if len(block) != k.size {
		return fmt.Errorf("rsa encrypt: block size %d, want %d", len(block), k.size)
	}
	m := new(big.Int).SetBytes(block)
	if m.Cmp(k.n) >= 0 {
		return fmt.Errorf("rsa encrypt: plaintext not below modulus")
	}
	c := m.Exp(m, k.e, k.n)

	// Left-pad: big.Int.Bytes drops leading zeros.
	out := c.Bytes()
	clear(block[:k.size-len(out)])
	copy(block[k.size-len(out):], out)
	return nil
}
