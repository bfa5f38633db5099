// Package crypto implements the two-layer encryption scheme of the protocol:
// a one-shot asymmetric handshake carrying the session key, followed by a
// symmetric block cipher over every message body.
package crypto

import (
	"crypto/cipher"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/xtea"
)

// BlockSize is the symmetric cipher block size. Message bodies are padded to
// a multiple of it before encryption; the true length is recovered from the
// application-level size field, not from padding.
const BlockSize = 8

// BlockFactory builds the block cipher from installed key material.
// The default is XTEA; protocol versions with a different cipher or round
// count install their own factory behind the same contract.
type BlockFactory func(key []byte) (cipher.Block, error)

// SymmetricCipher encrypts and decrypts message bodies in place once a
// session key is installed. It starts disabled: Encrypt and Decrypt are
// no-ops until SetKey. SetKey is called exactly once per connection; after
// that the cipher is safe for concurrent use from the reader and writer.
type SymmetricCipher struct {
	factory BlockFactory
	block   cipher.Block
	enabled atomic.Bool
}

// NewSymmetricCipher creates a disabled cipher using XTEA.
func NewSymmetricCipher() *SymmetricCipher {
	return NewSymmetricCipherWith(func(key []byte) (cipher.Block, error) {
		return xtea.NewCipher(key)
	})
}

// NewSymmetricCipherWith creates a disabled cipher using a custom block
// cipher constructor.
func NewSymmetricCipherWith(factory BlockFactory) *SymmetricCipher {
	return &SymmetricCipher{factory: factory}
}

// SetKey installs the session key and enables the cipher.
// The atomic enabled flag publishes the block to concurrent readers.
func (c *SymmetricCipher) SetKey(key SessionKey) error {
	b, err := c.factory(key.Bytes())
	if err != nil {
		return fmt.Errorf("creating block cipher: %w", err)
	}
	if b.BlockSize() != BlockSize {
		return fmt.Errorf("block cipher size %d, want %d", b.BlockSize(), BlockSize)
	}
	c.block = b
	c.enabled.Store(true)
	return nil
}

// Enabled reports whether a session key has been installed.
func (c *SymmetricCipher) Enabled() bool {
	return c.enabled.Load()
}

// Encrypt encrypts a message body in place. No-op while disabled.
// The body must already be padded to a multiple of BlockSize.
func (c *SymmetricCipher) Encrypt(body []byte) error {
	if !c.enabled.Load() {
		return nil
	}
	if len(body)%BlockSize != 0 {
		return fmt.Errorf("encrypt: body size %d is not a multiple of %d", len(body), BlockSize)
	}
	for i := 0; i < len(body); i += BlockSize {
		c.block.Encrypt(body[i:i+BlockSize], body[i:i+BlockSize])
	}
	return nil
}

// Decrypt decrypts a message body in place. No-op while disabled.
func (c *SymmetricCipher) Decrypt(body []byte) error {
	if !c.enabled.Load() {
		return nil
	}
	if len(body)%BlockSize != 0 {
		return fmt.Errorf("decrypt: body size %d is not a multiple of %d", len(body), BlockSize)
	}
	for i := 0; i < len(body); i += BlockSize {
		c.block.Decrypt(body[i:i+BlockSize], body[i:i+BlockSize])
	}
	return nil
}
