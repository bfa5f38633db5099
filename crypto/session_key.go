package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// SessionKey holds the 4 random 32-bit words negotiated during the handshake
// and used by the symmetric cipher for one connection's lifetime.
// Generated once per connection, never mutated afterwards.
type SessionKey [4]uint32

// NewSessionKey generates a fresh session key from crypto/rand.
func NewSessionKey() (SessionKey, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return SessionKey{}, fmt.Errorf("generating session key: %w", err)
	}
	var k SessionKey
	for i := range k {
		k[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return k, nil
}

// Bytes returns the key material in the layout the block cipher expects.
// XTEA in Go treats the key as one big-endian 128-bit integer, while the wire
// carries the words little-endian, so each word is stored big-endian here.
func (k SessionKey) Bytes() []byte {
	out := make([]byte, 16)
	for i, w := range k {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}
