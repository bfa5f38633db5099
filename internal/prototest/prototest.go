// Package prototest provides fake-peer helpers for protocol tests: wire
// framing from the server's point of view and a throwaway RSA key pair so a
// scripted server can decrypt handshake blocks.
package prototest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	gonet "net"
	"testing"

	"github.com/otforge/otcore/crypto"
	"github.com/otforge/otcore/packet"
)

// ListenTCP creates a loopback listener on a random port and closes it when
// the test ends.
func ListenTCP(t testing.TB) (gonet.Listener, string, int) {
	t.Helper()

	ln, err := gonet.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	addr := ln.Addr().(*gonet.TCPAddr)
	return ln, addr.IP.String(), addr.Port
}

// Frame seals a payload the way a server would: optional symmetric
// encryption with an inner length field, then the outer length header.
func Frame(cipher *crypto.SymmetricCipher, payload []byte) ([]byte, error) {
	if cipher == nil || !cipher.Enabled() {
		framed := make([]byte, packet.HeaderSize+len(payload))
		binary.LittleEndian.PutUint16(framed, uint16(len(payload)))
		copy(framed[packet.HeaderSize:], payload)
		return framed, nil
	}

	padded := packet.HeaderSize + len(payload)
	if padded%crypto.BlockSize != 0 {
		padded += crypto.BlockSize - padded%crypto.BlockSize
	}
	framed := make([]byte, packet.HeaderSize+padded)
	binary.LittleEndian.PutUint16(framed, uint16(padded))
	binary.LittleEndian.PutUint16(framed[packet.HeaderSize:], uint16(len(payload)))
	copy(framed[2*packet.HeaderSize:], payload)
	if err := cipher.Encrypt(framed[packet.HeaderSize:]); err != nil {
		return nil, err
	}
	return framed, nil
}

// ReadFrame reads one framed message and returns the payload, decrypting
// and stripping the inner length when the cipher is enabled.
func ReadFrame(r io.Reader, cipher *crypto.SymmetricCipher) ([]byte, error) {
	var header [packet.HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	body := make([]byte, binary.LittleEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	if cipher == nil || !cipher.Enabled() {
		return body, nil
	}
	if err := cipher.Decrypt(body); err != nil {
		return nil, err
	}
	if len(body) < packet.HeaderSize {
		return nil, fmt.Errorf("encrypted body too short: %d", len(body))
	}
	inner := int(binary.LittleEndian.Uint16(body))
	if packet.HeaderSize+inner > len(body) {
		return nil, fmt.Errorf("inner length %d exceeds body %d", inner, len(body))
	}
	return body[packet.HeaderSize : packet.HeaderSize+inner], nil
}

// SharedCipher makes a random session key and a server-side cipher already
// keyed with it, for tests that need both ends of an encrypted link.
func SharedCipher(t testing.TB) (crypto.SessionKey, *crypto.SymmetricCipher) {
	t.Helper()

	key, err := crypto.NewSessionKey()
	if err != nil {
		t.Fatalf("generating session key: %v", err)
	}
	cipher := crypto.NewSymmetricCipher()
	if err := cipher.SetKey(key); err != nil {
		t.Fatalf("keying cipher: %v", err)
	}
	return key, cipher
}

// ServerKey is a server-side RSA key: the private key a fake server
// decrypts handshake blocks with, plus the decimal modulus a client config
// needs.
type ServerKey struct {
	Private *rsa.PrivateKey
	Modulus string
}

// GenerateServerKey creates a throwaway 1024-bit key pair.
func GenerateServerKey(t testing.TB) ServerKey {
	t.Helper()

	pk, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generating rsa key: %v", err)
	}
	return ServerKey{Private: pk, Modulus: pk.N.String()}
}

// DecryptBlock performs the raw RSA decryption of a handshake block, as the
// real server does: ciphertext^d mod n, left-padded back to block size.
func (k ServerKey) DecryptBlock(block []byte) ([]byte, error) {
	size := (k.Private.N.BitLen() + 7) / 8
	if len(block) != size {
		return nil, fmt.Errorf("block size %d, want %d", len(block), size)
	}
	c := new(big.Int).SetBytes(block)
	m := c.Exp(c, k.Private.D, k.Private.N)

	out := make([]byte, size)
	mb := m.Bytes()
	copy(out[size-len(mb):], mb)
	return out, nil
}

// SessionKeyFromBlock reads the session key out of a decrypted handshake
// block: a zero byte, then the 4 key words little-endian. The returned
// reader is positioned right after the key for the credential fields.
func SessionKeyFromBlock(block []byte) (crypto.SessionKey, *packet.Reader, error) {
	r := packet.NewReader(block)
	lead, err := r.ReadByte()
	if err != nil || lead != 0 {
		return crypto.SessionKey{}, nil, fmt.Errorf("bad block leading byte")
	}
	var key crypto.SessionKey
	for i := range key {
		if key[i], err = r.ReadUint32(); err != nil {
			return crypto.SessionKey{}, nil, err
		}
	}
	return key, r, nil
}
