package packet

import (
	"encoding/binary"
	"fmt"
)

// Reader consumes typed values from a received message body.
// Uses little-endian byte order for all multi-byte values.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a reader over the given body.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("ReadByte: not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// PeekByte reads a single byte without advancing the cursor.
func (r *Reader) PeekByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("PeekByte: not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	return r.data[r.pos], nil
}

// ReadUint16 reads a uint16 (2 bytes, LE).
func (r *Reader) ReadUint16() (uint16, error) {
	if r.pos+2 > len(r.data) {
		return 0, fmt.Errorf("ReadUint16: not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	val := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return val, nil
}

// ReadUint32 reads a uint32 (4 bytes, LE).
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("ReadUint32: not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	val := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return val, nil
}

// ReadUint64 reads a uint64 (8 bytes, LE).
func (r *Reader) ReadUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("ReadUint64: not enough data (pos=%d, len=%d)", r.pos, len(r.data))
	}
	val := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return val, nil
}

// ReadString reads a u16 length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	sz, err := r.ReadUint16()
	if err != nil {
		return "", fmt.Errorf("ReadString: %w", err)
	}
	if r.pos+int(sz) > len(r.data) {
		return "", fmt.Errorf("ReadString: not enough data (pos=%d, need=%d, len=%d)", r.pos, sz, len(r.data))
	}
	s := string(r.data[r.pos : r.pos+int(sz)])
	r.pos += int(sz)
	return s, nil
}

// ReadPosition reads a map coordinate (u16 x, u16 y, u8 z).
func (r *Reader) ReadPosition() (Position, error) {
	x, err := r.ReadUint16()
	if err != nil {
		return Position{}, fmt.Errorf("ReadPosition: %w", err)
	}
	y, err := r.ReadUint16()
	if err != nil {
		return Position{}, fmt.Errorf("ReadPosition: %w", err)
	}
	z, err := r.ReadByte()
	if err != nil {
		return Position{}, fmt.Errorf("ReadPosition: %w", err)
	}
	return Position{X: x, Y: y, Z: z}, nil
}

// ReadBytes reads n bytes and returns a copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("ReadBytes: negative count %d", n)
	}
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("ReadBytes: not enough data (pos=%d, need=%d, len=%d)", r.pos, n, len(r.data))
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes without interpreting them.
func (r *Reader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.data) {
		return fmt.Errorf("Skip: not enough data (pos=%d, need=%d, len=%d)", r.pos, n, len(r.data))
	}
	r.pos += n
	return nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}
