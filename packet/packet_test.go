package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteByte(0x7F)
	w.WriteUint16(0xBEEF)
	w.WriteUint32(0xDEADBEEF)
	w.WriteUint64(0x0123456789ABCDEF)
	w.WriteString("Hero")
	w.WritePosition(Position{X: 100, Y: 200, Z: 7})
	w.WriteBytes([]byte{1, 2, 3})
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), b)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), u16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0123456789ABCDEF), u64)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "Hero", s)

	pos, err := r.ReadPosition()
	require.NoError(t, err)
	assert.Equal(t, Position{X: 100, Y: 200, Z: 7}, pos)

	raw, err := r.ReadBytes(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Equal(t, 0, r.Remaining())
}

func TestStringWireFormat(t *testing.T) {
	w := NewWriter()
	w.WriteString("ab")
	require.NoError(t, w.Err())

	// u16 LE length prefix, raw bytes, no terminator.
	assert.Equal(t, []byte{0x02, 0x00, 'a', 'b'}, w.Bytes())
}

func TestEmptyStringRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteString("")
	require.NoError(t, w.Err())
	assert.Equal(t, []byte{0x00, 0x00}, w.Bytes())

	r := NewReader(w.Bytes())
	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestPositionWireFormat(t *testing.T) {
	w := NewWriter()
	w.WritePosition(Position{X: 0x1234, Y: 0x5678, Z: 0x07})
	require.NoError(t, w.Err())
	assert.Equal(t, []byte{0x34, 0x12, 0x78, 0x56, 0x07}, w.Bytes())
}

func TestWriterTruncation(t *testing.T) {
	w := NewWriterSize(4)
	w.WriteUint32(1)
	require.NoError(t, w.Err())

	w.WriteByte(2)
	require.ErrorIs(t, w.Err(), ErrTruncated)

	// Writes after the fault are no-ops; the buffer stays intact.
	w.WriteUint64(3)
	assert.Equal(t, 4, w.Len())
	require.ErrorIs(t, w.Err(), ErrTruncated)

	w.Reset()
	require.NoError(t, w.Err())
	assert.Equal(t, 0, w.Len())
}

func TestReaderPastEnd(t *testing.T) {
	r := NewReader([]byte{0x01})

	_, err := r.ReadUint16()
	require.Error(t, err)

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)

	_, err = r.ReadByte()
	require.Error(t, err)
	_, err = r.ReadString()
	require.Error(t, err)
	_, err = r.ReadBytes(1)
	require.Error(t, err)
	require.Error(t, r.Skip(1))
}

func TestReaderTruncatedString(t *testing.T) {
	// Declared length 5, only 2 bytes present.
	r := NewReader([]byte{0x05, 0x00, 'a', 'b'})
	_, err := r.ReadString()
	require.Error(t, err)
}

func TestPeekDoesNotAdvance(t *testing.T) {
	r := NewReader([]byte{0xAB, 0xCD})

	p, err := r.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), p)
	assert.Equal(t, 0, r.Pos())

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)
	assert.Equal(t, 1, r.Pos())
}

func TestSkipAndRemaining(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4})
	require.NoError(t, r.Skip(3))
	assert.Equal(t, 1, r.Remaining())

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(4), b)
}
