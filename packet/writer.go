package packet

import (
	"encoding/binary"
	"fmt"
)

// Writer builds a message body with a bounded capacity.
// Uses little-endian byte order for all multi-byte values.
//
// Writes past the capacity do not panic: the first overflowing write records
// a truncation error, subsequent writes are no-ops, and Err reports the
// failure. Callers check Err once at send time.
type Writer struct {
	buf []byte
	cap int
	err error
}

// NewWriter creates a writer bounded by MaxBodySize.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64), cap: MaxBodySize}
}

// NewWriterSize creates a writer bounded by the given capacity.
func NewWriterSize(capacity int) *Writer {
	if capacity > MaxBodySize {
		capacity = MaxBodySize
	}
	return &Writer{buf: make([]byte, 0, 64), cap: capacity}
}

func (w *Writer) fits(n int) bool {
	if w.err != nil {
		return false
	}
	if len(w.buf)+n > w.cap {
		w.err = fmt.Errorf("%w (len=%d, write=%d, cap=%d)", ErrTruncated, len(w.buf), n, w.cap)
		return false
	}
	return true
}

// WriteByte appends a single byte. The error return satisfies io.ByteWriter;
// it is the same sticky error Err reports.
func (w *Writer) WriteByte(b byte) error {
	if !w.fits(1) {
		return w.err
	}
	w.buf = append(w.buf, b)
	return nil
}

// WriteUint16 appends a uint16 (2 bytes, LE).
func (w *Writer) WriteUint16(val uint16) {
	if !w.fits(2) {
		return
	}
	w.buf = append(w.buf, byte(val), byte(val>>8))
}

// WriteUint32 appends a uint32 (4 bytes, LE).
func (w *Writer) WriteUint32(val uint32) {
	if !w.fits(4) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, val)
}

// WriteUint64 appends a uint64 (8 bytes, LE).
func (w *Writer) WriteUint64(val uint64) {
	if !w.fits(8) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, val)
}

// WriteString appends a u16 length-prefixed string.
func (w *Writer) WriteString(s string) {
	if len(s) > MaxBodySize {
		w.err = fmt.Errorf("%w (string len=%d)", ErrTruncated, len(s))
		return
	}
	if !w.fits(2 + len(s)) {
		return
	}
	w.buf = append(w.buf, byte(len(s)), byte(len(s)>>8))
	w.buf = append(w.buf, s...)
}

// WritePosition appends a map coordinate (u16 x, u16 y, u8 z).
func (w *Writer) WritePosition(p Position) {
	if !w.fits(5) {
		return
	}
	w.buf = append(w.buf, byte(p.X), byte(p.X>>8), byte(p.Y), byte(p.Y>>8), p.Z)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(data []byte) {
	if !w.fits(len(data)) {
		return
	}
	w.buf = append(w.buf, data...)
}

// Bytes returns the accumulated body.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current body length.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first truncation error, or nil.
func (w *Writer) Err() error {
	return w.err
}

// Reset clears the body and any recorded error for reuse.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.err = nil
}
