// Package packet implements reading and writing of protocol message bodies.
// All multi-byte values use little-endian byte order; strings are u16
// length-prefixed with no terminator.
package packet

import "errors"

// Wire limits. Every message on the wire is a 2-byte little-endian length
// header followed by at most MaxBodySize body bytes.
const (
	HeaderSize     = 2
	MaxMessageSize = 65535
	MaxBodySize    = MaxMessageSize - HeaderSize
)

// ErrTruncated is reported when a write would exceed the message capacity.
var ErrTruncated = errors.New("packet: message capacity exceeded")

// Position is a map coordinate as it appears on the wire: u16 x, u16 y, u8 z.
type Position struct {
	X uint16
	Y uint16
	Z uint8
}
