// Package net implements the transport layer of the protocol: a framed,
// optionally encrypted stream connection with one reader and one writer
// goroutine over FIFO queues.
//
// Wire framing is a 2-byte little-endian body length followed by the body.
// Once a session key is installed, the body is encrypted and carries its own
// leading u16 payload length so the true size survives block padding.
package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	gonet "net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otforge/otcore/crypto"
	"github.com/otforge/otcore/packet"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultQueueSize      = 256
)

// ErrNotConnected is returned by Send when the connection is not established.
var ErrNotConnected = errors.New("net: not connected")

// Stats is a point-in-time snapshot of connection counters.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	RoundTrip     time.Duration
}

// Option configures a Connection.
type Option func(*Connection)

// WithConnectTimeout bounds the blocking wait inside Connect.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Connection) { c.connectTimeout = d }
}

// WithQueueSize sets the send and receive queue capacities.
func WithQueueSize(n int) Option {
	return func(c *Connection) { c.queueSize = n }
}

// WithCipher installs a custom symmetric cipher (protocol-version variants).
func WithCipher(ci *crypto.SymmetricCipher) Option {
	return func(c *Connection) { c.cipher = ci }
}

// Connection owns one stream socket and the pair of goroutines that serve
// it. It is single-use: connect once, then disconnect; sessions create a
// fresh Connection per attempt.
//
// Exactly one handler may be registered per event, before Connect. The
// message and error handlers fire only from Poll, on the owner's goroutine.
type Connection struct {
	connectTimeout time.Duration
	queueSize      int
	cipher         *crypto.SymmetricCipher

	conn  gonet.Conn
	state atomic.Int32

	group   errgroup.Group
	sendCh  chan []byte
	recvCh  chan []byte
	faultCh chan error
	closeCh chan struct{}

	closeOnce sync.Once

	// notified flips before the lifecycle callback runs, never inside it,
	// so a callback may call Disconnect without blocking on its own
	// notification.
	notified atomic.Bool

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	pingSentNanos atomic.Int64
	rttNanos      atomic.Int64

	onMessage    func(*packet.Reader)
	onError      func(error)
	onDisconnect func()
}

// NewConnection creates a disconnected Connection with a disabled cipher.
func NewConnection(opts ...Option) *Connection {
	c := &Connection{
		connectTimeout: defaultConnectTimeout,
		queueSize:      defaultQueueSize,
		cipher:         crypto.NewSymmetricCipher(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sendCh = make(chan []byte, c.queueSize)
	c.recvCh = make(chan []byte, c.queueSize)
	c.faultCh = make(chan error, 1)
	c.closeCh = make(chan struct{})
	return c
}

// OnMessage registers the handler Poll dispatches received bodies to.
func (c *Connection) OnMessage(fn func(*packet.Reader)) { c.onMessage = fn }

// OnError registers the handler for the single failure event of a
// transport or protocol fault.
func (c *Connection) OnError(fn func(error)) { c.onError = fn }

// OnDisconnect registers the handler fired once by a user-initiated
// Disconnect.
func (c *Connection) OnDisconnect(fn func()) { c.onDisconnect = fn }

// Cipher returns the symmetric cipher; sessions install the session key on
// it once the handshake material has been sent.
func (c *Connection) Cipher() *crypto.SymmetricCipher { return c.cipher }

// State returns the current connection state.
func (c *Connection) State() State { return State(c.state.Load()) }

// Stats returns the lock-free byte counters and the last measured
// ping round-trip time.
func (c *Connection) Stats() Stats {
	return Stats{
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesReceived.Load(),
		RoundTrip:     time.Duration(c.rttNanos.Load()),
	}
}

// MarkPingSent records the keepalive timestamp for the next pong.
func (c *Connection) MarkPingSent() { c.pingSentNanos.Store(time.Now().UnixNano()) }

// MarkPongReceived closes the round-trip sample opened by MarkPingSent.
func (c *Connection) MarkPongReceived() {
	if sent := c.pingSentNanos.Load(); sent != 0 {
		c.rttNanos.Store(time.Now().UnixNano() - sent)
	}
}

// Connect resolves the address and establishes the connection, bounded by
// the connect timeout, then starts the reader and writer goroutines.
// No-op when already Connecting or Connected. A Disconnect issued before or
// during Connect wins: the dialed socket is closed and Connect fails.
// Small messages must not be delayed, so send coalescing is disabled on the
// socket.
func (c *Connection) Connect(host string, port int) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return nil
	}

	addr := gonet.JoinHostPort(host, strconv.Itoa(port))
	d := gonet.Dialer{Timeout: c.connectTimeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		c.state.Store(int32(StateError))
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if tc, ok := conn.(*gonet.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			slog.Warn("set nodelay failed", "remote", addr, "error", err)
		}
	}

	c.conn = conn
	if c.stopping() {
		_ = conn.Close()
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("connecting to %s: %w", addr, gonet.ErrClosed)
	}
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected))
	c.group.Go(c.readLoop)
	c.group.Go(c.writeLoop)
	slog.Debug("connected", "remote", conn.RemoteAddr())
	return nil
}

// Send encrypts the body, stamps the length header and enqueues the framed
// message FIFO. The calling goroutine never touches the socket.
func (c *Connection) Send(w *packet.Writer) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	if err := w.Err(); err != nil {
		return err
	}
	framed, err := c.seal(w.Bytes())
	if err != nil {
		return err
	}
	select {
	case c.sendCh <- framed:
		return nil
	case <-c.closeCh:
		return ErrNotConnected
	}
}

// Poll drains the receive queue and dispatches each body to the message
// handler in wire arrival order. After the queue is drained it surfaces at
// most one pending fault: the connection is torn down first, so no
// half-open state survives the error callback, and the callback itself may
// call Disconnect. Call on a regular cadence from the owning goroutine.
func (c *Connection) Poll() {
	for {
		select {
		case body := <-c.recvCh:
			if c.onMessage != nil {
				c.onMessage(packet.NewReader(body))
			}
		default:
			select {
			case err := <-c.faultCh:
				c.shutdown()
				_ = c.group.Wait()
				if c.notified.CompareAndSwap(false, true) && c.onError != nil {
					c.onError(err)
				}
			default:
			}
			return
		}
	}
}

// Disconnect is the sole cancellation primitive. Idempotent; callable from
// any goroutine including the error callback. Closing the socket unblocks a
// pending read and the stop channel unblocks the writer; both goroutines
// are joined before any caller returns. Effective even before the
// connection is up: a Connect racing or following it aborts. A faulted
// connection stays in the Error state. At most one lifecycle notification
// fires per connection, across concurrent callers and across the
// error/disconnect pair.
func (c *Connection) Disconnect() {
	if c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
		slog.Debug("disconnecting", "remote", c.conn.RemoteAddr())
	}
	c.shutdown()
	_ = c.group.Wait()
	for {
		s := c.state.Load()
		if s == int32(StateError) || s == int32(StateDisconnected) {
			break
		}
		if c.state.CompareAndSwap(s, int32(StateDisconnected)) {
			break
		}
	}
	if c.notified.CompareAndSwap(false, true) && c.onDisconnect != nil {
		c.onDisconnect()
	}
}

// shutdown closes the socket and the stop channel, deterministically
// unblocking both goroutines. Safe to call from any of them.
func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Connection) stopping() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// fail records the first fault, stops both goroutines and returns the error
// for the errgroup. The state flips to Error right here so sends are
// rejected before the owner's next Poll. Faults observed while already
// stopping are not faults.
func (c *Connection) fail(err error) error {
	if c.stopping() {
		return nil
	}
	c.state.Store(int32(StateError))
	select {
	case c.faultCh <- err:
	default:
	}
	c.shutdown()
	return err
}

// readLoop performs must-complete reads of the 2-byte header and the
// declared body, decrypts and enqueues. Any short or failed read is a fault
// that stops the loop. Peer close and socket error are one and the same
// failure event.
func (c *Connection) readLoop() error {
	var header [packet.HeaderSize]byte
	for {
		if _, err := io.ReadFull(c.conn, header[:]); err != nil {
			return c.fail(fmt.Errorf("connection error: reading header: %w", err))
		}
		size := int(binary.LittleEndian.Uint16(header[:]))
		if size > packet.MaxBodySize {
			return c.fail(fmt.Errorf("protocol fault: declared body length %d exceeds %d", size, packet.MaxBodySize))
		}

		body := make([]byte, size)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return c.fail(fmt.Errorf("connection error: reading body: %w", err))
		}
		c.bytesReceived.Add(uint64(packet.HeaderSize + size))

		payload, err := c.unseal(body)
		if err != nil {
			return c.fail(err)
		}

		select {
		case c.recvCh <- payload:
		case <-c.closeCh:
			return nil
		}
	}
}

// writeLoop dequeues one framed message at a time and writes it fully.
// net.Conn.Write already loops over partial writes until complete or error.
func (c *Connection) writeLoop() error {
	for {
		select {
		case <-c.closeCh:
			return nil
		case data := <-c.sendCh:
			if _, err := c.conn.Write(data); err != nil {
				return c.fail(fmt.Errorf("connection error: writing: %w", err))
			}
			c.bytesSent.Add(uint64(len(data)))
		}
	}
}

// seal frames a body for the wire. With the cipher enabled the body gains a
// leading u16 payload length, is zero-padded to a block multiple and
// encrypted; the outer header always carries the encrypted body length.
func (c *Connection) seal(payload []byte) ([]byte, error) {
	if !c.cipher.Enabled() {
		framed := make([]byte, packet.HeaderSize+len(payload))
		binary.LittleEndian.PutUint16(framed, uint16(len(payload)))
		copy(framed[packet.HeaderSize:], payload)
		return framed, nil
	}

	inner := packet.HeaderSize + len(payload)
	padded := inner
	if padded%crypto.BlockSize != 0 {
		padded += crypto.BlockSize - padded%crypto.BlockSize
	}
	if padded > packet.MaxBodySize {
		return nil, fmt.Errorf("%w (encrypted body %d)", packet.ErrTruncated, padded)
	}

	framed := make([]byte, packet.HeaderSize+padded)
	binary.LittleEndian.PutUint16(framed, uint16(padded))
	binary.LittleEndian.PutUint16(framed[packet.HeaderSize:], uint16(len(payload)))
	copy(framed[2*packet.HeaderSize:], payload)
	if err := c.cipher.Encrypt(framed[packet.HeaderSize:]); err != nil {
		return nil, fmt.Errorf("sealing message: %w", err)
	}
	return framed, nil
}

// unseal reverses seal: decrypts the body and recovers the true payload
// length from the inner size field. Inconsistent lengths are protocol
// faults.
func (c *Connection) unseal(body []byte) ([]byte, error) {
	if !c.cipher.Enabled() {
		return body, nil
	}
	if err := c.cipher.Decrypt(body); err != nil {
		return nil, fmt.Errorf("protocol fault: %w", err)
	}
	if len(body) < packet.HeaderSize {
		return nil, fmt.Errorf("protocol fault: encrypted body too short (%d)", len(body))
	}
	inner := int(binary.LittleEndian.Uint16(body))
	if packet.HeaderSize+inner > len(body) {
		return nil, fmt.Errorf("protocol fault: inner length %d exceeds body %d", inner, len(body)-packet.HeaderSize)
	}
	return body[packet.HeaderSize : packet.HeaderSize+inner], nil
}
