package net_test

import (
	"encoding/binary"
	gonet "net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otforge/otcore/internal/prototest"
	"github.com/otforge/otcore/net"
	"github.com/otforge/otcore/packet"
)

const waitFor = 2 * time.Second

// acceptOne returns the next accepted connection, closed on test cleanup.
func acceptOne(t *testing.T, ln gonet.Listener) <-chan gonet.Conn {
	t.Helper()
	ch := make(chan gonet.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		t.Cleanup(func() { _ = conn.Close() })
		ch <- conn
	}()
	return ch
}

// dial connects a fresh Connection to the listener and hands back the
// server side. Handlers go in setup, before the goroutines start.
func dial(t *testing.T, ln gonet.Listener, host string, port int, setup func(*net.Connection)) (*net.Connection, gonet.Conn) {
	t.Helper()
	peerCh := acceptOne(t, ln)
	conn := net.NewConnection()
	if setup != nil {
		setup(conn)
	}
	require.NoError(t, conn.Connect(host, port))
	require.Equal(t, net.StateConnected, conn.State())
	return conn, <-peerCh
}

func TestSendOrderOnWire(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	conn, peer := dial(t, ln, host, port, nil)
	defer conn.Disconnect()

	const n = 32
	for i := 0; i < n; i++ {
		w := packet.NewWriter()
		w.WriteByte(0x42)
		w.WriteUint16(uint16(i))
		require.NoError(t, conn.Send(w))
	}

	for i := 0; i < n; i++ {
		payload, err := prototest.ReadFrame(peer, nil)
		require.NoError(t, err)
		r := packet.NewReader(payload)
		op, err := r.ReadByte()
		require.NoError(t, err)
		assert.Equal(t, byte(0x42), op)
		seq, err := r.ReadUint16()
		require.NoError(t, err)
		assert.Equal(t, uint16(i), seq, "message %d out of order", i)
	}
}

func TestPollDispatchOrder(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	var got []uint16
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnMessage(func(r *packet.Reader) {
			seq, err := r.ReadUint16()
			require.NoError(t, err)
			got = append(got, seq)
		})
	})
	defer conn.Disconnect()

	const n = 32
	for i := 0; i < n; i++ {
		body := []byte{byte(i), byte(i >> 8)}
		framed, err := prototest.Frame(nil, body)
		require.NoError(t, err)
		_, err = peer.Write(framed)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		conn.Poll()
		return len(got) == n
	}, waitFor, 5*time.Millisecond)

	for i := 0; i < n; i++ {
		assert.Equal(t, uint16(i), got[i])
	}
}

func TestMaxBodyLengthAccepted(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	received := 0
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnMessage(func(r *packet.Reader) {
			received = r.Remaining()
		})
	})
	defer conn.Disconnect()

	framed, err := prototest.Frame(nil, make([]byte, packet.MaxBodySize))
	require.NoError(t, err)
	go func() { _, _ = peer.Write(framed) }()

	require.Eventually(t, func() bool {
		conn.Poll()
		return received == packet.MaxBodySize
	}, waitFor, 5*time.Millisecond)
}

func TestOversizeBodyLengthIsProtocolFault(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	var fault error
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnError(func(err error) { fault = err })
	})

	// Declared body length one past the maximum.
	header := make([]byte, packet.HeaderSize)
	binary.LittleEndian.PutUint16(header, uint16(packet.MaxBodySize+1))
	_, err := peer.Write(header)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conn.Poll()
		return fault != nil
	}, waitFor, 5*time.Millisecond)

	assert.Contains(t, fault.Error(), "protocol fault")
	assert.Equal(t, net.StateError, conn.State())
}

func TestPeerCloseIsSingleFailureEvent(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	faults := 0
	disconnects := 0
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnError(func(err error) { faults++ })
		c.OnDisconnect(func() { disconnects++ })
	})

	require.NoError(t, peer.Close())

	require.Eventually(t, func() bool {
		conn.Poll()
		return faults == 1
	}, waitFor, 5*time.Millisecond)

	// Later polls and a user disconnect must not produce a second
	// notification for the same connection.
	conn.Poll()
	conn.Disconnect()
	assert.Equal(t, 1, faults)
	assert.Equal(t, 0, disconnects)
}

func TestDisconnectInsideErrorCallback(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	faults := 0
	disconnects := 0
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnError(func(err error) {
			faults++
			c.Disconnect()
		})
		c.OnDisconnect(func() { disconnects++ })
	})

	require.NoError(t, peer.Close())

	// Poll must dispatch the fault and return even though the error
	// callback tears the connection down itself.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for faults == 0 {
			conn.Poll()
			time.Sleep(2 * time.Millisecond)
		}
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Poll did not return; disconnect inside the error callback must not block")
	}

	assert.Equal(t, 1, faults)
	assert.Equal(t, 0, disconnects)
	assert.Equal(t, net.StateError, conn.State())

	// A later user disconnect neither renotifies nor erases the fault state.
	conn.Disconnect()
	assert.Equal(t, 1, faults)
	assert.Equal(t, 0, disconnects)
	assert.Equal(t, net.StateError, conn.State())
}

func TestSendRejectedAfterFault(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	conn, peer := dial(t, ln, host, port, nil)

	require.NoError(t, peer.Close())

	// The reader records the fault before the next Poll surfaces it.
	require.Eventually(t, func() bool {
		return conn.State() == net.StateError
	}, waitFor, 2*time.Millisecond)

	w := packet.NewWriter()
	w.WriteByte(0x01)
	require.ErrorIs(t, conn.Send(w), net.ErrNotConnected)
}

func TestDisconnectBeforeConnectWins(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	_ = ln

	conn := net.NewConnection()
	conn.Disconnect()

	err := conn.Connect(host, port)
	require.Error(t, err)
	assert.Equal(t, net.StateDisconnected, conn.State())

	w := packet.NewWriter()
	w.WriteByte(0x01)
	require.ErrorIs(t, conn.Send(w), net.ErrNotConnected)
}

func TestConcurrentDisconnectFiresOnce(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	var mu sync.Mutex
	fired := 0
	conn, _ := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnDisconnect(func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
	})

	var wg sync.WaitGroup
	for j := 0; j < 8; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn.Disconnect()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, fired)
	assert.Equal(t, net.StateDisconnected, conn.State())
}

func TestSendRejectedWhenNotConnected(t *testing.T) {
	conn := net.NewConnection()
	w := packet.NewWriter()
	w.WriteByte(0x01)
	require.ErrorIs(t, conn.Send(w), net.ErrNotConnected)
}

func TestConnectIsNoOpWhileConnected(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	conn, _ := dial(t, ln, host, port, nil)
	defer conn.Disconnect()

	require.NoError(t, conn.Connect(host, port))
	assert.Equal(t, net.StateConnected, conn.State())
}

func TestConnectFailure(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	require.NoError(t, ln.Close())

	conn := net.NewConnection(net.WithConnectTimeout(500 * time.Millisecond))
	err := conn.Connect(host, port)
	require.Error(t, err)
	assert.Equal(t, net.StateError, conn.State())
}

func TestEncryptedRoundTripOverWire(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	var got string
	conn, peer := dial(t, ln, host, port, func(c *net.Connection) {
		c.OnMessage(func(r *packet.Reader) {
			_, err := r.ReadByte()
			require.NoError(t, err)
			got, err = r.ReadString()
			require.NoError(t, err)
			assert.Equal(t, 0, r.Remaining(), "padding must not leak into the payload")
		})
	})
	defer conn.Disconnect()

	key, peerCipher := prototest.SharedCipher(t)
	require.NoError(t, conn.Cipher().SetKey(key))

	// Client to server: an odd-length body exercises padding recovery.
	w := packet.NewWriter()
	w.WriteByte(0x96)
	w.WriteString("hello")
	require.NoError(t, conn.Send(w))

	payload, err := prototest.ReadFrame(peer, peerCipher)
	require.NoError(t, err)
	assert.Equal(t, w.Bytes(), payload)

	// Server to client.
	framed, err := prototest.Frame(peerCipher, append([]byte{0xB4}, 0x03, 0x00, 'y', 'e', 's'))
	require.NoError(t, err)
	_, err = peer.Write(framed)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		conn.Poll()
		return got == "yes"
	}, waitFor, 5*time.Millisecond)

	stats := conn.Stats()
	assert.Positive(t, stats.BytesSent)
	assert.Positive(t, stats.BytesReceived)
}

func TestStatsCounters(t *testing.T) {
	ln, host, port := prototest.ListenTCP(t)
	conn, peer := dial(t, ln, host, port, nil)
	defer conn.Disconnect()

	w := packet.NewWriter()
	w.WriteUint32(7)
	require.NoError(t, conn.Send(w))

	_, err := prototest.ReadFrame(peer, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return conn.Stats().BytesSent == uint64(packet.HeaderSize+4)
	}, waitFor, 5*time.Millisecond)
}

func TestRoundTripMeasurement(t *testing.T) {
	conn := net.NewConnection()
	conn.MarkPingSent()
	time.Sleep(10 * time.Millisecond)
	conn.MarkPongReceived()
	assert.GreaterOrEqual(t, conn.Stats().RoundTrip, 10*time.Millisecond)
}
