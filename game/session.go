// Package game implements the long-lived in-world protocol: an enter-world
// handshake followed by bidirectional exchange of player commands and world
// events until logout or disconnect.
package game

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/otforge/otcore/config"
	"github.com/otforge/otcore/crypto"
	"github.com/otforge/otcore/net"
	"github.com/otforge/otcore/packet"
)

// Errors returned by session operations.
var (
	ErrBusy       = errors.New("game: session already in progress")
	ErrNotInWorld = errors.New("game: not in world")
)

// SessionState is the game session state machine.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateLoggingIn
	StateInWorld
	StateDisconnected
)

// Events holds the callbacks a session fires. At most one handler per
// event; replace before Connect. Every callback fires from Poll on the
// owning goroutine, except none: connect failures also arrive via OnLost.
type Events struct {
	OnEnter      func(WorldInfo)
	OnLoginError func(text string)

	// OnLost is the single failure event for peer close, socket error and
	// protocol fault alike. The connection is already torn down when it
	// fires.
	OnLost func(error)

	OnDeath         func()
	OnMap           func(MapEvent)
	OnStats         func(PlayerStats)
	OnSkills        func(Skills)
	OnTextMessage   func(TextMessage)
	OnCreatureSpeak func(CreatureSpeak)
	OnCancelWalk    func(Direction)
}

// Session drives one in-world connection. The owner pumps Poll on a
// regular cadence; all send methods are fire-and-forget.
type Session struct {
	cfg config.Client
	ev  Events

	conn  *net.Connection
	state atomic.Int32
	done  atomic.Bool

	playerID atomic.Uint32
}

// NewSession creates an idle game session.
func NewSession(cfg config.Client, ev Events) *Session {
	return &Session{cfg: cfg, ev: ev}
}

// State returns the current session state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// PlayerID returns the id assigned at enter-world, 0 before that.
func (s *Session) PlayerID() uint32 { return s.playerID.Load() }

// Stats returns transport counters for a UI status line.
func (s *Session) Stats() net.Stats {
	if s.conn == nil {
		return net.Stats{}
	}
	return s.conn.Stats()
}

// Poll dispatches received world events and faults. No-op while idle.
func (s *Session) Poll() {
	if s.conn != nil {
		s.conn.Poll()
	}
}

// Connect opens a connection to a world server and sends the enter-world
// request. The outcome arrives via OnEnter, OnLoginError or OnLost.
func (s *Session) Connect(host string, port int, account, character, password string) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
		return ErrBusy
	}

	pk, err := s.cfg.PublicKey()
	if err != nil {
		s.state.Store(int32(StateIdle))
		return err
	}
	key, err := crypto.NewSessionKey()
	if err != nil {
		s.state.Store(int32(StateIdle))
		return fmt.Errorf("game: %w", err)
	}

	s.conn = net.NewConnection(
		net.WithConnectTimeout(s.cfg.ConnectTimeout),
		net.WithQueueSize(s.cfg.QueueSize),
	)
	s.conn.OnMessage(s.handleMessage)
	s.conn.OnError(s.lost)

	go s.run(host, port, pk, key, account, character, password)
	return nil
}

// Disconnect best-effort sends the logout opcode, then tears down the
// connection. Idempotent.
func (s *Session) Disconnect() {
	if s.conn == nil || s.done.Swap(true) {
		return
	}
	if s.State() == StateInWorld {
		w := packet.NewWriter()
		w.WriteByte(ClientLogout)
		if err := s.conn.Send(w); err != nil {
			slog.Debug("logout send failed", "error", err)
		}
	}
	s.conn.Disconnect()
	s.state.Store(int32(StateDisconnected))
}

func (s *Session) run(host string, port int, pk *crypto.PublicKey, key crypto.SessionKey, account, character, password string) {
	if err := s.conn.Connect(host, port); err != nil {
		s.lost(err)
		return
	}

	req, err := buildEnterWorld(s.cfg, pk, key, account, character, password)
	if err != nil {
		s.lost(err)
		return
	}
	if err := s.conn.Send(req); err != nil {
		s.lost(err)
		return
	}
	if err := s.conn.Cipher().SetKey(key); err != nil {
		s.lost(err)
		return
	}
	s.state.Store(int32(StateLoggingIn))
	slog.Debug("enter world request sent", "character", character)
}

// buildEnterWorld assembles the enter-world request: opcode, client
// identity, then the encrypted block with the session key and credentials.
func buildEnterWorld(cfg config.Client, pk *crypto.PublicKey, key crypto.SessionKey, account, character, password string) (*packet.Writer, error) {
	w := packet.NewWriter()
	w.WriteByte(ClientEnterWorld)
	w.WriteUint16(cfg.OS)
	w.WriteUint16(cfg.Version)

	bw := packet.NewWriterSize(pk.BlockSize())
	bw.WriteByte(0)
	for _, word := range key {
		bw.WriteUint32(word)
	}
	bw.WriteByte(0) // gamemaster flag
	bw.WriteString(account)
	bw.WriteString(character)
	bw.WriteString(password)
	if err := bw.Err(); err != nil {
		return nil, fmt.Errorf("building key block: %w", err)
	}

	block := make([]byte, pk.BlockSize())
	copy(block, bw.Bytes())
	if _, err := rand.Read(block[bw.Len():]); err != nil {
		return nil, fmt.Errorf("padding key block: %w", err)
	}
	if err := pk.Encrypt(block); err != nil {
		return nil, fmt.Errorf("encrypting key block: %w", err)
	}
	w.WriteBytes(block)

	if err := w.Err(); err != nil {
		return nil, fmt.Errorf("building enter world request: %w", err)
	}
	return w, nil
}

// lost handles the unified transport failure event.
func (s *Session) lost(err error) {
	if s.done.Swap(true) {
		return
	}
	s.conn.Disconnect()
	s.state.Store(int32(StateDisconnected))
	if s.ev.OnLost != nil {
		s.ev.OnLost(err)
	}
}
