// Package login implements the short-lived character selection protocol:
// one connection, one request, one terminal response.
package login

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/otforge/otcore/config"
	"github.com/otforge/otcore/crypto"
	"github.com/otforge/otcore/net"
	"github.com/otforge/otcore/packet"
)

// ErrBusy is returned when Login is called while an attempt is in flight.
var ErrBusy = errors.New("login: session already in progress")

// SessionState is the login session state machine.
type SessionState int32

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAwaitingResponse
	StateDone
)

// Result is the single outcome of a login attempt. Exactly one of the three
// shapes applies: a character list (success), a server rejection with the
// server's text verbatim, or a transport error.
type Result struct {
	Characters  Characters
	MOTD        string
	PremiumDays uint16

	ErrorText string // server rejection, not a fault
	Err       error  // transport or protocol failure
}

// OK reports whether the attempt produced a character list.
func (r Result) OK() bool {
	return r.Err == nil && r.ErrorText == ""
}

// Session drives one login attempt over one Connection. The owner pumps
// Poll on a regular cadence; the result callback fires exactly once.
type Session struct {
	cfg      config.Client
	conn     *net.Connection
	onResult func(Result)

	state atomic.Int32
	done  atomic.Bool
	res   Result
}

// NewSession creates an idle login session. onResult is required.
func NewSession(cfg config.Client, onResult func(Result)) *Session {
	return &Session{cfg: cfg, onResult: onResult}
}

// State returns the current session state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Poll dispatches any received responses and faults. No-op while idle.
func (s *Session) Poll() {
	if s.conn != nil {
		s.conn.Poll()
	}
}

// Login opens a connection and sends the login request for the account.
// Returns an error only for invalid local state or configuration; every
// network outcome arrives through the result callback.
func (s *Session) Login(host string, port int, account, password string) error {
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
		return fmt.Errorf("login: %w", err)
	}

	s.conn = net.NewConnection(
		net.WithConnectTimeout(s.cfg.ConnectTimeout),
		net.WithQueueSize(s.cfg.QueueSize),
	)
	s.conn.OnMessage(s.handleMessage)
	s.conn.OnError(func(err error) { s.finish(Result{Err: err}) })

	go s.run(host, port, pk, key, account, password)
	return nil
}

// Cancel disconnects without firing a result.
func (s *Session) Cancel() {
	s.done.Store(true)
	s.state.Store(int32(StateDone))
	if s.conn != nil {
		s.conn.Disconnect()
	}
}

func (s *Session) run(host string, port int, pk *crypto.PublicKey, key crypto.SessionKey, account, password string) {
	if err := s.conn.Connect(host, port); err != nil {
		s.finish(Result{Err: err})
		return
	}

	req, err := buildRequest(s.cfg, pk, key, account, password)
	if err != nil {
		s.finish(Result{Err: err})
		return
	}
	if err := s.conn.Send(req); err != nil {
		s.finish(Result{Err: err})
		return
	}
	// The request itself travels with only the asymmetric block encrypted;
	// everything after it is symmetric under the fresh session key.
	if err := s.conn.Cipher().SetKey(key); err != nil {
		s.finish(Result{Err: err})
		return
	}
	s.state.Store(int32(StateAwaitingResponse))
	slog.Debug("login request sent", "account", account)
}

func (s *Session) handleMessage(r *packet.Reader) {
	terminal, err := parseResponse(r, &s.res)
	if err != nil {
		s.finish(Result{Err: fmt.Errorf("malformed login response: %w", err)})
		return
	}
	if terminal {
		s.finish(s.res)
	}
}

// finish closes the connection and fires the result exactly once.
func (s *Session) finish(res Result) {
	if s.done.Swap(true) {
		return
	}
	s.state.Store(int32(StateDone))
	s.conn.Disconnect()
	s.onResult(res)
}
