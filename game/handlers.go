package game

import (
	"fmt"
	"log/slog"

	"github.com/otforge/otcore/packet"
)

// handleMessage dispatches every opcode of one decrypted message body.
// Bodies may carry several opcodes back to back. An unknown opcode makes
// the rest of the body unparseable, so it is dropped and logged, never
// fatal; the same goes for a body that ends mid-payload.
func (s *Session) handleMessage(r *packet.Reader) {
	for r.Remaining() > 0 {
		opcode, err := r.ReadByte()
		if err != nil {
			return
		}
		known, err := s.dispatch(opcode, r)
		if err != nil {
			slog.Warn("dropping malformed message", "opcode", fmt.Sprintf("0x%02X", opcode), "error", err)
			return
		}
		if !known {
			slog.Debug("ignoring unknown opcode", "opcode", fmt.Sprintf("0x%02X", opcode), "dropped", r.Remaining())
			return
		}
	}
}

// dispatch routes one opcode to its handler. Returns known=false for
// opcodes this client does not understand.
func (s *Session) dispatch(opcode byte, r *packet.Reader) (known bool, err error) {
	switch opcode {
	case ServerLoginSuccess:
		return true, s.handleLoginSuccess(r)
	case ServerLoginError:
		return true, s.handleLoginError(r)
	case ServerPing:
		return true, s.handlePing()
	case ServerPong:
		s.conn.MarkPongReceived()
		return true, nil
	case ServerDeath:
		if s.ev.OnDeath != nil {
			s.ev.OnDeath()
		}
		return true, nil
	case ServerFullMap, ServerMapNorth, ServerMapEast, ServerMapSouth, ServerMapWest:
		return true, s.handleMap(opcode, r)
	case ServerPlayerStats:
		return true, s.handlePlayerStats(r)
	case ServerPlayerSkills:
		return true, s.handlePlayerSkills(r)
	case ServerCreatureSpeak:
		return true, s.handleCreatureSpeak(r)
	case ServerTextMessage:
		return true, s.handleTextMessage(r)
	case ServerCancelWalk:
		return true, s.handleCancelWalk(r)
	default:
		return false, nil
	}
}

func (s *Session) handleLoginSuccess(r *packet.Reader) error {
	playerID, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("reading player id: %w", err)
	}
	beat, err := r.ReadUint16()
	if err != nil {
		return fmt.Errorf("reading server beat: %w", err)
	}
	reportBugs, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading report flag: %w", err)
	}

	s.playerID.Store(playerID)
	s.state.Store(int32(StateInWorld))
	slog.Info("entered world", "player_id", playerID)
	if s.ev.OnEnter != nil {
		s.ev.OnEnter(WorldInfo{PlayerID: playerID, Beat: beat, CanReportBugs: reportBugs != 0})
	}
	return nil
}

// handleLoginError is a terminal failure of the enter-world handshake: the
// server's text is surfaced verbatim and the connection is closed. This is
// an application-level rejection, not a transport fault.
func (s *Session) handleLoginError(r *packet.Reader) error {
	text, err := r.ReadString()
	if err != nil {
		return fmt.Errorf("reading login error: %w", err)
	}
	if s.done.Swap(true) {
		return nil
	}
	s.conn.Disconnect()
	s.state.Store(int32(StateDisconnected))
	if s.ev.OnLoginError != nil {
		s.ev.OnLoginError(text)
	}
	return nil
}

// handlePing answers a server keepalive immediately, without caller action.
func (s *Session) handlePing() error {
	w := packet.NewWriter()
	w.WriteByte(ClientPong)
	return s.conn.Send(w)
}

func (s *Session) handleMap(opcode byte, r *packet.Reader) error {
	ev := MapEvent{Opcode: opcode}
	if opcode == ServerFullMap {
		origin, err := r.ReadPosition()
		if err != nil {
			return fmt.Errorf("reading map origin: %w", err)
		}
		ev.Origin = origin
	}
	data, err := r.ReadBytes(r.Remaining())
	if err != nil {
		return fmt.Errorf("reading map data: %w", err)
	}
	ev.Data = data
	if s.ev.OnMap != nil {
		s.ev.OnMap(ev)
	}
	return nil
}

func (s *Session) handlePlayerStats(r *packet.Reader) error {
	var st PlayerStats
	var err error
	if st.Health, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.MaxHealth, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.Capacity, err = r.ReadUint32(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.Experience, err = r.ReadUint32(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.Level, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.LevelPercent, err = r.ReadByte(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.Mana, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.MaxMana, err = r.ReadUint16(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.MagicLevel, err = r.ReadByte(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.MagicLevelPercent, err = r.ReadByte(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if st.Soul, err = r.ReadByte(); err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	if s.ev.OnStats != nil {
		s.ev.OnStats(st)
	}
	return nil
}

func (s *Session) handlePlayerSkills(r *packet.Reader) error {
	var sk Skills
	for i := range sk {
		level, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("reading skill %d: %w", i, err)
		}
		percent, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("reading skill %d: %w", i, err)
		}
		sk[i] = Skill{Level: level, Percent: percent}
	}
	if s.ev.OnSkills != nil {
		s.ev.OnSkills(sk)
	}
	return nil
}

func (s *Session) handleCreatureSpeak(r *packet.Reader) error {
	var sp CreatureSpeak
	var err error
	if sp.Name, err = r.ReadString(); err != nil {
		return fmt.Errorf("reading speaker: %w", err)
	}
	class, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading speak class: %w", err)
	}
	sp.Class = SpeakClass(class)
	switch {
	case sp.Class.positional():
		if sp.Position, err = r.ReadPosition(); err != nil {
			return fmt.Errorf("reading speak position: %w", err)
		}
	case sp.Class == SpeakChannel:
		if sp.Channel, err = r.ReadUint16(); err != nil {
			return fmt.Errorf("reading speak channel: %w", err)
		}
	}
	if sp.Text, err = r.ReadString(); err != nil {
		return fmt.Errorf("reading speak text: %w", err)
	}
	if s.ev.OnCreatureSpeak != nil {
		s.ev.OnCreatureSpeak(sp)
	}
	return nil
}

func (s *Session) handleTextMessage(r *packet.Reader) error {
	class, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading message class: %w", err)
	}
	text, err := r.ReadString()
	if err != nil {
		return fmt.Errorf("reading message text: %w", err)
	}
	if s.ev.OnTextMessage != nil {
		s.ev.OnTextMessage(TextMessage{Class: class, Text: text})
	}
	return nil
}

func (s *Session) handleCancelWalk(r *packet.Reader) error {
	code, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("reading cancel walk direction: %w", err)
	}
	if s.ev.OnCancelWalk != nil {
		s.ev.OnCancelWalk(Direction(code))
	}
	return nil
}
