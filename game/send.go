package game

import (
	"fmt"
	"time"

	"github.com/otforge/otcore/packet"
)

// send builds one message and enqueues it. Every player intent maps to one
// fire-and-forget message; ordering on the wire equals call order.
func (s *Session) send(build func(w *packet.Writer)) error {
	if s.State() != StateInWorld {
		return ErrNotInWorld
	}
	w := packet.NewWriter()
	build(w)
	return s.conn.Send(w)
}

// Walk takes a single step in the given direction.
func (s *Session) Walk(dir Direction) error {
	opcode, ok := walkOpcodes[dir]
	if !ok {
		return fmt.Errorf("game: invalid walk direction %v", dir)
	}
	return s.send(func(w *packet.Writer) {
		w.WriteByte(opcode)
	})
}

// AutoWalk sends a multi-step path, at most 255 steps.
func (s *Session) AutoWalk(steps []Direction) error {
	if len(steps) == 0 || len(steps) > 255 {
		return fmt.Errorf("game: auto walk path length %d out of range", len(steps))
	}
	codes := make([]byte, len(steps))
	for i, dir := range steps {
		code, ok := stepCodes[dir]
		if !ok {
			return fmt.Errorf("game: invalid path direction %v", dir)
		}
		codes[i] = code
	}
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientAutoWalk)
		w.WriteByte(byte(len(codes)))
		w.WriteBytes(codes)
	})
}

// StopWalk cancels the current walk.
func (s *Session) StopWalk() error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientStopWalk)
	})
}

// Turn faces a cardinal direction without moving.
func (s *Session) Turn(dir Direction) error {
	opcode, ok := turnOpcodes[dir]
	if !ok {
		return fmt.Errorf("game: invalid turn direction %v", dir)
	}
	return s.send(func(w *packet.Writer) {
		w.WriteByte(opcode)
	})
}

// Look inspects the thing at the given position and stack index.
func (s *Session) Look(pos packet.Position, itemID uint16, stackPos byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientLook)
		w.WritePosition(pos)
		w.WriteUint16(itemID)
		w.WriteByte(stackPos)
	})
}

// UseItem uses the item at the given position. Containers open through use;
// index selects the container window the server should open into.
func (s *Session) UseItem(pos packet.Position, itemID uint16, stackPos, index byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientUseItem)
		w.WritePosition(pos)
		w.WriteUint16(itemID)
		w.WriteByte(stackPos)
		w.WriteByte(index)
	})
}

// UseItemWith uses one item on another.
func (s *Session) UseItemWith(from packet.Position, itemID uint16, fromStack byte, to packet.Position, targetID uint16, toStack byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientUseItemWith)
		w.WritePosition(from)
		w.WriteUint16(itemID)
		w.WriteByte(fromStack)
		w.WritePosition(to)
		w.WriteUint16(targetID)
		w.WriteByte(toStack)
	})
}

// MoveItem moves count items from one position to another.
func (s *Session) MoveItem(from packet.Position, itemID uint16, stackPos byte, to packet.Position, count byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientMoveItem)
		w.WritePosition(from)
		w.WriteUint16(itemID)
		w.WriteByte(stackPos)
		w.WritePosition(to)
		w.WriteByte(count)
	})
}

// Attack targets a creature, 0 to clear the target.
func (s *Session) Attack(creatureID uint32) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientAttack)
		w.WriteUint32(creatureID)
	})
}

// Follow follows a creature, 0 to stop following.
func (s *Session) Follow(creatureID uint32) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientFollow)
		w.WriteUint32(creatureID)
	})
}

// CancelAttackAndFollow clears both the attack target and the follow
// target.
func (s *Session) CancelAttackAndFollow() error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientCancelAttackAndFollow)
	})
}

// SetFightModes announces the combat stance triple.
func (s *Session) SetFightModes(m FightModes) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientSetFightModes)
		w.WriteByte(m.Fight)
		w.WriteByte(m.Chase)
		w.WriteByte(m.Safe)
	})
}

// Say speaks with an ambient class (say, whisper, yell).
func (s *Session) Say(class SpeakClass, text string) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientSay)
		w.WriteByte(byte(class))
		w.WriteString(text)
	})
}

// SayPrivate sends a private message to the named receiver.
func (s *Session) SayPrivate(receiver, text string) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientSay)
		w.WriteByte(byte(SpeakPrivate))
		w.WriteString(receiver)
		w.WriteString(text)
	})
}

// SayChannel speaks into an open channel.
func (s *Session) SayChannel(channel uint16, text string) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientSay)
		w.WriteByte(byte(SpeakChannel))
		w.WriteUint16(channel)
		w.WriteString(text)
	})
}

// RequestChannels asks for the list of joinable channels.
func (s *Session) RequestChannels() error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientRequestChannels)
	})
}

// OpenChannel joins a public channel.
func (s *Session) OpenChannel(channel uint16) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientOpenChannel)
		w.WriteUint16(channel)
	})
}

// CloseChannel leaves a public channel.
func (s *Session) CloseChannel(channel uint16) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientCloseChannel)
		w.WriteUint16(channel)
	})
}

// OpenPrivateChannel opens a conversation with the named player.
func (s *Session) OpenPrivateChannel(receiver string) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientOpenPrivateChannel)
		w.WriteString(receiver)
	})
}

// RequestOutfit asks for the outfit selection window data.
func (s *Session) RequestOutfit() error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientRequestOutfit)
	})
}

// SetOutfit applies the chosen look.
func (s *Session) SetOutfit(o Outfit) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientSetOutfit)
		w.WriteByte(o.Type)
		w.WriteByte(o.Head)
		w.WriteByte(o.Body)
		w.WriteByte(o.Legs)
		w.WriteByte(o.Feet)
	})
}

// CloseContainer closes an open container window.
func (s *Session) CloseContainer(containerID byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientCloseContainer)
		w.WriteByte(containerID)
	})
}

// ContainerUp navigates an open container to its parent.
func (s *Session) ContainerUp(containerID byte) error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientContainerUp)
		w.WriteByte(containerID)
	})
}

// Ping sends an application-level keepalive and opens a round-trip sample;
// the matching pong closes it. A silent server is only ever detected this
// way.
func (s *Session) Ping() error {
	err := s.send(func(w *packet.Writer) {
		w.WriteByte(ClientPing)
	})
	if err == nil {
		s.conn.MarkPingSent()
	}
	return err
}

// Logout asks the server to leave the world without closing the
// connection; the server answers by dropping the session.
func (s *Session) Logout() error {
	return s.send(func(w *packet.Writer) {
		w.WriteByte(ClientLogout)
	})
}

// RoundTrip returns the last measured keepalive round-trip time.
func (s *Session) RoundTrip() time.Duration {
	if s.conn == nil {
		return 0
	}
	return s.conn.Stats().RoundTrip
}
