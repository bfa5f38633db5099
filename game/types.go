package game

import "github.com/otforge/otcore/packet"

// Direction is a movement or facing direction.
type Direction int

const (
	North Direction = iota
	East
	South
	West
	NorthEast
	SouthEast
	SouthWest
	NorthWest
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	case NorthEast:
		return "northeast"
	case SouthEast:
		return "southeast"
	case SouthWest:
		return "southwest"
	case NorthWest:
		return "northwest"
	default:
		return "unknown"
	}
}

// walkOpcodes maps a direction to its single-step walk opcode.
var walkOpcodes = map[Direction]byte{
	North:     ClientWalkNorth,
	East:      ClientWalkEast,
	South:     ClientWalkSouth,
	West:      ClientWalkWest,
	NorthEast: ClientWalkNorthEast,
	SouthEast: ClientWalkSouthEast,
	SouthWest: ClientWalkSouthWest,
	NorthWest: ClientWalkNorthWest,
}

// turnOpcodes maps a cardinal direction to its turn opcode.
var turnOpcodes = map[Direction]byte{
	North: ClientTurnNorth,
	East:  ClientTurnEast,
	South: ClientTurnSouth,
	West:  ClientTurnWest,
}

// stepCodes is the auto-walk path encoding: one byte per step,
// counterclockwise from east.
var stepCodes = map[Direction]byte{
	East:      1,
	NorthEast: 2,
	North:     3,
	NorthWest: 4,
	West:      5,
	SouthWest: 6,
	South:     7,
	SouthEast: 8,
}

// SpeakClass selects the payload shape of a say message.
type SpeakClass byte

const (
	SpeakSay     SpeakClass = 0x01
	SpeakWhisper SpeakClass = 0x02
	SpeakYell    SpeakClass = 0x03
	SpeakPrivate SpeakClass = 0x04
	SpeakChannel SpeakClass = 0x05
)

func (c SpeakClass) String() string {
	switch c {
	case SpeakSay:
		return "say"
	case SpeakWhisper:
		return "whisper"
	case SpeakYell:
		return "yell"
	case SpeakPrivate:
		return "private"
	case SpeakChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// positional reports whether a creature-speak of this class carries the
// speaker's map position on the wire.
func (c SpeakClass) positional() bool {
	return c == SpeakSay || c == SpeakWhisper || c == SpeakYell
}

// FightModes is the combat stance triple sent with ClientSetFightModes.
type FightModes struct {
	Fight byte // 1 offensive, 2 balanced, 3 defensive
	Chase byte // 0 stand, 1 chase opponent
	Safe  byte // 1 prevents attacking other players
}

// Outfit is the player look sent with ClientSetOutfit.
type Outfit struct {
	Type byte
	Head byte
	Body byte
	Legs byte
	Feet byte
}

// WorldInfo is delivered when the enter-world handshake succeeds.
type WorldInfo struct {
	PlayerID      uint32
	Beat          uint16 // server heartbeat interval, milliseconds
	CanReportBugs bool
}

// PlayerStats is the parsed ServerPlayerStats payload.
type PlayerStats struct {
	Health            uint16
	MaxHealth         uint16
	Capacity          uint32
	Experience        uint32
	Level             uint16
	LevelPercent      byte
	Mana              uint16
	MaxMana           uint16
	MagicLevel        byte
	MagicLevelPercent byte
	Soul              byte
}

// Skill is one entry of the ServerPlayerSkills payload.
type Skill struct {
	Level   byte
	Percent byte
}

// Skills holds the seven skill entries in wire order: fist, club, sword,
// axe, distance, shielding, fishing.
type Skills [7]Skill

// TextMessage is a server status or info line.
type TextMessage struct {
	Class byte
	Text  string
}

// CreatureSpeak is something said in the world or a channel.
type CreatureSpeak struct {
	Name     string
	Class    SpeakClass
	Position packet.Position // valid only for positional classes
	Channel  uint16          // valid only for SpeakChannel
	Text     string
}

// MapEvent carries a map description for the UI layer. The payload is the
// raw, opaque map data; decoding it requires the asset layer, which is not
// part of this engine, so a map opcode always consumes the remainder of its
// message.
type MapEvent struct {
	Opcode byte
	Origin packet.Position // valid only for ServerFullMap
	Data   []byte
}
