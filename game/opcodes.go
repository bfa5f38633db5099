package game

// Client to server opcodes. Values are fixed by the protocol family and
// must match existing servers bit for bit.
const (
	ClientEnterWorld byte = 0x0A
	ClientLogout     byte = 0x14
	ClientPing       byte = 0x1D
	ClientPong       byte = 0x1E

	ClientAutoWalk      byte = 0x64
	ClientWalkNorth     byte = 0x65
	ClientWalkEast      byte = 0x66
	ClientWalkSouth     byte = 0x67
	ClientWalkWest      byte = 0x68
	ClientStopWalk      byte = 0x69
	ClientWalkNorthEast byte = 0x6A
	ClientWalkSouthEast byte = 0x6B
	ClientWalkSouthWest byte = 0x6C
	ClientWalkNorthWest byte = 0x6D
	ClientTurnNorth     byte = 0x6F
	ClientTurnEast      byte = 0x70
	ClientTurnSouth     byte = 0x71
	ClientTurnWest      byte = 0x72

	ClientMoveItem       byte = 0x78
	ClientUseItem        byte = 0x82
	ClientUseItemWith    byte = 0x83
	ClientCloseContainer byte = 0x87
	ClientContainerUp    byte = 0x88
	ClientLook           byte = 0x8C

	ClientSay                byte = 0x96
	ClientRequestChannels    byte = 0x97
	ClientOpenChannel        byte = 0x98
	ClientCloseChannel       byte = 0x99
	ClientOpenPrivateChannel byte = 0x9A

	ClientSetFightModes         byte = 0xA0
	ClientAttack                byte = 0xA1
	ClientFollow                byte = 0xA2
	ClientCancelAttackAndFollow byte = 0xBE

	ClientRequestOutfit byte = 0xD2
	ClientSetOutfit     byte = 0xD3
)

// Server to client opcodes (independent namespace). Every inbound opcode
// dispatches to exactly one handler; unrecognized opcodes are ignored for
// forward compatibility.
const (
	ServerLoginSuccess byte = 0x0D
	ServerLoginError   byte = 0x14
	ServerPing         byte = 0x1D
	ServerPong         byte = 0x1E
	ServerDeath        byte = 0x28

	ServerFullMap  byte = 0x64
	ServerMapNorth byte = 0x65
	ServerMapEast  byte = 0x66
	ServerMapSouth byte = 0x67
	ServerMapWest  byte = 0x68

	ServerPlayerStats   byte = 0xA0
	ServerPlayerSkills  byte = 0xA1
	ServerCreatureSpeak byte = 0xAA
	ServerTextMessage   byte = 0xB4
	ServerCancelWalk    byte = 0xB5
)
