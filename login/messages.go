package login

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	gonet "net"
	"strconv"
	"strings"

	"github.com/otforge/otcore/config"
	"github.com/otforge/otcore/crypto"
	"github.com/otforge/otcore/packet"
)

// Login protocol opcodes. Client and server opcodes live in independent
// single-byte namespaces.
const (
	OpcodeLoginRequest byte = 0x01

	OpcodeError         byte = 0x0A
	OpcodeMOTD          byte = 0x0B
	OpcodeCharacterList byte = 0x14
)

// CharacterEntry is one character on the account's character list, owned by
// the caller after delivery.
type CharacterEntry struct {
	Name    string
	World   string
	Address string
	Port    uint16
}

// Characters is the parsed character list.
type Characters []CharacterEntry

// Find returns the entry with the given name, or false.
func (cs Characters) Find(name string) (CharacterEntry, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return CharacterEntry{}, false
}

// SplitMOTD splits a message of the day into its sequence number and text.
// Servers send "<n>\n<text>"; clients use n to suppress an already-seen
// message. A MOTD without the convention yields sequence 0 and the full text.
func SplitMOTD(motd string) (int, string) {
	seq, text, ok := strings.Cut(motd, "\n")
	if !ok {
		return 0, motd
	}
	n, err := strconv.Atoi(seq)
	if err != nil {
		return 0, motd
	}
	return n, text
}

// buildRequest assembles the login request: opcode, client identity, then
// the asymmetrically encrypted block carrying the fresh session key and the
// credentials. The block's leading zero byte keeps the plaintext below the
// modulus; the tail is filled with random bytes before encryption.
func buildRequest(cfg config.Client, pk *crypto.PublicKey, key crypto.SessionKey, account, password string) (*packet.Writer, error) {
	w := packet.NewWriter()
	w.WriteByte(OpcodeLoginRequest)
	w.WriteUint16(cfg.OS)
	w.WriteUint16(cfg.Version)
	w.WriteUint32(cfg.DatSignature)
	w.WriteUint32(cfg.SprSignature)
	w.WriteUint32(cfg.PicSignature)

	bw := packet.NewWriterSize(pk.BlockSize())
	bw.WriteByte(0)
	for _, word := range key {
		bw.WriteUint32(word)
	}
	bw.WriteString(account)
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
		return nil, fmt.Errorf("building login request: %w", err)
	}
	return w, nil
}

// parseResponse consumes opcodes from one decrypted message body into res.
// Returns true once a terminal response (error or character list) was seen.
func parseResponse(r *packet.Reader, res *Result) (bool, error) {
	for r.Remaining() > 0 {
		opcode, err := r.ReadByte()
		if err != nil {
			return false, err
		}
		switch opcode {
		case OpcodeMOTD:
			motd, err := r.ReadString()
			if err != nil {
				return false, fmt.Errorf("reading motd: %w", err)
			}
			res.MOTD = motd

		case OpcodeError:
			text, err := r.ReadString()
			if err != nil {
				return false, fmt.Errorf("reading error text: %w", err)
			}
			res.ErrorText = text
			return true, nil

		case OpcodeCharacterList:
			count, err := r.ReadByte()
			if err != nil {
				return false, fmt.Errorf("reading character count: %w", err)
			}
			for i := byte(0); i < count; i++ {
				var entry CharacterEntry
				if entry.Name, err = r.ReadString(); err != nil {
					return false, fmt.Errorf("reading character name: %w", err)
				}
				if entry.World, err = r.ReadString(); err != nil {
					return false, fmt.Errorf("reading character world: %w", err)
				}
				ip, err := r.ReadBytes(4)
				if err != nil {
					return false, fmt.Errorf("reading character address: %w", err)
				}
				entry.Address = gonet.IP(ip).String()
				if entry.Port, err = r.ReadUint16(); err != nil {
					return false, fmt.Errorf("reading character port: %w", err)
				}
				res.Characters = append(res.Characters, entry)
			}
			if res.PremiumDays, err = r.ReadUint16(); err != nil {
				return false, fmt.Errorf("reading premium days: %w", err)
			}
			return true, nil

		default:
			// Unknown opcode: cannot resync within this message, drop the rest.
			slog.Debug("ignoring unknown login opcode", "opcode", fmt.Sprintf("0x%02X", opcode))
			return false, nil
		}
	}
	return false, nil
}
