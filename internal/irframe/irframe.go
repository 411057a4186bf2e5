// Package irframe encodes raw IR transmit commands into the byte-stuffed
// frames the transmitter firmware reads from its HID output reports, and
// parses the acknowledgement frames it answers with.
package irframe

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// Unique frame flags. Any payload byte in 0xF0..0xF3 is stuffed.
	ReservedFlag     = 0xF0
	StartFlag        = 0xF1
	StopFlag         = 0xF2
	ByteStuffingFlag = 0xF3

	CmdTransmitRaw byte = 0x30
	CmdAck         byte = 0x80

	// MaxPulses is the size of the firmware pulse buffer.
	MaxPulses = 512

	transmitHeaderLen = 1 + 2 + 1 + 2 // cmd, frequency, repeats, count
)

// Ack status codes.
const (
	StatusOK       byte = 0x00
	StatusBusy     byte = 0x01
	StatusBadFrame byte = 0x02
	StatusTooLong  byte = 0x03
)

var statusText = map[byte]string{
	StatusOK:       "ok",
	StatusBusy:     "busy",
	StatusBadFrame: "bad frame",
	StatusTooLong:  "sequence too long",
}

// StatusText describes an ack status code.
func StatusText(status byte) string {
	if s, ok := statusText[status]; ok {
		return s
	}
	return fmt.Sprintf("status 0x%02X", status)
}

var (
	ErrEmptyPulses   = errors.New("no pulses")
	ErrTooManyPulses = errors.New("too many pulses")
	ErrChecksum      = errors.New("checksum mismatch")
	ErrNoFrame       = errors.New("no frame found")
)

// Command is an unframed command: command byte followed by its data.
type Command []byte

// ID returns the command byte.
func (c Command) ID() byte {
	if len(c) == 0 {
		return 0
	}
	return c[0]
}

// TransmitRawCommand is the decoded form of a CmdTransmitRaw command.
type TransmitRawCommand struct {
	Pulses      []uint16
	FrequencyHz uint16
	Repeats     uint8
}

// TransmitRaw builds a raw transmit command. Multi-byte fields are little endian.
func TransmitRaw(pulses []uint16, frequencyHz uint16, repeats uint8) (Command, error) {
	if len(pulses) == 0 {
		return nil, ErrEmptyPulses
	}
	if len(pulses) > MaxPulses {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPulses, len(pulses), MaxPulses)
	}

	b := make([]byte, transmitHeaderLen, transmitHeaderLen+2*len(pulses))
	b[0] = CmdTransmitRaw
	binary.LittleEndian.PutUint16(b[1:3], frequencyHz)
	b[3] = repeats
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(pulses)))
	for _, p := range pulses {
		b = binary.LittleEndian.AppendUint16(b, p)
	}
	return b, nil
}

// DecodeTransmitRaw is the inverse of TransmitRaw.
func DecodeTransmitRaw(c Command) (TransmitRawCommand, error) {
	if len(c) < transmitHeaderLen || c[0] != CmdTransmitRaw {
		return TransmitRawCommand{}, fmt.Errorf("not a transmit command: %s", EncodeReportToString(c))
	}

	n := int(binary.LittleEndian.Uint16(c[4:6]))
	if len(c) != transmitHeaderLen+2*n {
		return TransmitRawCommand{}, fmt.Errorf("transmit command declares %d pulses, carries %d bytes", n, len(c)-transmitHeaderLen)
	}

	pulses := make([]uint16, n)
	for i := range pulses {
		off := transmitHeaderLen + 2*i
		pulses[i] = binary.LittleEndian.Uint16(c[off : off+2])
	}
	return TransmitRawCommand{
		Pulses:      pulses,
		FrequencyHz: binary.LittleEndian.Uint16(c[1:3]),
		Repeats:     c[3],
	}, nil
}

// Ack builds the acknowledgement the firmware sends after a command.
func Ack(status byte) Command {
	return Command{CmdAck, status}
}

// AckStatus returns the status byte of an ack command.
func AckStatus(c Command) (byte, error) {
	if len(c) != 2 || c[0] != CmdAck {
		return 0, fmt.Errorf("not an ack: %s", EncodeReportToString(c))
	}
	return c[1], nil
}

func Checksum(bytes []byte) byte {
	var checksum byte
	for _, b := range bytes {
		checksum ^= b
	}

	return checksum
}

// Encode frames a command: start flag, stuffed command and checksum, stop flag.
func Encode(c Command) []byte {
	contents := make([]byte, 0, len(c)+1)
	contents = append(contents, c...)
	contents = append(contents, Checksum(c))

	frame := []byte{StartFlag}
	frame = append(frame, byteStuff(contents)...)
	frame = append(frame, StopFlag)
	return frame
}

// Chunk splits a frame into zero-padded report payloads of the given length.
func Chunk(frame []byte, length int) [][]byte {
	if length <= 0 {
		return nil
	}

	var out [][]byte
	for len(frame) > 0 {
		payload := make([]byte, length)
		n := copy(payload, frame)
		frame = frame[n:]
		out = append(out, payload)
	}
	return out
}

// ParseFrames extracts every well-formed frame in b. Bytes outside a
// start/stop pair, such as report padding, are ignored.
func ParseFrames(b []byte) ([]Command, error) {
	var (
		commands []Command
		lastErr  error
	)

	start := -1
	for i := 0; i < len(b); i++ {
		switch {
		case b[i] == StartFlag:
			start = i
		case b[i] == StopFlag && start != -1:
			c, err := parseFrame(b[start+1 : i])
			start = -1
			if err != nil {
				lastErr = err
				continue
			}
			commands = append(commands, c)
		}
	}

	if len(commands) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrNoFrame
	}
	return commands, nil
}

func parseFrame(stuffed []byte) (Command, error) {
	unstuffed, err := byteUnstuff(stuffed)
	if err != nil {
		return nil, fmt.Errorf("byte unstuffing failed: %w", err)
	}
	if len(unstuffed) < 2 {
		return nil, fmt.Errorf("frame too short: %s", EncodeReportToString(unstuffed))
	}

	body := unstuffed[:len(unstuffed)-1]
	declared := unstuffed[len(unstuffed)-1]
	if computed := Checksum(body); computed != declared {
		return nil, fmt.Errorf("%w: declared 0x%02X, computed 0x%02X", ErrChecksum, declared, computed)
	}
	return Command(body), nil
}

// EncodeReportToString renders bytes as dash separated hex for logs.
func EncodeReportToString(b []byte) string {
	hexDigits := hex.EncodeToString(b)
	var builder strings.Builder
	for i, r := range hexDigits {
		if i > 0 && i%2 == 0 {
			builder.WriteString("-")
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func byteStuff(input []byte) []byte {
	out := make([]byte, 0, len(input))

	for _, b := range input {
		switch b {
		case ReservedFlag, StartFlag, StopFlag, ByteStuffingFlag:
			out = append(out, ByteStuffingFlag, b&0x03)
		default:
			out = append(out, b)
		}
	}

	return out
}

func byteUnstuff(input []byte) ([]byte, error) {
	out := make([]byte, 0, len(input))

	for i := 0; i < len(input); i++ {
		b := input[i]

		if b != ByteStuffingFlag {
			out = append(out, b)
			continue
		}

		// Escape byte must be followed by a stuffing value
		if i+1 >= len(input) {
			return nil, fmt.Errorf("truncated escape sequence")
		}

		i++
		if input[i] > 0x03 {
			return nil, fmt.Errorf("invalid escape value 0x%02X", input[i])
		}
		out = append(out, 0xF0|input[i])
	}

	return out, nil
}
