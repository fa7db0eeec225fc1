// Package protocol implements the quiz service's wire format: a fixed-width
// text frame consisting of a 16 byte space-padded command token, a 4 digit
// zero-padded decimal data length, and the data itself, with "|" between the
// fields. Compound values inside the data field are separated by "#".
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command identifies the purpose of a Frame. The token set is closed; Encode
// and Decode both reject anything outside of it.
type Command string

// Client -> server commands.
const (
	Login       Command = "LOGIN"
	Logout      Command = "LOGOUT"
	Logged      Command = "LOGGED"
	GetQuestion Command = "GET_QUESTION"
	SendAnswer  Command = "SEND_ANSWER"
	MyScore     Command = "MY_SCORE"
	Highscore   Command = "HIGHSCORE"
)

// Server -> client commands.
const (
	LoginOK            Command = "LOGIN_OK"
	LoggedAnswer       Command = "LOGGED_ANSWER"
	YourQuestion       Command = "YOUR_QUESTION"
	CorrectAnswer      Command = "CORRECT_ANSWER"
	WrongAnswer        Command = "WRONG_ANSWER"
	UnacceptableAnswer Command = "UNACCEPTABLE_ANSWER"
	YourScore          Command = "YOUR_SCORE"
	AllScore           Command = "ALL_SCORE"
	Error              Command = "ERROR"
	NoQuestions        Command = "NO_QUESTIONS"
)

const (
	// CommandFieldLength is the exact width of the command field in bytes.
	CommandFieldLength = 16
	// LengthFieldLength is the exact width of the data length field in bytes.
	LengthFieldLength = 4
	// MaxDataLength is the largest data field the length field can describe.
	MaxDataLength = 9999
	// HeaderLength is the size of a frame up to and including the second delimiter.
	HeaderLength = CommandFieldLength + 1 + LengthFieldLength + 1
	// MaxFrameLength bounds the size of a fully encoded frame.
	MaxFrameLength = HeaderLength + MaxDataLength

	// FieldDelimiter separates the command, length, and data fields.
	FieldDelimiter = "|"
	// DataDelimiter separates compound sub-fields inside the data field.
	DataDelimiter = "#"
)

var (
	ErrUnknownCommand = errors.New("command is not part of the protocol")
	ErrDataTooLong    = errors.New("data exceeds the maximum frame size")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrLengthMismatch = errors.New("declared length does not match data length")
	ErrFieldCount     = errors.New("unexpected number of data fields")
)

var commandSet = map[Command]struct{}{
	Login:              {},
	Logout:             {},
	Logged:             {},
	GetQuestion:        {},
	SendAnswer:         {},
	MyScore:            {},
	Highscore:          {},
	LoginOK:            {},
	LoggedAnswer:       {},
	YourQuestion:       {},
	CorrectAnswer:      {},
	WrongAnswer:        {},
	UnacceptableAnswer: {},
	YourScore:          {},
	AllScore:           {},
	Error:              {},
	NoQuestions:        {},
}

// Valid reports whether c is part of the protocol's fixed command set.
func (c Command) Valid() bool {
	_, ok := commandSet[c]
	return ok
}

// Frame is one complete protocol message.
type Frame struct {
	Command Command
	Data    string
}

// Encode builds the wire representation of a frame. It fails if the command
// is not part of the fixed token set or if the data cannot be described by
// the 4 digit length field. An empty data field is valid and encodes as 0000.
func Encode(cmd Command, data string) ([]byte, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	if len(data) > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLong, len(data))
	}

	frame := fmt.Sprintf("%-*s%s%0*d%s%s",
		CommandFieldLength, string(cmd),
		FieldDelimiter,
		LengthFieldLength, len(data),
		FieldDelimiter,
		data,
	)
	return []byte(frame), nil
}

// Decode parses a raw frame into its command and data. The raw bytes must
// split into exactly three fields; data containing the field delimiter
// breaks decoding since the protocol has no escaping. The command and length
// tokens are trimmed of surrounding whitespace, the declared length must
// equal the actual data length, and the command must be in the token set.
func Decode(raw []byte) (Frame, error) {
	parts := strings.Split(string(raw), FieldDelimiter)
	if len(parts) != 3 {
		return Frame{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedFrame, len(parts))
	}

	declared, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Frame{}, fmt.Errorf("%w: bad length field %q", ErrMalformedFrame, parts[1])
	}
	if declared != len(parts[2]) {
		return Frame{}, fmt.Errorf("%w: declared %d, actual %d", ErrLengthMismatch, declared, len(parts[2]))
	}

	cmd := Command(strings.TrimSpace(parts[0]))
	if !cmd.Valid() {
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}

	return Frame{Command: cmd, Data: parts[2]}, nil
}

// SplitFields splits a data field on the data delimiter. It succeeds only if
// msg contains exactly expected occurrences of the delimiter, in which case
// it returns expected+1 fields.
func SplitFields(msg string, expected int) ([]string, error) {
	if found := strings.Count(msg, DataDelimiter); found != expected {
		return nil, fmt.Errorf("%w: expected %d, found %d in %q", ErrFieldCount, expected, found, msg)
	}
	return strings.Split(msg, DataDelimiter), nil
}

// JoinFields is the inverse of SplitFields.
func JoinFields(fields []string) string {
	return strings.Join(fields, DataDelimiter)
}
