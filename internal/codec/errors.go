package codec

import "errors"

// Domain-specific errors for wire message handling.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrMalformedMessage is returned when a payload cannot be parsed or
	// is missing a required field for its declared shape. Malformed
	// messages are dropped before they reach any gateway state.
	ErrMalformedMessage = errors.New("codec: malformed message")

	// ErrProtocolViolation is returned when a payload parses but breaks a
	// protocol rule, such as a hostname whose unit-count suffix does not
	// match the reported numlocks.
	ErrProtocolViolation = errors.New("codec: protocol violation")

	// ErrInvalidCommand is returned when an outbound command is missing a
	// required field and cannot be encoded.
	ErrInvalidCommand = errors.New("codec: invalid command")
)
