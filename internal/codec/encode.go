package codec

import (
	"encoding/json"
	"fmt"
)

// CommandType identifies an outbound command shape.
type CommandType string

// Outbound command types.
const (
	// CommandOpenLock releases a lock unit.
	CommandOpenLock CommandType = "openlock"

	// CommandMaintenance places a lock unit into maintenance mode.
	CommandMaintenance CommandType = "maintenance"

	// CommandNormal returns a lock unit to normal operation.
	CommandNormal CommandType = "normal"

	// CommandSync forces a controller to resend its current lock state.
	CommandSync CommandType = "sync"
)

// Command is an outbound intent addressed at one lock unit.
//
// Commands are fire-and-forget; the controller's own subsequent
// heartbeat/state report is the only acknowledgement signal.
type Command struct {
	Type CommandType

	// TargetUnit is the unit identifier, e.g. "F1A". Used for routing and
	// logging; the wire payload carries the numeric lock index instead.
	TargetUnit string

	// DoorIP is the controller's IP address.
	DoorIP string

	// UID is the RFID tag the command acts on behalf of. The controller
	// protocol requires it for device-level authorisation.
	UID string

	// Lock is the 1-based lock index on the target controller.
	Lock int
}

type commandWire struct {
	Cmd    string `json:"cmd"`
	Lock   int    `json:"lock"`
	DoorIP string `json:"doorip"`
	UID    string `json:"uid"`
}

// EncodeCommand serialises an outbound command to its wire payload.
//
// Returns ErrInvalidCommand if a required field is missing; nothing is
// published for invalid commands.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch cmd.Type {
	case CommandOpenLock, CommandMaintenance, CommandNormal, CommandSync:
	default:
		return nil, fmt.Errorf("%w: unknown command type %q", ErrInvalidCommand, cmd.Type)
	}

	switch {
	case cmd.DoorIP == "":
		return nil, fmt.Errorf("%w: %s command missing doorip", ErrInvalidCommand, cmd.Type)
	case cmd.UID == "":
		return nil, fmt.Errorf("%w: %s command missing uid", ErrInvalidCommand, cmd.Type)
	case cmd.Lock < 1 || cmd.Lock > maxUnitsPerDevice:
		return nil, fmt.Errorf("%w: %s command lock index %d out of range", ErrInvalidCommand, cmd.Type, cmd.Lock)
	}

	payload, err := json.Marshal(commandWire{
		Cmd:    string(cmd.Type),
		Lock:   cmd.Lock,
		DoorIP: cmd.DoorIP,
		UID:    cmd.UID,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", cmd.Type, err)
	}
	return payload, nil
}
