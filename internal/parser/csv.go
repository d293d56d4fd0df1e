package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Motor controller line protocol (host -> MCU):
//
//	M,<left>,<right>   set signed speeds in [-255,255]
//	E                  hard brake
//
// and replies (MCU -> host):
//
//	OK
//	ERR,<reason>

// ErrMotorFault is returned by DecodeAck for an ERR reply.
var ErrMotorFault = errors.New("parser: motor controller fault")

// MotorFrame is one host-to-controller instruction.
type MotorFrame struct {
	Brake bool
	Left  int
	Right int
}

// EncodeMotor renders a MotorFrame as a protocol line without terminator.
func EncodeMotor(f MotorFrame) string {
	if f.Brake {
		return "E"
	}
	return fmt.Sprintf("M,%d,%d", f.Left, f.Right)
}

// DecodeMotor parses a protocol line back into a MotorFrame.
func DecodeMotor(line string) (MotorFrame, error) {
	line = strings.TrimSpace(line)
	if line == "E" {
		return MotorFrame{Brake: true}, nil
	}
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return MotorFrame{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	if fields[0] != "M" {
		return MotorFrame{}, fmt.Errorf("unknown motor opcode %q", fields[0])
	}
	left, err := strconv.Atoi(fields[1])
	if err != nil {
		return MotorFrame{}, errors.New("invalid left speed")
	}
	right, err := strconv.Atoi(fields[2])
	if err != nil {
		return MotorFrame{}, errors.New("invalid right speed")
	}
	return MotorFrame{Left: left, Right: right}, nil
}

// DecodeAck interprets a controller reply.
func DecodeAck(line string) error {
	line = strings.TrimSpace(line)
	switch {
	case line == "OK":
		return nil
	case strings.HasPrefix(line, "ERR"):
		reason := strings.TrimPrefix(strings.TrimPrefix(line, "ERR"), ",")
		return fmt.Errorf("%w: %s", ErrMotorFault, reason)
	default:
		return fmt.Errorf("unexpected reply %q", line)
	}
}
