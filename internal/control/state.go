// Package control fuses remote drive input with the local vision veto into a
// control state and a motor command, once per cycle.
package control

import "fmt"

// Mode selects which remote input the rover acts on.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeTelemetry Mode = "telemetry"
)

// ParseMode accepts the config spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeManual, ModeTelemetry:
		return Mode(s), nil
	case "":
		return ModeManual, nil
	}
	return "", fmt.Errorf("unknown control mode %q", s)
}

// State is a control state. Manual mode uses Idle, Forward, Backward and
// Turning; telemetry mode uses Searching, Following and Stopped. Both share
// Emergency.
type State int

const (
	StateIdle State = iota
	StateForward
	StateBackward
	StateTurning
	StateSearching
	StateFollowing
	StateStopped
	StateEmergency
)

var stateNames = [...]string{
	StateIdle:      "IDLE",
	StateForward:   "FORWARD",
	StateBackward:  "BACKWARD",
	StateTurning:   "TURNING",
	StateSearching: "SEARCHING",
	StateFollowing: "FOLLOWING",
	StateStopped:   "STOPPED",
	StateEmergency: "EMERGENCY",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Initial is the state a machine starts in for mode m.
func Initial(m Mode) State {
	if m == ModeTelemetry {
		return StateSearching
	}
	return StateIdle
}

// idle is the state used when there is nothing to act on.
func idle(m Mode) State {
	if m == ModeTelemetry {
		return StateStopped
	}
	return StateIdle
}
