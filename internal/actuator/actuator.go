// Package actuator turns a signed left/right speed pair into motor driver
// outputs. Every backend is fully initialised by its constructor; there is no
// partially ready Actuator.
package actuator

import (
	"errors"
	"fmt"
)

// MaxSpeed is the magnitude limit of a speed and the full-scale PWM duty.
const MaxSpeed = 255

// ErrFault wraps any hardware failure. Callers treat it as transient.
var ErrFault = errors.New("actuator: fault")

// Actuator drives a differential pair of motors.
type Actuator interface {
	// SetSpeeds clamps both values to [-MaxSpeed, MaxSpeed] and applies them.
	SetSpeeds(left, right int) error
	// EmergencyStop applies the hardest stop the hardware supports.
	EmergencyStop() error
	// Speeds returns the last applied pair; zero after an emergency stop.
	Speeds() (left, right int)
	Close() error
}

// Command is one control cycle's output.
type Command struct {
	Left  int
	Right int
	// Brake requests EmergencyStop instead of SetSpeeds.
	Brake bool
}

// Stop is the zero command.
var Stop = Command{}

// Clamp limits v to [-MaxSpeed, MaxSpeed].
func Clamp(v int) int {
	if v > MaxSpeed {
		return MaxSpeed
	}
	if v < -MaxSpeed {
		return -MaxSpeed
	}
	return v
}

// Clamped returns c with both sides clamped.
func (c Command) Clamped() Command {
	return Command{Left: Clamp(c.Left), Right: Clamp(c.Right), Brake: c.Brake}
}

// NetForward reports whether c moves the vehicle forward overall.
func (c Command) NetForward() bool {
	return !c.Brake && c.Left+c.Right > 0
}

func (c Command) String() string {
	if c.Brake {
		return "brake"
	}
	return fmt.Sprintf("L:%d R:%d", c.Left, c.Right)
}

// Apply sends c to a.
func Apply(a Actuator, c Command) error {
	if c.Brake {
		return a.EmergencyStop()
	}
	return a.SetSpeeds(c.Left, c.Right)
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrFault, op, err)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
