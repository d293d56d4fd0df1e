package control

import (
	"time"

	"RoverLink/internal/model"
)

// RemoteInput is either a ManualInput or a TelemetryInput.
type RemoteInput interface {
	ReceivedAt() time.Time
	remoteInput()
}

// ManualInput is a drive command from an operator.
type ManualInput struct {
	Command model.Command
	At      time.Time
}

func (m ManualInput) ReceivedAt() time.Time { return m.At }
func (ManualInput) remoteInput() {}

// TelemetryInput is a tracked-target report from the base station.
type TelemetryInput struct {
	Target model.Telemetry
	At     time.Time
}

func (t TelemetryInput) ReceivedAt() time.Time { return t.At }
func (TelemetryInput) remoteInput() {}

// FromControl converts a control message. Unknown command strings become a
// stop; ok is false for them so the caller can warn.
func FromControl(c model.Control, at time.Time) (ManualInput, bool) {
	cmd, ok := model.ParseCommand(c.Command)
	return ManualInput{Command: cmd, At: at}, ok
}
