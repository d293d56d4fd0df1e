package control

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"RoverLink/internal/actuator"
	"RoverLink/internal/model"
	"RoverLink/internal/util"
	"RoverLink/internal/vision"
)

// Step is everything one cycle decides on. Each field is a snapshot taken
// once at the start of the cycle.
type Step struct {
	// Input is the newest remote input, nil when none arrived this cycle.
	Input RemoteInput
	Veto  vision.VetoState
	// SinceLast is the time since the last remote input of any kind.
	SinceLast time.Duration
	LinkUp    bool
	// Emergency is an explicit emergency request.
	Emergency bool
}

// Decision is the outcome of one cycle.
type Decision struct {
	State   State
	Command actuator.Command
	// Vetoed is set when forward motion was masked by the local veto.
	Vetoed bool
}

// Machine is the fusion state machine. It is owned by one goroutine.
type Machine struct {
	mode Mode
	cfg  model.ControlConfig
	log  *logrus.Entry

	state State
	last  RemoteInput
}

// NewMachine returns a machine in the initial state for mode.
func NewMachine(mode Mode, cfg model.ControlConfig) *Machine {
	return &Machine{
		mode:  mode,
		cfg:   cfg,
		log:   util.Component("control").WithField("mode", string(mode)),
		state: Initial(mode),
	}
}

// Mode returns the deployment mode.
func (m *Machine) Mode() Mode { return m.mode }

// State returns the state after the latest Step.
func (m *Machine) State() State { return m.state }

// Step computes the next state and command. It is total: every input maps to
// exactly one decision.
func (m *Machine) Step(s Step) Decision {
	if s.Input != nil && m.Accepts(s.Input) {
		m.last = s.Input
	}

	var d Decision
	switch {
	case s.Emergency || !s.LinkUp:
		d = Decision{State: StateEmergency, Command: actuator.Command{Brake: true}}
	case m.last != nil && s.SinceLast > m.inputTimeout():
		// stale input degrades to a stop, not to emergency
		d = Decision{State: idle(m.mode), Command: actuator.Stop}
	default:
		d = m.decide()
	}

	if s.Veto.Active && d.Command.NetForward() {
		d = Decision{State: idle(m.mode), Command: actuator.Stop, Vetoed: true}
	}
	d.Command = d.Command.Clamped()

	if d.State != m.state {
		m.log.WithFields(util.Fields{
			"from":     m.state.String(),
			"to":       d.State.String(),
			"event_id": ulid.Make().String(),
		}).Info("state transition")
		m.state = d.State
	}
	return d
}

// Accepts reports whether in is the input variant this mode acts on. Manual
// commands are ignored in telemetry mode and target reports in manual mode.
func (m *Machine) Accepts(in RemoteInput) bool {
	switch in.(type) {
	case ManualInput:
		return m.mode == ModeManual
	case TelemetryInput:
		return m.mode == ModeTelemetry
	}
	return false
}

func (m *Machine) inputTimeout() time.Duration {
	return time.Duration(m.cfg.InputTimeoutMs) * time.Millisecond
}

func (m *Machine) decide() Decision {
	switch in := m.last.(type) {
	case ManualInput:
		if m.mode == ModeManual {
			return m.manual(in.Command)
		}
	case TelemetryInput:
		if m.mode == ModeTelemetry {
			return m.follow(in.Target)
		}
	}
	if m.mode == ModeTelemetry {
		return m.search()
	}
	return Decision{State: StateIdle, Command: actuator.Stop}
}

func (m *Machine) manual(cmd model.Command) Decision {
	fwd, back, turn := m.cfg.ForwardSpeed, m.cfg.BackwardSpeed, m.cfg.TurnSpeed
	switch cmd {
	case model.CmdForward:
		return Decision{State: StateForward, Command: actuator.Command{Left: fwd, Right: fwd}}
	case model.CmdBackward:
		return Decision{State: StateBackward, Command: actuator.Command{Left: -back, Right: -back}}
	case model.CmdLeft:
		return Decision{State: StateTurning, Command: actuator.Command{Left: -turn, Right: turn}}
	case model.CmdRight:
		return Decision{State: StateTurning, Command: actuator.Command{Left: turn, Right: -turn}}
	default:
		return Decision{State: StateIdle, Command: actuator.Stop}
	}
}

func (m *Machine) follow(t model.Telemetry) Decision {
	switch {
	case !t.Detected || t.DistanceCM > m.cfg.FollowMaxCM:
		return m.search()
	case t.DistanceCM < m.cfg.StopThresholdCM:
		return Decision{State: StateStopped, Command: actuator.Stop}
	}
	correction := int(t.AngleDeg * m.cfg.AngleGain)
	base := m.cfg.BaseSpeed
	return Decision{
		State:   StateFollowing,
		Command: actuator.Command{Left: base - correction, Right: base + correction},
	}
}

func (m *Machine) search() Decision {
	sp := m.cfg.SearchSpeed
	return Decision{State: StateSearching, Command: actuator.Command{Left: sp, Right: -sp}}
}
