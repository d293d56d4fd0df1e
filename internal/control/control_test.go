package control

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/actuator"
	"RoverLink/internal/guard"
	"RoverLink/internal/model"
	"RoverLink/internal/vision"
)

func testConfig() model.ControlConfig {
	return model.ControlConfig{
		QueueSize:        10,
		ReceiveTimeoutMs: 10,
		InputTimeoutMs:   2000,
		ReadLockMs:       10,
		WriteLockMs:      100,
		ForwardSpeed:     180,
		BackwardSpeed:    150,
		TurnSpeed:        140,
		StopThresholdCM:  30,
		FollowMaxCM:      100,
		BaseSpeed:        150,
		SearchSpeed:      80,
		AngleGain:        2.0,
	}
}

func manual(cmd model.Command) RemoteInput {
	return ManualInput{Command: cmd, At: time.Now()}
}

func target(distance, angle float64, detected bool) RemoteInput {
	return TelemetryInput{Target: model.Telemetry{DistanceCM: distance, AngleDeg: angle, Detected: detected}, At: time.Now()}
}

var vetoed = vision.VetoState{Active: true, DistanceCM: 12}

func TestManualCommands(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	assert.Equal(t, StateIdle, m.State())

	cases := []struct {
		cmd   model.Command
		state State
		want  actuator.Command
	}{
		{model.CmdForward, StateForward, actuator.Command{Left: 180, Right: 180}},
		{model.CmdBackward, StateBackward, actuator.Command{Left: -150, Right: -150}},
		{model.CmdLeft, StateTurning, actuator.Command{Left: -140, Right: 140}},
		{model.CmdRight, StateTurning, actuator.Command{Left: 140, Right: -140}},
		{model.CmdStop, StateIdle, actuator.Stop},
	}
	for _, c := range cases {
		d := m.Step(Step{Input: manual(c.cmd), LinkUp: true})
		assert.Equal(t, c.state, d.State, c.cmd.String())
		assert.Equal(t, c.want, d.Command, c.cmd.String())
		assert.False(t, d.Vetoed)
	}
}

func TestForwardWithAndWithoutVeto(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	d := m.Step(Step{Input: manual(model.CmdForward), LinkUp: true})
	assert.Equal(t, StateForward, d.State)
	assert.Greater(t, d.Command.Left, 0)
	assert.Greater(t, d.Command.Right, 0)

	d = m.Step(Step{Input: manual(model.CmdForward), Veto: vetoed, LinkUp: true})
	assert.Equal(t, StateIdle, d.State, "a vetoed forward reports the stop it actually does")
	assert.Equal(t, actuator.Stop, d.Command)
	assert.True(t, d.Vetoed)

	d = m.Step(Step{LinkUp: true})
	assert.Equal(t, StateForward, d.State, "forward resumes once the veto clears")
}

func TestVetoedFollowingReportsStopped(t *testing.T) {
	m := NewMachine(ModeTelemetry, testConfig())
	d := m.Step(Step{Input: target(50, 0, true), Veto: vetoed, LinkUp: true})
	assert.Equal(t, StateStopped, d.State)
	assert.Equal(t, actuator.Stop, d.Command)
	assert.True(t, d.Vetoed)

	// search spins in place and is not net-forward
	d = m.Step(Step{Input: target(0, 0, false), Veto: vetoed, LinkUp: true})
	assert.Equal(t, StateSearching, d.State)
	assert.False(t, d.Vetoed)
}

func TestVetoNeverBlocksReverseOrTurns(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	for _, cmd := range []model.Command{model.CmdBackward, model.CmdLeft, model.CmdRight} {
		d := m.Step(Step{Input: manual(cmd), Veto: vetoed, LinkUp: true})
		assert.False(t, d.Vetoed, cmd.String())
		assert.NotEqual(t, actuator.Stop, d.Command, cmd.String())
	}
}

func TestVetoNeverEmitsNetForward(t *testing.T) {
	inputs := []RemoteInput{
		nil,
		manual(model.CmdForward), manual(model.CmdBackward), manual(model.CmdLeft), manual(model.CmdRight), manual(model.CmdStop),
		target(50, 0, true), target(50, 40, true), target(50, -60, true), target(10, 0, true), target(500, 0, true), target(0, 0, false),
	}
	for _, mode := range []Mode{ModeManual, ModeTelemetry} {
		m := NewMachine(mode, testConfig())
		for _, in := range inputs {
			for _, link := range []bool{true, false} {
				for _, since := range []time.Duration{0, 3 * time.Second} {
					d := m.Step(Step{Input: in, Veto: vetoed, LinkUp: link, SinceLast: since})
					require.False(t, d.Command.NetForward(), "mode %s input %#v", mode, in)
				}
			}
		}
	}
}

func TestLinkDownIsEmergencyBrake(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	m.Step(Step{Input: manual(model.CmdForward), LinkUp: true})

	d := m.Step(Step{LinkUp: false})
	assert.Equal(t, StateEmergency, d.State)
	assert.True(t, d.Command.Brake)

	d = m.Step(Step{LinkUp: true})
	assert.Equal(t, StateForward, d.State, "emergency is re-evaluated every cycle")
}

func TestExplicitEmergency(t *testing.T) {
	m := NewMachine(ModeTelemetry, testConfig())
	d := m.Step(Step{Input: target(50, 0, true), LinkUp: true, Emergency: true})
	assert.Equal(t, StateEmergency, d.State)
	assert.Equal(t, actuator.Command{Brake: true}, d.Command)
}

func TestInputTimeoutStopsWithoutEmergency(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	m.Step(Step{Input: manual(model.CmdForward), LinkUp: true})

	d := m.Step(Step{LinkUp: true, SinceLast: 1500 * time.Millisecond})
	assert.Equal(t, StateForward, d.State)

	d = m.Step(Step{LinkUp: true, SinceLast: 2500 * time.Millisecond})
	assert.Equal(t, StateIdle, d.State)
	assert.Equal(t, actuator.Stop, d.Command)
	assert.False(t, d.Command.Brake)

	d = m.Step(Step{LinkUp: false, SinceLast: 2500 * time.Millisecond})
	assert.Equal(t, StateEmergency, d.State)
}

func TestTelemetryFollowing(t *testing.T) {
	m := NewMachine(ModeTelemetry, testConfig())
	assert.Equal(t, StateSearching, m.State())

	d := m.Step(Step{LinkUp: true})
	assert.Equal(t, StateSearching, d.State)
	assert.Equal(t, actuator.Command{Left: 80, Right: -80}, d.Command)

	d = m.Step(Step{Input: target(60, 10, true), LinkUp: true})
	assert.Equal(t, StateFollowing, d.State)
	assert.Equal(t, actuator.Command{Left: 130, Right: 170}, d.Command)

	d = m.Step(Step{Input: target(60, 80, true), LinkUp: true})
	assert.Equal(t, actuator.Command{Left: -10, Right: 255}, d.Command, "clamped")

	d = m.Step(Step{Input: target(29.9, 0, true), LinkUp: true})
	assert.Equal(t, StateStopped, d.State)
	assert.Equal(t, actuator.Stop, d.Command)

	d = m.Step(Step{Input: target(150, 0, true), LinkUp: true})
	assert.Equal(t, StateSearching, d.State)

	d = m.Step(Step{Input: target(0, 0, false), LinkUp: true})
	assert.Equal(t, StateSearching, d.State)

	d = m.Step(Step{LinkUp: true, SinceLast: 3 * time.Second})
	assert.Equal(t, StateStopped, d.State)
}

func TestWrongVariantIsIgnored(t *testing.T) {
	m := NewMachine(ModeManual, testConfig())
	d := m.Step(Step{Input: target(50, 0, true), LinkUp: true})
	assert.Equal(t, StateIdle, d.State)
	assert.Equal(t, actuator.Stop, d.Command)

	m.Step(Step{Input: manual(model.CmdLeft), LinkUp: true})
	d = m.Step(Step{Input: target(50, 0, true), LinkUp: true})
	assert.Equal(t, StateTurning, d.State, "a target report does not replace the last command")
}

func TestStrayCommandKeepsTrackedTarget(t *testing.T) {
	m := NewMachine(ModeTelemetry, testConfig())
	d := m.Step(Step{Input: target(60, 10, true), LinkUp: true})
	require.Equal(t, StateFollowing, d.State)

	d = m.Step(Step{Input: manual(model.CmdForward), LinkUp: true})
	assert.Equal(t, StateFollowing, d.State)
	assert.Equal(t, actuator.Command{Left: 130, Right: 170}, d.Command)
	assert.False(t, m.Accepts(manual(model.CmdStop)))
	assert.True(t, m.Accepts(target(1, 0, true)))
}

func TestLoopIgnoresOtherVariant(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{}
	link.up.Store(true)
	now := time.Now()
	l := NewLoop(NewMachine(ModeTelemetry, cfg), newActuator(t), link, nil, cfg)
	l.now = func() time.Time { return now }

	require.Equal(t, StateFollowing, l.Cycle(target(60, 0, true)).State)

	now = now.Add(1500 * time.Millisecond)
	l.Cycle(manual(model.CmdForward))
	assert.Equal(t, uint64(1), l.Ignored())

	// the stray command did not refresh the input clock
	now = now.Add(time.Second)
	assert.Equal(t, StateStopped, l.Cycle(nil).State)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("telemetry")
	require.NoError(t, err)
	assert.Equal(t, ModeTelemetry, m)
	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeManual, m)
	_, err = ParseMode("autopilot")
	assert.Error(t, err)
}

func TestFromControl(t *testing.T) {
	in, ok := FromControl(model.Control{Command: "left"}, time.Now())
	assert.True(t, ok)
	assert.Equal(t, model.CmdLeft, in.Command)

	in, ok = FromControl(model.Control{Command: "jump"}, time.Now())
	assert.False(t, ok)
	assert.Equal(t, model.CmdStop, in.Command)
}

type fakeLink struct{ up atomic.Bool }

func (f *fakeLink) IsConnected() bool { return f.up.Load() }

type flakyActuator struct {
	actuator.Actuator
	fail atomic.Bool
}

func (f *flakyActuator) SetSpeeds(l, r int) error {
	if f.fail.Load() {
		return actuator.ErrFault
	}
	return f.Actuator.SetSpeeds(l, r)
}

func newActuator(t *testing.T) actuator.Actuator {
	t.Helper()
	a, err := actuator.New(model.MotorConfig{Backend: "memory"})
	require.NoError(t, err)
	return a
}

func TestLoopCycleAppliesAndPublishes(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{}
	link.up.Store(true)
	veto := guard.New(vision.VetoState{}, time.Millisecond, time.Millisecond)
	act := newActuator(t)
	l := NewLoop(NewMachine(ModeManual, cfg), act, link, veto, cfg)

	d := l.Cycle(manual(model.CmdForward))
	assert.Equal(t, StateForward, d.State)
	left, right := act.Speeds()
	assert.Equal(t, 180, left)
	assert.Equal(t, 180, right)
	st, err := l.State().Load()
	require.NoError(t, err)
	assert.Equal(t, StateForward, st)

	require.NoError(t, veto.Store(vetoed))
	d = l.Cycle(nil)
	assert.True(t, d.Vetoed)
	assert.Equal(t, StateIdle, d.State)
	left, right = act.Speeds()
	assert.Zero(t, left)
	assert.Zero(t, right)

	l.RequestEmergency()
	assert.Equal(t, StateEmergency, l.Cycle(nil).State)
	assert.Equal(t, StateIdle, l.Cycle(nil).State, "an explicit emergency lasts one cycle")

	status := BuildStatus("ESP32CAM_01", act, st, 3700)
	assert.Equal(t, model.VehicleStatus{VehicleID: "ESP32CAM_01", BatteryMV: 3700, Status: "FORWARD"}, status)
}

func TestLoopTimeoutUsesClock(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{}
	link.up.Store(true)
	l := NewLoop(NewMachine(ModeManual, cfg), newActuator(t), link, nil, cfg)
	clock := time.Now()
	l.now = func() time.Time { return clock }
	l.lastInput = clock

	assert.Equal(t, StateForward, l.Cycle(manual(model.CmdForward)).State)
	clock = clock.Add(2100 * time.Millisecond)
	assert.Equal(t, StateIdle, l.Cycle(nil).State)
	link.up.Store(false)
	assert.Equal(t, StateEmergency, l.Cycle(nil).State)
}

func TestLoopRetriesActuatorFaults(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{}
	link.up.Store(true)
	act := &flakyActuator{Actuator: newActuator(t)}
	act.fail.Store(true)
	l := NewLoop(NewMachine(ModeManual, cfg), act, link, nil, cfg)

	d := l.Cycle(manual(model.CmdForward))
	assert.Equal(t, StateForward, d.State)
	assert.Equal(t, uint64(1), l.Faults())

	act.fail.Store(false)
	l.Cycle(nil)
	left, _ := act.Speeds()
	assert.Equal(t, 180, left)
}

func TestLoopRunsAndStops(t *testing.T) {
	cfg := testConfig()
	link := &fakeLink{}
	link.up.Store(true)
	act := newActuator(t)
	l := NewLoop(NewMachine(ModeManual, cfg), act, link, nil, cfg)
	l.Start()

	require.True(t, l.Submit(manual(model.CmdRight)))
	require.Eventually(t, func() bool {
		s, err := l.State().Load()
		return err == nil && s == StateTurning
	}, time.Second, 5*time.Millisecond)

	link.up.Store(false)
	require.Eventually(t, func() bool {
		s, err := l.State().Load()
		return err == nil && s == StateEmergency
	}, time.Second, 5*time.Millisecond)

	l.Stop()
	l.Stop()
	left, right := act.Speeds()
	assert.Zero(t, left)
	assert.Zero(t, right)
}

func TestSubmitDropsWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.QueueSize = 2
	l := NewLoop(NewMachine(ModeManual, cfg), newActuator(t), &fakeLink{}, nil, cfg)
	assert.True(t, l.Submit(manual(model.CmdStop)))
	assert.True(t, l.Submit(manual(model.CmdStop)))
	assert.False(t, l.Submit(manual(model.CmdStop)))
	assert.Equal(t, uint64(1), l.Dropped())
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "EMERGENCY", StateEmergency.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
