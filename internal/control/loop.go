package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"RoverLink/internal/actuator"
	"RoverLink/internal/guard"
	"RoverLink/internal/model"
	"RoverLink/internal/util"
	"RoverLink/internal/vision"
)

// Link reports whether the transport to the base station is up.
type Link interface {
	IsConnected() bool
}

// Loop runs the machine against a bounded input queue. Remote input is
// submitted from the network side; the loop wakes on input or after the
// receive timeout so veto and link changes are seen without new input.
type Loop struct {
	machine *Machine
	act     actuator.Actuator
	link    Link
	veto    *guard.Reader[vision.VetoState]
	state   *guard.Value[State]
	log     *logrus.Entry

	inputs      chan RemoteInput
	emergency   chan struct{}
	recvTimeout time.Duration
	now         func() time.Time

	lastInput  time.Time
	lastVetoed bool

	faults  atomic.Uint64
	dropped atomic.Uint64
	ignored atomic.Uint64

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewLoop wires a loop. veto may be nil when the rover runs without a camera.
func NewLoop(m *Machine, act actuator.Actuator, link Link, veto *guard.Value[vision.VetoState], cfg model.ControlConfig) *Loop {
	read := time.Duration(cfg.ReadLockMs) * time.Millisecond
	write := time.Duration(cfg.WriteLockMs) * time.Millisecond
	l := &Loop{
		machine:     m,
		act:         act,
		link:        link,
		state:       guard.New(m.State(), read, write),
		log:         util.Component("control"),
		inputs:      make(chan RemoteInput, max(cfg.QueueSize, 1)),
		emergency:   make(chan struct{}, 1),
		recvTimeout: time.Duration(cfg.ReceiveTimeoutMs) * time.Millisecond,
		now:         time.Now,
		stop:        make(chan struct{}),
	}
	if veto != nil {
		l.veto = guard.NewReader(veto, vision.VetoState{})
	}
	l.lastInput = l.now()
	return l
}

// Submit queues remote input without blocking. It returns false when the
// queue is full and the input was dropped.
func (l *Loop) Submit(in RemoteInput) bool {
	select {
	case l.inputs <- in:
		return true
	default:
		l.dropped.Add(1)
		l.log.Warn("input queue full, dropping")
		return false
	}
}

// RequestEmergency makes the next cycle brake.
func (l *Loop) RequestEmergency() {
	select {
	case l.emergency <- struct{}{}:
	default:
	}
}

// State is the published control state, for readers on other goroutines.
func (l *Loop) State() *guard.Value[State] { return l.state }

// Faults counts actuator errors.
func (l *Loop) Faults() uint64 { return l.faults.Load() }

// Dropped counts inputs refused by Submit.
func (l *Loop) Dropped() uint64 { return l.dropped.Load() }

// Ignored counts inputs of the variant the mode does not act on.
func (l *Loop) Ignored() uint64 { return l.ignored.Load() }

// Start runs the loop on its own goroutine.
func (l *Loop) Start() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run()
	}()
}

// Stop ends the loop and leaves the motors stopped. It is idempotent.
func (l *Loop) Stop() {
	select {
	case <-l.stop:
	default:
		close(l.stop)
	}
	l.wg.Wait()
}

func (l *Loop) run() {
	l.log.WithField("timeout_ms", l.recvTimeout.Milliseconds()).Info("control loop started")
	defer func() {
		if err := actuator.Apply(l.act, actuator.Stop); err != nil {
			l.log.WithError(err).Warn("stop on exit failed")
		}
		l.log.Info("control loop stopped")
	}()
	for {
		var in RemoteInput
		t := time.NewTimer(l.recvTimeout)
		select {
		case <-l.stop:
			t.Stop()
			return
		case in = <-l.inputs:
		case <-t.C:
		}
		t.Stop()
		l.Cycle(in)
	}
}

// Cycle runs one decision with in as this cycle's input (nil for none),
// applies the command and publishes the state.
func (l *Loop) Cycle(in RemoteInput) Decision {
	now := l.now()
	if in != nil && !l.machine.Accepts(in) {
		l.ignored.Add(1)
		in = nil
	}
	if in != nil {
		l.lastInput = now
	}
	var veto vision.VetoState
	if l.veto != nil {
		veto = l.veto.Read()
	}
	emergency := false
	select {
	case <-l.emergency:
		emergency = true
	default:
	}

	d := l.machine.Step(Step{
		Input:     in,
		Veto:      veto,
		SinceLast: now.Sub(l.lastInput),
		LinkUp:    l.link.IsConnected(),
		Emergency: emergency,
	})

	if d.Vetoed != l.lastVetoed {
		if d.Vetoed {
			l.log.WithField("distance_cm", veto.DistanceCM).Warn("local veto blocked forward motion")
		} else {
			l.log.Info("local veto cleared")
		}
		l.lastVetoed = d.Vetoed
	}
	if err := actuator.Apply(l.act, d.Command); err != nil {
		l.faults.Add(1)
		l.log.WithError(err).WithField("command", d.Command.String()).Warn("actuator fault, retrying next cycle")
	}
	if err := l.state.Store(d.State); err != nil {
		l.log.WithError(err).Warn("state publish skipped")
	}
	return d
}
