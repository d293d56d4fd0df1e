package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"RoverLink/internal/actuator"
	"RoverLink/internal/camera"
	"RoverLink/internal/control"
	"RoverLink/internal/guard"
	"RoverLink/internal/model"
	"RoverLink/internal/parser"
	"RoverLink/internal/transport"
	"RoverLink/internal/util"
	"RoverLink/internal/vision"
)

// frameHeadroom is kept free below the payload limit for framing overhead.
const frameHeadroom = 128

// Link is the rover's connection to the base station.
type Link interface {
	IsConnected() bool
	SendBinary(data []byte) error
	SendJSON(v any) error
}

// Rover runs the vehicle tasks: vision, control, status and monitor.
type Rover struct {
	ID  string
	cfg model.VehicleConfig

	Act    actuator.Actuator
	Cam    camera.Source // nil without a camera
	Det    *vision.Detector
	Loop   *control.Loop
	Client *transport.Client

	link Link
	veto *guard.Value[vision.VetoState]
	log  *logrus.Entry
	// one state reader per reading task
	statusState  *guard.Reader[control.State]
	monitorState *guard.Reader[control.State]

	streaming atomic.Bool
	frames    atomic.Uint64
	streamed  atomic.Uint64
	oversized atomic.Uint64
	ignored   atomic.Uint64
	lastRes   atomic.Pointer[vision.Result]

	cancel context.CancelFunc
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewRover builds the actuator, camera, detector, control loop and link
// client described by cfg, which must already have defaults applied.
func NewRover(cfg model.VehicleConfig) (*Rover, error) {
	act, err := actuator.New(cfg.Motor)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s: actuator: %w", cfg.ID, err)
	}
	cam, err := camera.New(cfg.Camera, cfg.FramePeriodMs)
	if err != nil {
		_ = act.Close()
		return nil, fmt.Errorf("vehicle %s: camera: %w", cfg.ID, err)
	}
	r, err := newRover(cfg, act, cam, nil)
	if err != nil {
		_ = act.Close()
		if cam != nil {
			_ = cam.Close()
		}
		return nil, err
	}
	return r, nil
}

// newRover wires a rover around the given hardware. A nil link means a
// transport.Client dialling cfg.ServerURL.
func newRover(cfg model.VehicleConfig, act actuator.Actuator, cam camera.Source, link Link) (*Rover, error) {
	mode, err := control.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	det, err := newDetector(cfg.Color, cfg.Detector, cfg.Homography)
	if err != nil {
		return nil, fmt.Errorf("vehicle %s: detector: %w", cfg.ID, err)
	}
	r := &Rover{
		ID:   cfg.ID,
		cfg:  cfg,
		Act:  act,
		Cam:  cam,
		Det:  det,
		log:  util.Component("rover").WithField("vehicle_id", cfg.ID),
		stop: make(chan struct{}),
	}
	cc := cfg.Control
	r.veto = guard.New(vision.VetoState{},
		time.Duration(cc.ReadLockMs)*time.Millisecond,
		time.Duration(cc.WriteLockMs)*time.Millisecond)

	if link == nil {
		r.Client = transport.NewClient(transport.ClientConfig{
			URL:          cfg.ServerURL,
			VehicleID:    cfg.ID,
			Reconnect:    time.Duration(cfg.Link.ReconnectMs) * time.Millisecond,
			PingInterval: time.Duration(cfg.Link.PingIntervalMs) * time.Millisecond,
			WriteTimeout: time.Duration(cfg.Link.WriteTimeoutMs) * time.Millisecond,
			SendQueue:    cfg.Link.SendQueue,
		}, transport.ClientHandlers{
			OnText:       r.HandleText,
			OnDisconnect: r.onDisconnect,
		})
		link = r.Client
	}
	r.link = link

	var veto *guard.Value[vision.VetoState]
	if cam != nil {
		veto = r.veto
	}
	r.Loop = control.NewLoop(control.NewMachine(mode, cc), act, link, veto, cc)
	r.statusState = guard.NewReader(r.Loop.State(), control.Initial(mode))
	r.monitorState = guard.NewReader(r.Loop.State(), control.Initial(mode))
	return r, nil
}

// Start launches the link and all tasks.
func (r *Rover) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.Loop.Start()
	if r.Client != nil {
		r.Client.Start()
	}
	if r.Cam != nil {
		r.spawn(func() { r.visionTask(ctx) })
	}
	r.spawn(r.statusTask)
	r.spawn(r.monitorTask)
	r.log.WithFields(util.Fields{"mode": r.cfg.Mode, "server": r.cfg.ServerURL}).Info("rover started")
	return nil
}

func (r *Rover) spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

// Stop ends every task, leaves the motors stopped and releases the hardware.
func (r *Rover) Stop() {
	r.once.Do(func() {
		close(r.stop)
		if r.cancel != nil {
			r.cancel()
		}
		r.wg.Wait()
		r.Loop.Stop()
		if r.Client != nil {
			r.Client.Stop()
		}
		if r.Cam != nil {
			if err := r.Cam.Close(); err != nil {
				r.log.WithError(err).Warn("camera close failed")
			}
		}
		if err := r.Act.Close(); err != nil {
			r.log.WithError(err).Warn("actuator close failed")
		}
		r.log.Info("rover stopped")
	})
}

// Streaming reports whether video is being sent.
func (r *Rover) Streaming() bool { return r.streaming.Load() }

// Veto returns the shared veto cell written by the vision task.
func (r *Rover) Veto() *guard.Value[vision.VetoState] { return r.veto }

func (r *Rover) onDisconnect() {
	if r.streaming.Swap(false) {
		r.log.Info("link lost, streaming disabled")
	}
}

// HandleText dispatches one message from the base station.
func (r *Rover) HandleText(data []byte) {
	msg, err := parser.Decode(data)
	if err != nil {
		r.ignored.Add(1)
		r.log.WithError(err).Debug("dropping message")
		return
	}
	now := time.Now()
	switch msg.Kind {
	case parser.KindControl:
		c := *msg.Control
		if c.VehicleID != "" && c.VehicleID != r.ID {
			r.ignored.Add(1)
			return
		}
		in, ok := control.FromControl(c, now)
		if !ok {
			r.log.WithField("command", c.Command).Warn("unknown command, treating as stop")
		}
		r.Loop.Submit(in)
	case parser.KindTelemetry:
		r.Loop.Submit(control.TelemetryInput{Target: *msg.Telemetry, At: now})
	case parser.KindStreamStatus:
		on := msg.StreamStatus.Enable
		if r.streaming.Swap(on) != on {
			r.log.WithFields(util.Fields{"enable": on, "viewers": msg.StreamStatus.ViewerCount}).Info("stream status changed")
		}
	default:
		r.ignored.Add(1)
		r.log.WithField("type", msg.Type).Debug("message ignored")
	}
}

func (r *Rover) visionTask(ctx context.Context) {
	for {
		f, err := r.Cam.Acquire(ctx)
		switch {
		case err == nil:
			r.processFrame(f)
		case errors.Is(err, camera.ErrNoFrame):
			continue
		case ctx.Err() != nil, errors.Is(err, camera.ErrClosed):
			return
		default:
			r.log.WithError(err).Warn("camera acquire failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// processFrame detects, publishes the veto and optionally streams f. The
// frame is released exactly once on every path.
func (r *Rover) processFrame(f *vision.Frame) {
	defer r.Cam.Release(f)
	n := r.frames.Add(1)

	res := r.Det.Detect(f)
	r.lastRes.Store(&res)
	if err := r.veto.Store(r.Det.Veto(res)); err != nil {
		r.log.WithError(err).Debug("veto publish skipped")
	}

	s := r.cfg.Stream
	if !r.streaming.Load() || !r.link.IsConnected() || n%uint64(max(s.FrameInterval, 1)) != 0 {
		return
	}
	data, q, err := camera.EncodeWithin(f, s.MaxPayload-frameHeadroom, s.QualityStart, s.QualityFloor, s.QualityStep)
	if err != nil {
		if errors.Is(err, camera.ErrTooLarge) {
			r.oversized.Add(1)
		}
		r.log.WithError(err).Debug("frame skipped")
		return
	}
	if err := r.link.SendBinary(data); err != nil {
		r.log.WithError(err).Debug("frame not sent")
		return
	}
	r.streamed.Add(1)
	if q != s.QualityStart {
		r.log.WithFields(util.Fields{"quality": q, "bytes": len(data)}).Debug("frame quality reduced")
	}
}

// Status builds the report sent every status interval. It is called from
// the status task only.
func (r *Rover) Status() model.VehicleStatus {
	return control.BuildStatus(r.ID, r.Act, r.statusState.Read(), r.cfg.BatteryMV)
}

func (r *Rover) statusTask() {
	t := time.NewTicker(time.Duration(r.cfg.Control.StatusIntervalMs) * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			if !r.link.IsConnected() {
				continue
			}
			if err := r.link.SendJSON(r.Status()); err != nil {
				r.log.WithError(err).Debug("status not sent")
			}
		}
	}
}

func (r *Rover) monitorTask() {
	t := time.NewTicker(time.Duration(r.cfg.Control.MonitorIntervalMs) * time.Millisecond)
	defer t.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-t.C:
			r.log.WithFields(r.monitorFields()).Info("rover monitor")
		}
	}
}

func (r *Rover) monitorFields() util.Fields {
	left, right := r.Act.Speeds()
	st := r.Det.Stats()
	f := util.Fields{
		"link":        r.link.IsConnected(),
		"state":       r.monitorState.Read().String(),
		"left":        left,
		"right":       right,
		"streaming":   r.streaming.Load(),
		"frames":      r.frames.Load(),
		"streamed":    r.streamed.Load(),
		"detections":  st.Detections,
		"avg_proc":    st.AvgProcessTime.String(),
		"faults":      r.Loop.Faults(),
		"dropped_in":  r.Loop.Dropped(),
		"ignored_in":  r.Loop.Ignored(),
		"ignored_msg": r.ignored.Load(),
		"veto_lock":   r.veto.Timeouts(),
	}
	if r.monitorState.Stale() {
		f["state_stale"] = true
	}
	if res := r.lastRes.Load(); res != nil && res.Detected {
		f["distance_cm"] = res.DistanceCM
	}
	return f
}
