package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"RoverLink/internal/app"
	"RoverLink/internal/model"
	"RoverLink/internal/router"
	"RoverLink/internal/telemetry"
	"RoverLink/internal/transport"
	"RoverLink/internal/util"
)

// ErrStopped is returned by calls into a base station that is not running.
var ErrStopped = errors.New("base station stopped")

const mirrorQueue = 64

// BaseStation owns the WebSocket server, the router and the web layer. The
// router runs on a single goroutine: transport events and injected calls are
// both serialised through it.
type BaseStation struct {
	cfg     model.BaseStationConfig
	Server  *transport.Server
	Router  *router.Router
	App     *app.App
	MQTT    *telemetry.MQTTBridge
	Tracker *Tracker

	log   *logrus.Entry
	calls chan func()
	// MQTT publishes leave the router goroutine through this queue
	mirror chan func() error

	mu       sync.RWMutex
	snap     app.Snapshot
	started  time.Time
	running  bool
	stop     chan struct{}
	wg       sync.WaitGroup
	serveErr chan error
}

// NewBaseStation builds every base-station component from cfg, which must
// already have defaults applied.
func NewBaseStation(cfg model.BaseStationConfig) (*BaseStation, error) {
	b := &BaseStation{
		cfg:      cfg,
		log:      util.Component("base"),
		calls:    make(chan func()),
		mirror:   make(chan func() error, mirrorQueue),
		stop:     make(chan struct{}),
		serveErr: make(chan error, 1),
	}
	b.Server = transport.NewServer(transport.ServerConfig{
		SendQueue:       cfg.SendQueue,
		Policy:          transport.DropOldest,
		WriteTimeout:    time.Duration(cfg.WriteTimeoutMs) * time.Millisecond,
		PingInterval:    time.Duration(cfg.PingIntervalMs) * time.Millisecond,
		MaxMessageBytes: cfg.MaxMessageBytes,
		FrameRate:       cfg.FrameRate,
		FrameBurst:      cfg.FrameBurst,
	})
	if cfg.MQTT != nil {
		b.MQTT = telemetry.NewMQTTBridge(*cfg.MQTT)
		b.MQTT.OnControl = b.controlFromMQTT
	}
	b.Router = router.New(b.Server, cfg.MaxPeers, b.hooks())

	a, err := app.NewApp(b, b.Server, app.Options{
		Title:            "RoverLink",
		ControlRate:      cfg.ControlRate,
		ControlBurst:     max(int(cfg.ControlRate), 1),
		DisableDashboard: cfg.DisableDashboard,
	})
	if err != nil {
		return nil, err
	}
	b.App = a

	if cfg.Tracker != nil {
		t, err := NewTracker(*cfg.Tracker, b)
		if err != nil {
			return nil, err
		}
		b.Tracker = t
	}
	return b, nil
}

func (b *BaseStation) hooks() router.Hooks {
	if b.MQTT == nil {
		return router.Hooks{}
	}
	return router.Hooks{
		OnStatus: func(s model.VehicleStatus) {
			b.mirrorAsync(func() error { return b.MQTT.PublishStatus(s) })
		},
		OnTelemetry: func(t model.Telemetry) {
			b.mirrorAsync(func() error { return b.MQTT.PublishTelemetry(t) })
		},
		OnVehicles: func(ids []string) {
			b.mirrorAsync(func() error { return b.MQTT.PublishVehicles(ids) })
		},
	}
}

func (b *BaseStation) mirrorAsync(fn func() error) {
	select {
	case b.mirror <- fn:
	default:
		b.log.Debug("mqtt mirror queue full, dropping")
	}
}

// Start runs the router and tracker and serves HTTP on the configured
// address in the background.
func (b *BaseStation) Start() error {
	if err := b.startRouting(); err != nil {
		return err
	}
	go func() {
		if err := b.App.Start(b.cfg.Listen); err != nil {
			b.log.WithError(err).Error("web server failed")
			b.serveErr <- err
		}
	}()
	return nil
}

// Err reports a web server failure after Start.
func (b *BaseStation) Err() <-chan error { return b.serveErr }

func (b *BaseStation) startRouting() error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = true
	b.started = time.Now()
	b.mu.Unlock()

	if b.MQTT != nil {
		if err := b.MQTT.Connect(); err != nil {
			// paho keeps retrying in the background
			b.log.WithError(err).Warn("mqtt bridge not connected yet")
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.runMirror()
		}()
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.route()
	}()

	if b.Tracker != nil {
		b.Tracker.Start()
	}
	b.log.WithFields(util.Fields{"listen": b.cfg.Listen, "max_peers": b.cfg.MaxPeers}).Info("base station started")
	return nil
}

func (b *BaseStation) route() {
	events := b.Server.Events()
	for {
		select {
		case <-b.stop:
			return
		case ev := <-events:
			b.handleEvent(ev)
		case fn := <-b.calls:
			fn()
		}
		b.refresh()
	}
}

func (b *BaseStation) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		if err := b.Router.Connect(ev.ConnID); err != nil {
			b.Server.Close(ev.ConnID)
		}
	case transport.EventText:
		b.Router.HandleText(ev.ConnID, ev.Data)
	case transport.EventBinary:
		b.Router.HandleBinary(ev.ConnID, ev.Data)
	case transport.EventDisconnect:
		b.Router.Disconnect(ev.ConnID)
	}
}

// refresh copies router state for readers on other goroutines.
func (b *BaseStation) refresh() {
	st := b.Router.Stats()
	s := app.Snapshot{
		Status:     "ok",
		Peers:      len(b.Router.Peers()),
		Dashboards: b.Router.Dashboards(),
		Vehicles:   b.Router.Vehicles(),
		Forwarded:  st.Forwarded,
		Dropped:    st.Dropped,
		Frames:     st.FramesRelayed,
	}
	b.mu.Lock()
	s.UptimeSec = int64(time.Since(b.started).Seconds())
	b.snap = s
	b.mu.Unlock()
}

func (b *BaseStation) runMirror() {
	for {
		select {
		case <-b.stop:
			return
		case fn := <-b.mirror:
			if err := fn(); err != nil {
				b.log.WithError(err).Debug("mqtt publish failed")
			}
		}
	}
}

// call runs fn on the router goroutine and waits for it.
func (b *BaseStation) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case b.calls <- wrapped:
	case <-b.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-b.stop:
		return ErrStopped
	}
}

// Vehicles implements app.Backend.
func (b *BaseStation) Vehicles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.snap.Vehicles...)
}

// Dashboards is the viewer count as of the last routed event.
func (b *BaseStation) Dashboards() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snap.Dashboards
}

// Snapshot implements app.Backend.
func (b *BaseStation) Snapshot() app.Snapshot {
	b.mu.RLock()
	s := b.snap
	b.mu.RUnlock()
	s.Vehicles = append([]string(nil), s.Vehicles...)
	s.Throttled = b.Server.Throttled()
	if s.Status == "" {
		s.Status = "starting"
	}
	return s
}

// InjectControl implements app.Backend.
func (b *BaseStation) InjectControl(ctx context.Context, c model.Control) (string, error) {
	var (
		id  string
		err error
	)
	if cerr := b.call(ctx, func() { id, err = b.Router.InjectControl(c) }); cerr != nil {
		return "", cerr
	}
	return id, err
}

// PublishTelemetry broadcasts a station-side target report.
func (b *BaseStation) PublishTelemetry(t model.Telemetry) error {
	return b.call(context.Background(), func() { b.Router.PublishTelemetry(t, "") })
}

// PublishFrame relays a station camera frame to dashboards.
func (b *BaseStation) PublishFrame(source string, jpeg []byte) error {
	return b.call(context.Background(), func() { b.Router.PublishFrame(source, jpeg) })
}

func (b *BaseStation) controlFromMQTT(c model.Control) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := b.InjectControl(ctx, c)
	if err != nil {
		b.log.WithError(err).WithField("command", c.Command).Warn("mqtt command dropped")
		return
	}
	b.log.WithFields(util.Fields{"vehicle_id": id, "command": c.Command}).Debug("mqtt command forwarded")
}

// Stop shuts down the web server, tracker, router and transport. It is
// idempotent.
func (b *BaseStation) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	b.App.Stop()
	if b.Tracker != nil {
		b.Tracker.Stop()
	}
	select {
	case <-b.stop:
	default:
		close(b.stop)
	}
	b.Server.Shutdown()
	b.wg.Wait()
	if b.MQTT != nil {
		b.MQTT.Disconnect()
	}
	b.log.Info("base station stopped")
}
