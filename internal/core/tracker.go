package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"RoverLink/internal/camera"
	"RoverLink/internal/model"
	"RoverLink/internal/util"
	"RoverLink/internal/vision"
)

// stationSink is where the tracker delivers its output.
type stationSink interface {
	PublishTelemetry(t model.Telemetry) error
	PublishFrame(source string, jpeg []byte) error
	Dashboards() int
}

// Tracker runs the detector on the base-station camera and turns each frame
// into a telemetry report. Frames are also relayed to dashboards while
// anybody is watching.
type Tracker struct {
	cfg  model.TrackerConfig
	cam  camera.Source
	det  *vision.Detector
	sink stationSink
	log  *logrus.Entry
	now  func() time.Time

	frames  atomic.Uint64
	streams atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewTracker builds the camera and detector described by cfg.
func NewTracker(cfg model.TrackerConfig, sink stationSink) (*Tracker, error) {
	cam, err := camera.New(cfg.Camera, cfg.FramePeriodMs)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, errors.New("tracker: camera kind none")
	}
	det, err := newDetector(cfg.Color, cfg.Detector, &cfg.Homography)
	if err != nil {
		return nil, err
	}
	return newTracker(cfg, cam, det, sink), nil
}

func newTracker(cfg model.TrackerConfig, cam camera.Source, det *vision.Detector, sink stationSink) *Tracker {
	return &Tracker{
		cfg:  cfg,
		cam:  cam,
		det:  det,
		sink: sink,
		log:  util.Component("tracker"),
		now:  time.Now,
	}
}

// Telemetry converts one detection into a wire report.
func (t *Tracker) Telemetry(res vision.Result, width int) model.Telemetry {
	tm := model.Telemetry{
		Type:        model.TypeTelemetry,
		ObjectType:  t.det.Color().Name,
		Detected:    res.Detected,
		PixelCount:  res.PixelCount,
		DistanceCM:  res.DistanceCM,
		TimestampMS: t.now().UnixMilli(),
	}
	if res.Detected {
		tm.PixelX, tm.PixelY = res.CentroidX, res.CentroidY
		tm.AngleDeg = vision.AngleDeg(res.CentroidX, width, t.cfg.HFOVDeg)
		if res.WorldValid {
			tm.WorldX, tm.WorldY = res.World.X, res.World.Y
		}
	}
	return tm
}

// Start runs the acquisition loop in the background.
func (t *Tracker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(ctx)
	}()
}

// Stop ends the loop and closes the camera.
func (t *Tracker) Stop() {
	t.once.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		t.wg.Wait()
		if err := t.cam.Close(); err != nil {
			t.log.WithError(err).Warn("camera close failed")
		}
	})
}

func (t *Tracker) run(ctx context.Context) {
	t.log.WithField("color", t.det.Color().Name).Info("tracker started")
	for {
		f, err := t.cam.Acquire(ctx)
		switch {
		case err == nil:
			t.process(f)
		case errors.Is(err, camera.ErrNoFrame):
			continue
		case ctx.Err() != nil, errors.Is(err, camera.ErrClosed):
			return
		default:
			t.log.WithError(err).Warn("acquire failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

// process handles one frame and always releases it.
func (t *Tracker) process(f *vision.Frame) {
	defer t.cam.Release(f)
	n := t.frames.Add(1)

	res := t.det.Detect(f)
	if err := t.sink.PublishTelemetry(t.Telemetry(res, f.Width)); err != nil {
		t.log.WithError(err).Debug("telemetry not published")
	}

	if t.sink.Dashboards() == 0 || n%uint64(max(t.cfg.Stream.FrameInterval, 1)) != 0 {
		return
	}
	s := t.cfg.Stream
	data, _, err := camera.EncodeWithin(f, s.MaxPayload-128, s.QualityStart, s.QualityFloor, s.QualityStep)
	if err != nil {
		t.log.WithError(err).Warn("station frame not encoded")
		return
	}
	if err := t.sink.PublishFrame(model.SourceStationCam, data); err == nil {
		t.streams.Add(1)
	}
}

// Frames counts processed frames.
func (t *Tracker) Frames() uint64 { return t.frames.Load() }

// Streamed counts frames sent to dashboards.
func (t *Tracker) Streamed() uint64 { return t.streams.Load() }
