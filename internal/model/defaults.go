package model

// Defaults for zero-valued configuration fields.
const (
	DefaultListen        = ":80"
	DefaultServerURL     = "ws://192.168.4.1/ws"
	DefaultVehicleID     = "ESP32CAM_01"
	DefaultMaxPeers      = 4
	DefaultSendQueue     = 16
	DefaultBatteryMV     = 3700
	DefaultFramePeriodMs = 33
)

func orInt(v *int, d int) {
	if *v == 0 {
		*v = d
	}
}

func orFloat(v *float64, d float64) {
	if *v == 0 {
		*v = d
	}
}

func orString(v *string, d string) {
	if *v == "" {
		*v = d
	}
}

// ApplyDefaults fills every zero field of the present sections. Zero means
// "not set"; a tunable that must be zero is not expressible.
func (c *Config) ApplyDefaults() {
	orString(&c.Log.Level, "info")
	if c.BaseStation != nil {
		c.BaseStation.ApplyDefaults()
	}
	if c.Vehicle != nil {
		c.Vehicle.ApplyDefaults()
	}
}

// ApplyDefaults fills the base-station section.
func (b *BaseStationConfig) ApplyDefaults() {
	orString(&b.Listen, DefaultListen)
	orInt(&b.MaxPeers, DefaultMaxPeers)
	orInt(&b.SendQueue, DefaultSendQueue)
	orFloat(&b.FrameRate, 15)
	orInt(&b.FrameBurst, 5)
	orFloat(&b.ControlRate, 20)
	orInt(&b.WriteTimeoutMs, 2000)
	orInt(&b.PingIntervalMs, 10000)
	if b.MaxMessageBytes == 0 {
		b.MaxMessageBytes = 64 << 10
	}
	if b.Tracker != nil {
		b.Tracker.ApplyDefaults()
	}
	if b.MQTT != nil {
		orString(&b.MQTT.TopicPrefix, "roverlink")
		orString(&b.MQTT.ClientID, "roverlink-base")
	}
}

// ApplyDefaults fills the tracker section. The station camera defaults to
// 640x480 over a 100x80 cm ground patch.
func (t *TrackerConfig) ApplyDefaults() {
	orString(&t.Camera.Kind, "synthetic")
	orInt(&t.Camera.Width, 640)
	orInt(&t.Camera.Height, 480)
	orInt(&t.FramePeriodMs, 100)
	if t.Color == (ColorConfig{}) {
		t.Color.Preset = "target_orange"
	}
	t.Detector.ApplyDefaults()
	t.Homography.applyDefaults(t.Camera.Width, t.Camera.Height)
	orFloat(&t.HFOVDeg, 60)
	t.Stream.ApplyDefaults()
}

// ApplyDefaults fills the vehicle section.
func (v *VehicleConfig) ApplyDefaults() {
	orString(&v.ID, DefaultVehicleID)
	orString(&v.ServerURL, DefaultServerURL)
	orString(&v.Mode, "manual")
	orInt(&v.FramePeriodMs, DefaultFramePeriodMs)
	orInt(&v.BatteryMV, DefaultBatteryMV)
	orString(&v.Camera.Kind, "synthetic")
	orInt(&v.Camera.Width, 320)
	orInt(&v.Camera.Height, 240)
	if v.Color == (ColorConfig{}) {
		v.Color.Preset = "green"
	}
	v.Detector.ApplyDefaults()
	if v.Homography != nil {
		v.Homography.applyDefaults(v.Camera.Width, v.Camera.Height)
	}
	orString(&v.Motor.Backend, "memory")
	v.Control.ApplyDefaults()
	v.Stream.ApplyDefaults()
	orInt(&v.Link.ReconnectMs, 5000)
	orInt(&v.Link.PingIntervalMs, 10000)
	orInt(&v.Link.WriteTimeoutMs, 2000)
	orInt(&v.Link.SendQueue, DefaultSendQueue)
}

// ApplyDefaults fills detector constants.
func (d *DetectorConfig) ApplyDefaults() {
	if d.MinArea == 0 {
		d.MinArea = 200
	}
	orFloat(&d.MaxAreaRatio, 0.5)
	orFloat(&d.KnownWidthCM, 10.0)
	orFloat(&d.FocalLengthPX, 400.0)
	orFloat(&d.VetoThresholdCM, 25.0)
}

func (h *HomographyConfig) applyDefaults(w, ht int) {
	orInt(&h.ImageWidth, w)
	orInt(&h.ImageHeight, ht)
	orFloat(&h.RealWidthCM, 100)
	orFloat(&h.RealHeightCM, 80)
}

// ApplyDefaults fills control constants and loop timing.
func (c *ControlConfig) ApplyDefaults() {
	orInt(&c.QueueSize, 10)
	orInt(&c.ReceiveTimeoutMs, 100)
	orInt(&c.InputTimeoutMs, 2000)
	orInt(&c.StatusIntervalMs, 100)
	orInt(&c.MonitorIntervalMs, 5000)
	orInt(&c.ReadLockMs, 10)
	orInt(&c.WriteLockMs, 100)
	orInt(&c.ForwardSpeed, 180)
	orInt(&c.BackwardSpeed, 150)
	orInt(&c.TurnSpeed, 140)
	orFloat(&c.StopThresholdCM, 30)
	orFloat(&c.FollowMaxCM, 100)
	orInt(&c.BaseSpeed, 150)
	orInt(&c.SearchSpeed, 80)
	orFloat(&c.AngleGain, 2.0)
}

// ApplyDefaults fills video relay settings.
func (s *StreamConfig) ApplyDefaults() {
	orInt(&s.FrameInterval, 3)
	orInt(&s.QualityStart, 60)
	orInt(&s.QualityFloor, 30)
	orInt(&s.QualityStep, 10)
	orInt(&s.MaxPayload, 32768)
}
