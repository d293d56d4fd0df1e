// Package model defines shared configuration structures used to initialize the
// RoverLink base station and vehicle.
package model

// Config represents the root structure loaded from configs/config.yml.
// At least one of BaseStation and Vehicle must be present.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	BaseStation *BaseStationConfig `yaml:"base_station"`
	Vehicle     *VehicleConfig     `yaml:"vehicle"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level        string `yaml:"level" validate:"omitempty,oneof=panic fatal error warn warning info debug trace"`
	File         string `yaml:"file"` // rotated log file, empty for stderr only
	MaxSizeMB    int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxAgeDays   int    `yaml:"max_age_days" validate:"gte=0"`
	MaxBackups   int    `yaml:"max_backups" validate:"gte=0"`
	Compress     bool   `yaml:"compress"`
	NoColors     bool   `yaml:"no_colors"`
	Quiet        bool   `yaml:"quiet"` // drop stderr output
	ReportCaller bool   `yaml:"report_caller"`
}

// BaseStationConfig configures the router node.
type BaseStationConfig struct {
	Listen           string         `yaml:"listen" validate:"required"`
	MaxPeers         int            `yaml:"max_peers" validate:"min=1,max=16"`
	SendQueue        int            `yaml:"send_queue" validate:"min=1"`
	FrameRate        float64        `yaml:"frame_rate" validate:"gte=0"` // per vehicle, 0 disables the limit
	FrameBurst       int            `yaml:"frame_burst" validate:"gte=0"`
	ControlRate      float64        `yaml:"control_rate" validate:"gte=0"` // /api/control requests per second
	WriteTimeoutMs   int            `yaml:"write_timeout_ms" validate:"gte=0"`
	PingIntervalMs   int            `yaml:"ping_interval_ms" validate:"gte=0"`
	MaxMessageBytes  int64          `yaml:"max_message_bytes" validate:"gte=0"`
	Tracker          *TrackerConfig `yaml:"tracker"`
	MQTT             *MQTTConfig    `yaml:"mqtt"`
	DisableDashboard bool           `yaml:"disable_dashboard"`
}

// TrackerConfig enables the base-station camera that produces target telemetry.
type TrackerConfig struct {
	Camera        CameraConfig     `yaml:"camera"`
	FramePeriodMs int              `yaml:"frame_period_ms" validate:"gt=0"`
	Color         ColorConfig      `yaml:"color"`
	Detector      DetectorConfig   `yaml:"detector"`
	Homography    HomographyConfig `yaml:"homography"`
	HFOVDeg       float64          `yaml:"hfov_deg" validate:"gt=0,lte=180"`
	Stream        StreamConfig     `yaml:"stream"`
}

// MQTTConfig configures the optional telemetry bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker" validate:"required"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos" validate:"lte=2"`
	Encoding    string `yaml:"encoding" validate:"omitempty,oneof=json msgpack"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
}

// VehicleConfig configures the rover.
type VehicleConfig struct {
	ID            string            `yaml:"id" validate:"required"`
	ServerURL     string            `yaml:"server_url" validate:"required,url"`
	Mode          string            `yaml:"mode" validate:"oneof=manual telemetry"`
	FramePeriodMs int               `yaml:"frame_period_ms" validate:"gt=0"`
	BatteryMV     int               `yaml:"battery_mv" validate:"gte=0"`
	Camera        CameraConfig      `yaml:"camera"`
	Color         ColorConfig       `yaml:"color"`
	Detector      DetectorConfig    `yaml:"detector"`
	Homography    *HomographyConfig `yaml:"homography"`
	Motor         MotorConfig       `yaml:"motor"`
	Control       ControlConfig     `yaml:"control"`
	Stream        StreamConfig      `yaml:"stream"`
	Link          LinkConfig        `yaml:"link"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	Kind   string `yaml:"kind" validate:"oneof=synthetic none"`
	Width  int    `yaml:"width" validate:"gt=0"`
	Height int    `yaml:"height" validate:"gt=0"`
	// synthetic source only
	TargetColor string `yaml:"target_color"`
	TargetSize  int    `yaml:"target_size" validate:"gte=0"`
	Motion      string `yaml:"motion" validate:"omitempty,oneof=static sweep approach"`
}

// ColorConfig names a preset or gives explicit HSV bounds.
type ColorConfig struct {
	Preset string `yaml:"preset"`
	HueMin uint8  `yaml:"hue_min"`
	HueMax uint8  `yaml:"hue_max"`
	SatMin uint8  `yaml:"sat_min"`
	SatMax uint8  `yaml:"sat_max"`
	ValMin uint8  `yaml:"val_min"`
	ValMax uint8  `yaml:"val_max"`
}

// DetectorConfig holds segmentation and distance constants.
type DetectorConfig struct {
	MinArea         uint32  `yaml:"min_area" validate:"gt=0"`
	MaxAreaRatio    float64 `yaml:"max_area_ratio" validate:"gt=0,lte=1"`
	KnownWidthCM    float64 `yaml:"known_width_cm" validate:"gt=0"`
	FocalLengthPX   float64 `yaml:"focal_length_px" validate:"gt=0"`
	VetoThresholdCM float64 `yaml:"veto_threshold_cm" validate:"gte=0"`
}

// HomographyConfig describes the pixel-to-ground map. Matrix wins over
// Points, which win over the scale+center default.
type HomographyConfig struct {
	ImageWidth   int          `yaml:"image_width" validate:"gte=0"`
	ImageHeight  int          `yaml:"image_height" validate:"gte=0"`
	RealWidthCM  float64      `yaml:"real_width_cm" validate:"gte=0"`
	RealHeightCM float64      `yaml:"real_height_cm" validate:"gte=0"`
	Matrix       []float64    `yaml:"matrix" validate:"omitempty,len=9"`
	ImagePoints  [][2]float64 `yaml:"image_points" validate:"omitempty,len=4"`
	WorldPoints  [][2]float64 `yaml:"world_points" validate:"omitempty,len=4"`
}

// MotorConfig selects the actuator backend.
type MotorConfig struct {
	Backend      string `yaml:"backend" validate:"oneof=memory serial l298n dirpwm"`
	Pins         string `yaml:"pins" validate:"omitempty,oneof=memory sysfs"`
	SerialDevice string `yaml:"serial_device" validate:"required_if=Backend serial"`
	SerialBaud   int    `yaml:"serial_baud" validate:"gte=0"`
	AckTimeoutMs int    `yaml:"ack_timeout_ms" validate:"gte=0"`
	// sysfs numbering, L298N: in1/in2 per side, dirpwm: dir per side
	LeftIn1     int    `yaml:"left_in1"`
	LeftIn2     int    `yaml:"left_in2"`
	RightIn1    int    `yaml:"right_in1"`
	RightIn2    int    `yaml:"right_in2"`
	PWMChip     int    `yaml:"pwm_chip"`
	LeftPWM     int    `yaml:"left_pwm"`
	RightPWM    int    `yaml:"right_pwm"`
	PWMPeriodNs int    `yaml:"pwm_period_ns" validate:"gte=0"`
	SysfsRoot   string `yaml:"sysfs_root"`
}

// ControlConfig holds the fusion state machine constants and loop timing.
type ControlConfig struct {
	QueueSize         int     `yaml:"queue_size" validate:"gt=0"`
	ReceiveTimeoutMs  int     `yaml:"receive_timeout_ms" validate:"gt=0"`
	InputTimeoutMs    int     `yaml:"input_timeout_ms" validate:"gt=0"`
	StatusIntervalMs  int     `yaml:"status_interval_ms" validate:"gt=0"`
	MonitorIntervalMs int     `yaml:"monitor_interval_ms" validate:"gt=0"`
	ReadLockMs        int     `yaml:"read_lock_ms" validate:"gt=0"`
	WriteLockMs       int     `yaml:"write_lock_ms" validate:"gt=0"`
	ForwardSpeed      int     `yaml:"forward_speed" validate:"gte=0,lte=255"`
	BackwardSpeed     int     `yaml:"backward_speed" validate:"gte=0,lte=255"`
	TurnSpeed         int     `yaml:"turn_speed" validate:"gte=0,lte=255"`
	StopThresholdCM   float64 `yaml:"stop_threshold_cm" validate:"gte=0"`
	FollowMaxCM       float64 `yaml:"follow_max_cm" validate:"gtefield=StopThresholdCM"`
	BaseSpeed         int     `yaml:"base_speed" validate:"gte=0,lte=255"`
	SearchSpeed       int     `yaml:"search_speed" validate:"gte=0,lte=255"`
	AngleGain         float64 `yaml:"angle_gain" validate:"gte=0"`
}

// StreamConfig controls JPEG video relay.
type StreamConfig struct {
	FrameInterval int `yaml:"frame_interval" validate:"gt=0"` // send every Nth frame
	QualityStart  int `yaml:"quality_start" validate:"min=1,max=100"`
	QualityFloor  int `yaml:"quality_floor" validate:"min=1,max=100,ltefield=QualityStart"`
	QualityStep   int `yaml:"quality_step" validate:"min=1"`
	MaxPayload    int `yaml:"max_payload" validate:"gt=128"`
}

// LinkConfig controls the vehicle WebSocket client.
type LinkConfig struct {
	ReconnectMs    int `yaml:"reconnect_ms" validate:"gt=0"`
	PingIntervalMs int `yaml:"ping_interval_ms" validate:"gte=0"`
	WriteTimeoutMs int `yaml:"write_timeout_ms" validate:"gt=0"`
	SendQueue      int `yaml:"send_queue" validate:"gt=0"`
}
