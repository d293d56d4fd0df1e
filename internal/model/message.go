// Package model defines shared message structures for RoverLink.
package model

// Message type tags carried in the "type" field.
const (
	TypeRegister      = "register"
	TypeControl       = "control"
	TypeStreamStatus  = "stream_status"
	TypeVehicleList   = "vehicle_list"
	TypeFrame         = "frame"
	TypeTelemetry     = "telemetry"
	TypeVehicleStatus = "vehicle_status"
)

// Peer roles announced in a register message.
const (
	RoleVehicle   = "vehicle"
	RoleDashboard = "dashboard"
)

// Frame source tags.
const (
	SourceVehicleCam = "esp32cam"
	SourceStationCam = "esp32s3"
)

// Register announces the role of a connection.
type Register struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

// Control is a manual drive command. VehicleID is optional on the dashboard
// side; the router fills it in before forwarding.
type Control struct {
	Type      string `json:"type"`
	Command   string `json:"command"`
	VehicleID string `json:"vehicle_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// StreamStatus tells a vehicle whether anybody is watching.
type StreamStatus struct {
	Type        string `json:"type"`
	Enable      bool   `json:"enable"`
	ViewerCount int    `json:"viewer_count"`
}

// VehicleList is pushed to dashboards when the vehicle registry changes.
type VehicleList struct {
	Type     string   `json:"type"`
	Vehicles []string `json:"vehicles"`
}

// FrameTag precedes a binary JPEG payload and names where it came from.
type FrameTag struct {
	Type      string `json:"type"`
	Source    string `json:"source"`
	VehicleID string `json:"vehicle_id,omitempty"`
}

// Telemetry reports a tracked target as seen by the base-station camera.
type Telemetry struct {
	Type        string  `json:"type,omitempty"`
	ObjectType  string  `json:"object_type"`
	PixelX      int     `json:"pixel_x"`
	PixelY      int     `json:"pixel_y"`
	WorldX      float64 `json:"world_x"`
	WorldY      float64 `json:"world_y"`
	DistanceCM  float64 `json:"distance_cm"`
	AngleDeg    float64 `json:"angle_deg"`
	PixelCount  uint32  `json:"pixel_count"`
	Detected    bool    `json:"detected"`
	TimestampMS int64   `json:"timestamp_ms"`
}

// MotorSpeeds is the left/right pair reported in a status message.
type MotorSpeeds struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// VehicleStatus is built once per reporting cycle and never mutated.
type VehicleStatus struct {
	Type      string      `json:"type,omitempty"`
	VehicleID string      `json:"vehicle_id"`
	Motors    MotorSpeeds `json:"motors"`
	BatteryMV int         `json:"battery_mv"`
	Status    string      `json:"status"`
}

// Command is a parsed manual drive command.
type Command int

// Drive commands.
const (
	CmdStop Command = iota
	CmdForward
	CmdBackward
	CmdLeft
	CmdRight
)

var commandNames = [...]string{"stop", "forward", "backward", "left", "right"}

// String returns the wire name.
func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return "stop"
	}
	return commandNames[c]
}

// ParseCommand maps a wire string to a Command. Unknown strings map to
// CmdStop with ok=false.
func ParseCommand(s string) (c Command, ok bool) {
	for i, n := range commandNames {
		if n == s {
			return Command(i), true
		}
	}
	return CmdStop, false
}
