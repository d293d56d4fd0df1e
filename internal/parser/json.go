package parser

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"RoverLink/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode marshals any outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// RegisterMessage builds a register announcement.
func RegisterMessage(role, vehicleID string) model.Register {
	return model.Register{Type: model.TypeRegister, Role: role, VehicleID: vehicleID}
}

// ControlMessage builds a drive command.
func ControlMessage(cmd model.Command, vehicleID string, ts int64) model.Control {
	return model.Control{Type: model.TypeControl, Command: cmd.String(), VehicleID: vehicleID, Timestamp: ts}
}

// StreamStatusMessage builds a stream-enable notice.
func StreamStatusMessage(viewers int) model.StreamStatus {
	return model.StreamStatus{Type: model.TypeStreamStatus, Enable: viewers > 0, ViewerCount: viewers}
}

// VehicleListMessage builds a vehicle list; a nil slice encodes as [].
func VehicleListMessage(ids []string) model.VehicleList {
	if ids == nil {
		ids = []string{}
	}
	return model.VehicleList{Type: model.TypeVehicleList, Vehicles: ids}
}

// FrameTagMessage builds the text header sent before a binary frame.
func FrameTagMessage(source, vehicleID string) model.FrameTag {
	return model.FrameTag{Type: model.TypeFrame, Source: source, VehicleID: vehicleID}
}

// DecodeControl parses a bare HTTP control body such as
// {"command":"left","vehicle_id":"ESP32CAM_01"}; the type tag is optional.
func DecodeControl(data []byte) (model.Control, error) {
	var c model.Control
	if err := json.Unmarshal(data, &c); err != nil {
		return model.Control{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if c.Type != "" && c.Type != model.TypeControl {
		return model.Control{}, fmt.Errorf("%w: %q", ErrUnknownType, c.Type)
	}
	if c.Command == "" {
		return model.Control{}, fmt.Errorf("%w: control without command", ErrMalformed)
	}
	c.Type = model.TypeControl
	return c, nil
}
