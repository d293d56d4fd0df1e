// Package parser decodes and encodes the JSON text messages exchanged between
// vehicles, dashboards and the base station, and the line protocol spoken to
// serial motor controllers.
//
// Every inbound text message is decoded into a Message whose Kind names the
// single populated field. Unknown "type" tags decode to KindUnknown with
// ErrUnknownType so callers can log and drop them explicitly.
package parser

import (
	"errors"
	"fmt"

	"RoverLink/internal/model"
)

var (
	// ErrMalformed marks input that is not valid JSON or lacks a required field.
	ErrMalformed = errors.New("parser: malformed message")
	// ErrUnknownType marks a well-formed message with an unrecognised type tag.
	ErrUnknownType = errors.New("parser: unknown message type")
)

// Kind tags the variant held by a Message.
type Kind int

// Message kinds.
const (
	KindUnknown Kind = iota
	KindRegister
	KindControl
	KindStreamStatus
	KindVehicleList
	KindFrame
	KindTelemetry
	KindVehicleStatus
)

func (k Kind) String() string {
	switch k {
	case KindRegister:
		return model.TypeRegister
	case KindControl:
		return model.TypeControl
	case KindStreamStatus:
		return model.TypeStreamStatus
	case KindVehicleList:
		return model.TypeVehicleList
	case KindFrame:
		return model.TypeFrame
	case KindTelemetry:
		return model.TypeTelemetry
	case KindVehicleStatus:
		return model.TypeVehicleStatus
	default:
		return "unknown"
	}
}

// Message is a decoded text message. Exactly one pointer matching Kind is set;
// Type keeps the raw tag for logging unknown kinds.
type Message struct {
	Kind         Kind
	Type         string
	Register     *model.Register
	Control      *model.Control
	StreamStatus *model.StreamStatus
	VehicleList  *model.VehicleList
	Frame        *model.FrameTag
	Telemetry    *model.Telemetry
	Status       *model.VehicleStatus
}

type probe struct {
	Type       string    `json:"type"`
	ObjectType *string   `json:"object_type"`
	Motors     *struct{} `json:"motors"`
	Command    *string   `json:"command"`
}

// Decode parses one text payload. Telemetry and vehicle status bodies may
// arrive without a type tag and are recognised by their fields.
func Decode(data []byte) (Message, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	t := p.Type
	if t == "" {
		switch {
		case p.Motors != nil:
			t = model.TypeVehicleStatus
		case p.ObjectType != nil:
			t = model.TypeTelemetry
		}
	}

	m := Message{Type: t}
	var err error
	switch t {
	case model.TypeRegister:
		m.Kind = KindRegister
		m.Register = &model.Register{}
		err = json.Unmarshal(data, m.Register)
		if err == nil {
			err = checkRegister(m.Register)
		}
	case model.TypeControl:
		m.Kind = KindControl
		m.Control = &model.Control{}
		err = json.Unmarshal(data, m.Control)
		if err == nil && p.Command == nil {
			err = errors.New("control without command")
		}
	case model.TypeStreamStatus:
		m.Kind = KindStreamStatus
		m.StreamStatus = &model.StreamStatus{}
		err = json.Unmarshal(data, m.StreamStatus)
	case model.TypeVehicleList:
		m.Kind = KindVehicleList
		m.VehicleList = &model.VehicleList{}
		err = json.Unmarshal(data, m.VehicleList)
	case model.TypeFrame:
		m.Kind = KindFrame
		m.Frame = &model.FrameTag{}
		err = json.Unmarshal(data, m.Frame)
	case model.TypeTelemetry:
		m.Kind = KindTelemetry
		m.Telemetry = &model.Telemetry{}
		err = json.Unmarshal(data, m.Telemetry)
	case model.TypeVehicleStatus:
		m.Kind = KindVehicleStatus
		m.Status = &model.VehicleStatus{}
		err = json.Unmarshal(data, m.Status)
		if err == nil && m.Status.VehicleID == "" {
			err = errors.New("status without vehicle_id")
		}
	default:
		return Message{Kind: KindUnknown, Type: t}, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if err != nil {
		return Message{Kind: KindUnknown, Type: t}, fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
	}
	return m, nil
}

func checkRegister(r *model.Register) error {
	switch r.Role {
	case "":
		r.Role = model.RoleDashboard
	case model.RoleDashboard:
	case model.RoleVehicle:
		if r.VehicleID == "" {
			return errors.New("vehicle register without vehicle_id")
		}
	default:
		return fmt.Errorf("unknown role %q", r.Role)
	}
	return nil
}
