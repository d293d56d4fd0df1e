package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoverLink/internal/model"
)

func TestDecodeRegister(t *testing.T) {
	m, err := Decode([]byte(`{"type":"register","role":"vehicle","vehicle_id":"ESP32CAM_01"}`))
	require.NoError(t, err)
	require.Equal(t, KindRegister, m.Kind)
	assert.Equal(t, model.RoleVehicle, m.Register.Role)
	assert.Equal(t, "ESP32CAM_01", m.Register.VehicleID)

	m, err = Decode([]byte(`{"type":"register"}`))
	require.NoError(t, err)
	assert.Equal(t, model.RoleDashboard, m.Register.Role, "role defaults to dashboard")

	_, err = Decode([]byte(`{"type":"register","role":"vehicle"}`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte(`{"type":"register","role":"toaster"}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeControl(t *testing.T) {
	m, err := Decode([]byte(`{"type":"control","command":"left","vehicle_id":"v2","timestamp":1234}`))
	require.NoError(t, err)
	require.Equal(t, KindControl, m.Kind)
	assert.Equal(t, "left", m.Control.Command)
	assert.Equal(t, "v2", m.Control.VehicleID)
	assert.Equal(t, int64(1234), m.Control.Timestamp)

	_, err = Decode([]byte(`{"type":"control","vehicle_id":"v2"}`))
	assert.ErrorIs(t, err, ErrMalformed, "command is required")
}

func TestDecodeUntaggedBodies(t *testing.T) {
	m, err := Decode([]byte(`{"object_type":"target_orange","distance_cm":42.5,"angle_deg":-3,"detected":true,"timestamp_ms":99}`))
	require.NoError(t, err)
	require.Equal(t, KindTelemetry, m.Kind)
	assert.InDelta(t, 42.5, m.Telemetry.DistanceCM, 1e-9)
	assert.True(t, m.Telemetry.Detected)

	m, err = Decode([]byte(`{"vehicle_id":"v1","motors":{"left":10,"right":-10},"battery_mv":3700,"status":"IDLE"}`))
	require.NoError(t, err)
	require.Equal(t, KindVehicleStatus, m.Kind)
	assert.Equal(t, model.MotorSpeeds{Left: 10, Right: -10}, m.Status.Motors)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	m, err := Decode([]byte(`{"type":"selfdestruct"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, KindUnknown, m.Kind)
	assert.Equal(t, "selfdestruct", m.Type)

	_, err = Decode([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEncodeShapes(t *testing.T) {
	b, err := Encode(StreamStatusMessage(2))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"stream_status","enable":true,"viewer_count":2}`, string(b))

	b, err = Encode(VehicleListMessage(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"vehicle_list","vehicles":[]}`, string(b))

	b, err = Encode(FrameTagMessage(model.SourceVehicleCam, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"frame","source":"esp32cam"}`, string(b))

	b, err = Encode(ControlMessage(model.CmdBackward, "", 5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"control","command":"backward","timestamp":5}`, string(b))
}

func TestMotorLineProtocol(t *testing.T) {
	assert.Equal(t, "M,-120,255", EncodeMotor(MotorFrame{Left: -120, Right: 255}))
	assert.Equal(t, "E", EncodeMotor(MotorFrame{Brake: true, Left: 3}))

	f, err := DecodeMotor("M,10,-20\n")
	require.NoError(t, err)
	assert.Equal(t, MotorFrame{Left: 10, Right: -20}, f)

	f, err = DecodeMotor("E")
	require.NoError(t, err)
	assert.True(t, f.Brake)

	_, err = DecodeMotor("M,1")
	assert.EqualError(t, err, "expected 3 fields, got 2")
	_, err = DecodeMotor("X,1,2")
	assert.Error(t, err)
	_, err = DecodeMotor("M,a,2")
	assert.EqualError(t, err, "invalid left speed")
}

func TestDecodeAck(t *testing.T) {
	assert.NoError(t, DecodeAck("OK\r\n"))
	assert.ErrorIs(t, DecodeAck("ERR,overcurrent"), ErrMotorFault)
	assert.Error(t, DecodeAck("???"))
}

func TestDecodeControlBody(t *testing.T) {
	c, err := DecodeControl([]byte(`{"command":"left","vehicle_id":"ESP32CAM_01"}`))
	require.NoError(t, err)
	assert.Equal(t, model.TypeControl, c.Type)
	assert.Equal(t, "left", c.Command)
	assert.Equal(t, "ESP32CAM_01", c.VehicleID)

	_, err = DecodeControl([]byte(`{"vehicle_id":"x"}`))
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = DecodeControl([]byte(`{"type":"register","command":"left"}`))
	assert.ErrorIs(t, err, ErrUnknownType)
	_, err = DecodeControl([]byte(`[`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMsgpackControl(t *testing.T) {
	data, err := EncodeMsgpack(ControlMessage(model.CmdBackward, "ESP32CAM_01", 5))
	require.NoError(t, err)
	c, err := DecodeMsgpackControl(data)
	require.NoError(t, err)
	assert.Equal(t, "backward", c.Command)
	assert.Equal(t, "ESP32CAM_01", c.VehicleID)
	assert.Equal(t, int64(5), c.Timestamp)

	reg, err := EncodeMsgpack(RegisterMessage(model.RoleDashboard, ""))
	require.NoError(t, err)
	_, err = DecodeMsgpackControl(reg)
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = DecodeMsgpackControl([]byte{0xc1})
	assert.ErrorIs(t, err, ErrMalformed)
}
