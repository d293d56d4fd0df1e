package parser

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"RoverLink/internal/model"
)

// EncodeMsgpack marshals v as MessagePack, keyed by the same json tags the
// wire structs carry.
func EncodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeMsgpackControl is DecodeControl for a MessagePack body.
func DecodeMsgpackControl(data []byte) (model.Control, error) {
	var c model.Control
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&c); err != nil {
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
