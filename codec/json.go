package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// JSON encodes values as compact JSON. Unmarshal rejects unknown fields and
// trailing data.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes exactly one JSON value from data into v.
func (JSON) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("codec: trailing data after JSON value")
	}
	return nil
}

// Name returns "json".
func (JSON) Name() string { return "json" }
