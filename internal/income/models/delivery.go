package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Delivery is one inbound webhook body: the bytes exactly as received, for the
// archive, and the decoded top-level object. Numbers in Fields are json.Number
// so large integer ids survive decoding unchanged.
type Delivery struct {
	Body   json.RawMessage
	Fields map[string]any
}

// DecodeDelivery accepts exactly one JSON object.
func DecodeDelivery(body []byte) (*Delivery, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty body")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("body is null")
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON object")
	}
	return &Delivery{Body: json.RawMessage(body), Fields: fields}, nil
}
