// Package xjson is the module's single JSON import site. Checkpoints,
// correlation entries and decision records all encode through it, so swapping
// the codec is a one-file change.
package xjson

import (
	stdjson "encoding/json"

	gjson "github.com/goccy/go-json"
)

func Marshal(v interface{}) ([]byte, error) {
	return gjson.Marshal(v)
}

func Unmarshal(data []byte, v interface{}) error {
	return gjson.Unmarshal(data, v)
}

// RawMessage stays interchangeable with encoding/json's RawMessage.
type RawMessage = stdjson.RawMessage
