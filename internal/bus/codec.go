// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package bus

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes events for the wire.
type Codec interface {
	Name() string
	Marshal(e *Event) ([]byte, error)
	Unmarshal(data []byte, e *Event) error
}

// Codec names accepted by NewCodec.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// NewCodec returns the codec with the given name. Empty means JSON.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return jsonCodec{}, nil
	case CodecMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown bus codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }

func (jsonCodec) Marshal(e *Event) ([]byte, error) {
	return json.Marshal(e)
}

func (jsonCodec) Unmarshal(data []byte, e *Event) error {
	return json.Unmarshal(data, e)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }

func (msgpackCodec) Marshal(e *Event) ([]byte, error) {
	return msgpack.Marshal(e)
}

func (msgpackCodec) Unmarshal(data []byte, e *Event) error {
	return msgpack.Unmarshal(data, e)
}
