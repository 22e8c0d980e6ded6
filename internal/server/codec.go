package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

var _ connect.Codec = jsonCodec{}

// jsonCodec serializes plain Go structs. It is registered under the "json" name so connect
// clients sending application/json reach the dashboard service without protobuf types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
