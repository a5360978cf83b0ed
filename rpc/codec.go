package rpc

import (
	"encoding/json"

	grpcEncoding "google.golang.org/grpc/encoding"
	_ "google.golang.org/grpc/encoding/proto" // ensure default proto codec is registered first
	"google.golang.org/protobuf/proto"
)

func init() {
	// Replace the default proto codec with a wrapper that JSON-encodes the
	// plain Go message types of this package and delegates protobuf messages
	// to proto.Marshal.
	grpcEncoding.RegisterCodec(codec{})
}

// codec wraps the default proto codec. Protobuf messages keep their wire
// format; every other value travels as JSON.
type codec struct{}

func (codec) Name() string { return "proto" }

func (codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}
