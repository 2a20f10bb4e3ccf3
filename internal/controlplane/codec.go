package controlplane

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated as the gRPC content-subtype ("application/grpc+json"),
// selected per call via grpc.CallContentSubtype(codecName) on the client; the
// server honors whatever subtype a request carries automatically.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
