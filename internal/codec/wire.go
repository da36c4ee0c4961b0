// Package codec registers the message codecs used on the agent/collector
// gRPC connection and on the REST API.
package codec

import (
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/go-tangra/go-tangra-sysinfo/internal/wire"
)

// Name is the gRPC content subtype of the wire codec.
const Name = "sysinfo"

func init() {
	encoding.RegisterCodec(wireCodec{})
}

type wireCodec struct{}

func (wireCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wire.Message)
	if !ok {
		return nil, fmt.Errorf("codec %s: cannot marshal %T", Name, v)
	}
	return m.MarshalWire(), nil
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wire.Message)
	if !ok {
		return fmt.Errorf("codec %s: cannot unmarshal into %T", Name, v)
	}
	return m.UnmarshalWire(data)
}

func (wireCodec) Name() string { return Name }

// CallOption selects the wire codec for a client call.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}
