// Package wire defines the gRPC messages, codec, and service descriptors shared by
// the coordinator and worker processes.
package wire

import (
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype of Codec.
const CodecName = "json"

// Codec encodes messages as JSON. float64 values round-trip exactly.
type Codec struct{}

var _ encoding.Codec = Codec{}

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", v, err)
	}
	return nil
}

// Name implements encoding.Codec.
func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
