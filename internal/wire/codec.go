package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype this package registers process-wide
// in init. Clients select it with grpc.CallContentSubtype(CodecName), and a
// grpc server resolves it from the request's content-subtype, so no
// protobuf/IDL toolchain is required for the coordinator<->replica protocol.
const CodecName = "msgpack"

// msgpackCodec adapts vmihailenco/msgpack to grpc's encoding.Codec
// interface. grpc already length-prefixes every message on the wire; this
// codec only owns turning a Go struct into (and out of) the bytes inside
// that frame.
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: msgpack marshal: %w", err)
	}
	return b, nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: msgpack unmarshal: %w", err)
	}
	return nil
}

func (msgpackCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}
