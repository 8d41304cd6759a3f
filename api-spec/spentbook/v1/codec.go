// Package spentbookv1 describes the gRPC service exposed by spentbook nodes.
// Messages travel protobuf encoded; tokens and transactions are carried in
// their canonical binary encoding, so that every node hashes and verifies
// exactly the bytes the wallet signed.
package spentbookv1

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype of spentbook calls
// (application/grpc+spentbook-proto).
const CodecName = "spentbook-proto"

func init() {
	encoding.RegisterCodec(codec{})
}

// message is implemented by every spentbook wire message.
type message interface {
	marshal() []byte
	unmarshal(buf []byte) error
}

type codec struct{}

func (codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(message)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, v)
	}
	return m.marshal(), nil
}

func (codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(message)
	if !ok {
		return fmt.Errorf("%w: %T", ErrUnknownMessage, v)
	}
	return m.unmarshal(data)
}

func (codec) Name() string {
	return CodecName
}
