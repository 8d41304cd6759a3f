package spentbookv1

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrMalformedMessage is returned when a message can't be decoded.
	ErrMalformedMessage = errors.New("malformed spentbook message")
	// ErrUnknownMessage is returned when the codec is given a type that is not
	// a spentbook message.
	ErrUnknownMessage = errors.New("not a spentbook message")
)

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) <= 0 {
		return b
	}
	return appendRepeatedBytes(b, num, v)
}

// appendRepeatedBytes writes the field even if empty, to preserve the
// position of elements of repeated fields.
func appendRepeatedBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	return appendBytesField(b, num, []byte(v))
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// field is a decoded field value, either length-delimited or varint.
type field struct {
	typ  protowire.Type
	raw  []byte
	vint uint64
}

func (f field) bytes(num protowire.Number) ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, wrongType(num, f.typ)
	}
	if len(f.raw) <= 0 {
		return nil, nil
	}
	return append([]byte(nil), f.raw...), nil
}

func (f field) string(num protowire.Number) (string, error) {
	if f.typ != protowire.BytesType {
		return "", wrongType(num, f.typ)
	}
	return string(f.raw), nil
}

func (f field) varint(num protowire.Number) (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, wrongType(num, f.typ)
	}
	return f.vint, nil
}

// consumeFields visits every field of buf. Unknown field numbers are left to
// the visitor, which ignores them.
func consumeFields(
	buf []byte, visit func(num protowire.Number, f field) error,
) error {
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrMalformedMessage, protowire.ParseError(n))
		}
		buf = buf[n:]

		f := field{typ: typ}
		switch typ {
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(buf)
		case protowire.VarintType:
			f.vint, n = protowire.ConsumeVarint(buf)
		default:
			n = protowire.ConsumeFieldValue(num, typ, buf)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrMalformedMessage, protowire.ParseError(n))
		}
		buf = buf[n:]

		if typ != protowire.BytesType && typ != protowire.VarintType {
			continue
		}
		if err := visit(num, f); err != nil {
			return err
		}
	}
	return nil
}

func wrongType(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: field %d has wire type %d", ErrMalformedMessage, num, typ)
}
