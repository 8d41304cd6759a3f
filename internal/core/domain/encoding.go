package domain

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Canonical binary encoding of the domain objects. Fields are always written
// in ascending field-number order and empty values are omitted, so decoding
// and re-encoding a value yields the exact same bytes.

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) <= 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if len(v) <= 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

// fieldVisitor is called for every field found while decoding a message.
// Exactly one of raw (length-delimited) or varint is meaningful, depending on
// typ.
type fieldVisitor func(
	num protowire.Number, typ protowire.Type, raw []byte, varint uint64,
) error

func consumeFields(b []byte, visit fieldVisitor) error {
	var last protowire.Number
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %s", ErrMalformedEncoding, protowire.ParseError(n))
		}
		if num < last {
			return fmt.Errorf("%w: field %d out of order", ErrMalformedEncoding, num)
		}
		last = num
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("%w: %s", ErrMalformedEncoding, protowire.ParseError(n))
			}
			b = b[n:]
			if err := visit(num, typ, v, 0); err != nil {
				return err
			}
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("%w: %s", ErrMalformedEncoding, protowire.ParseError(n))
			}
			b = b[n:]
			if err := visit(num, typ, nil, v); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unsupported wire type %d", ErrMalformedEncoding, typ)
		}
	}
	return nil
}

func unknownField(num protowire.Number) error {
	return fmt.Errorf("%w: unknown field %d", ErrMalformedEncoding, num)
}

func expectType(num protowire.Number, got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf(
			"%w: field %d has wire type %d, expected %d",
			ErrMalformedEncoding, num, got, want,
		)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if len(b) <= 0 {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
