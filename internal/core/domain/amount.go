package domain

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// AmountSecrets are the opening of a blinded amount: the value and the
// blinding factor used to commit to it.
type AmountSecrets struct {
	Amount   uint64
	Blinding []byte
}

// Serialize returns the canonical encoding of the secrets, used as plaintext
// when sealing them to an owner.
func (s AmountSecrets) Serialize() []byte {
	var b []byte
	b = appendVarintField(b, 1, s.Amount)
	b = appendBytesField(b, 2, s.Blinding)
	return b
}

// DeserializeAmountSecrets is the inverse of AmountSecrets.Serialize.
func DeserializeAmountSecrets(buf []byte) (AmountSecrets, error) {
	var s AmountSecrets
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, v uint64,
	) error {
		switch num {
		case 1:
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return err
			}
			s.Amount = v
		case 2:
			if err := expectType(num, typ, protowire.BytesType); err != nil {
				return err
			}
			s.Blinding = cloneBytes(raw)
		default:
			return unknownField(num)
		}
		return nil
	})
	return s, err
}

// SumAmounts adds up the given amounts failing on overflow.
func SumAmounts(amounts ...uint64) (uint64, error) {
	var total uint64
	for _, a := range amounts {
		if a > math.MaxUint64-total {
			return 0, fmt.Errorf("%w: summing %d to %d", ErrAmountOverflow, a, total)
		}
		total += a
	}
	return total, nil
}
