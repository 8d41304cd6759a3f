package domain

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"google.golang.org/protobuf/encoding/protowire"
)

// TokenVersion is the version of the token encoding.
const TokenVersion byte = 1

// Token is a completed DBC: an output of a transaction together with the
// quorum proof covering every input that transaction consumed. Tokens are
// never mutated, they are transferred by copying their serialization.
type Token struct {
	Version byte
	Output  Output
	// BearerSecret is the owner private key, only set for bearer tokens.
	BearerSecret []byte
	Transaction  *CandidateTransaction
	QuorumProof  QuorumProof
	Genesis      bool
}

// Fingerprint returns the fingerprint that identifies the token once spent.
func (t *Token) Fingerprint() Fingerprint {
	return t.Output.Fingerprint()
}

// IsBearer ...
func (t *Token) IsBearer() bool {
	return t.Output.Bearer
}

// TxID returns the id of the transaction that created the token.
func (t *Token) TxID() string {
	if t.Transaction == nil {
		return ""
	}
	return t.Transaction.ID()
}

// Serialize returns the version byte followed by the canonical encoding of
// the token.
func (t *Token) Serialize() []byte {
	b := []byte{t.Version}
	b = appendBytesField(b, 1, t.Output.serialize())
	b = appendBytesField(b, 2, t.BearerSecret)
	if t.Transaction != nil {
		b = appendBytesField(b, 3, t.Transaction.Serialize())
	}
	b = appendBytesField(b, 4, t.QuorumProof.Serialize())
	b = appendBoolField(b, 5, t.Genesis)
	return b
}

// DeserializeToken is the inverse of Token.Serialize.
func DeserializeToken(buf []byte) (*Token, error) {
	if len(buf) <= 0 {
		return nil, ErrMalformedToken
	}
	if buf[0] != TokenVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedTokenVersion, buf[0])
	}

	t := &Token{Version: buf[0]}
	err := consumeFields(buf[1:], func(
		num protowire.Number, typ protowire.Type, raw []byte, v uint64,
	) error {
		if num == 5 {
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return err
			}
			t.Genesis = v != 0
			return nil
		}
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		switch num {
		case 1:
			out, err := deserializeOutput(raw)
			if err != nil {
				return err
			}
			t.Output = *out
		case 2:
			t.BearerSecret = cloneBytes(raw)
		case 3:
			tx, err := DeserializeTransaction(raw)
			if err != nil {
				return err
			}
			t.Transaction = tx
		case 4:
			proof, err := DeserializeQuorumProof(raw)
			if err != nil {
				return err
			}
			t.QuorumProof = proof
		default:
			return unknownField(num)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedToken, err)
	}
	if len(t.Output.Commitment) <= 0 || len(t.Output.OwnerKey) <= 0 {
		return nil, fmt.Errorf("%w: missing output", ErrMalformedToken)
	}
	if !t.Genesis && t.Transaction == nil {
		return nil, fmt.Errorf("%w: missing transaction", ErrMalformedToken)
	}
	return t, nil
}

// EncodeText returns the text form of the token, meant to be copy-pasted
// between users.
func (t *Token) EncodeText() string {
	b := t.Serialize()
	return base58.CheckEncode(b[1:], b[0])
}

// DecodeTokenText is the inverse of Token.EncodeText.
func DecodeTokenText(text string) (*Token, error) {
	body, version, err := base58.CheckDecode(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedToken, err)
	}
	return DeserializeToken(append([]byte{version}, body...))
}

// AssembleTokens returns the completed tokens of all outputs of the given
// transaction. Bearer secrets are indexed by output.
func AssembleTokens(
	tx *CandidateTransaction, bearerSecrets map[int][]byte, proof QuorumProof,
) []Token {
	tokens := make([]Token, 0, len(tx.Outputs))
	for i, out := range tx.Outputs {
		tokens = append(tokens, Token{
			Version:      TokenVersion,
			Output:       out,
			BearerSecret: cloneBytes(bearerSecrets[i]),
			Transaction:  tx,
			QuorumProof:  proof,
		})
	}
	return tokens
}
