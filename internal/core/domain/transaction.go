package domain

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"google.golang.org/protobuf/encoding/protowire"
)

// Input references a previously created output that the transaction consumes.
type Input struct {
	Fingerprint Fingerprint
	Commitment  []byte
	OwnerKey    []byte
}

// Output is a newly created blinded amount. The amount secrets are sealed to
// the owner key. A bearer output can be spent by anyone holding the token,
// since the owner secret travels along with it.
type Output struct {
	Commitment []byte
	OwnerKey   []byte
	Bearer     bool
	Ephemeral  []byte
	Ciphertext []byte
}

// Fingerprint returns the fingerprint the output will have once consumed as
// input of a further transaction.
func (o Output) Fingerprint() Fingerprint {
	return NewFingerprint(o.Commitment, o.OwnerKey)
}

// Equal returns whether the two outputs are the same.
func (o Output) Equal(other Output) bool {
	return bytes.Equal(o.Commitment, other.Commitment) &&
		bytes.Equal(o.OwnerKey, other.OwnerKey) &&
		o.Bearer == other.Bearer &&
		bytes.Equal(o.Ephemeral, other.Ephemeral) &&
		bytes.Equal(o.Ciphertext, other.Ciphertext)
}

// Matches returns whether the input consumes the given output.
func (i Input) Matches(o Output) bool {
	return i.Fingerprint == o.Fingerprint() &&
		bytes.Equal(i.Commitment, o.Commitment) &&
		bytes.Equal(i.OwnerKey, o.OwnerKey)
}

// CandidateTransaction is the spend submitted to the spentbook nodes. The
// balance proof and the owner signatures commit to the signing hash, that
// covers only inputs and outputs.
type CandidateTransaction struct {
	Inputs          []Input
	Outputs         []Output
	BalanceProof    []byte
	OwnerSignatures [][]byte
}

// SigningHash is the message signed by the balance proof and by the owners of
// the consumed inputs.
func (t CandidateTransaction) SigningHash() []byte {
	h := chainhash.TaggedHash(tagTransaction, t.body())
	return h[:]
}

// ID returns the identifier of the transaction.
func (t CandidateTransaction) ID() string {
	return hex.EncodeToString(t.SigningHash())
}

// InputFingerprints returns the fingerprints of the inputs, in order.
func (t CandidateTransaction) InputFingerprints() []Fingerprint {
	fps := make([]Fingerprint, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		fps = append(fps, in.Fingerprint)
	}
	return fps
}

// InputCommitments ...
func (t CandidateTransaction) InputCommitments() [][]byte {
	commitments := make([][]byte, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		commitments = append(commitments, in.Commitment)
	}
	return commitments
}

// OutputCommitments ...
func (t CandidateTransaction) OutputCommitments() [][]byte {
	commitments := make([][]byte, 0, len(t.Outputs))
	for _, out := range t.Outputs {
		commitments = append(commitments, out.Commitment)
	}
	return commitments
}

// HasOutput returns whether the transaction created the given output.
func (t CandidateTransaction) HasOutput(o Output) bool {
	for _, out := range t.Outputs {
		if out.Equal(o) {
			return true
		}
	}
	return false
}

// Validate checks the structure of the transaction, not its proofs.
func (t CandidateTransaction) Validate() error {
	if len(t.Inputs) <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProof, ErrNoInputsSelected)
	}
	if len(t.Outputs) <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidProof, ErrNoOutputsRequested)
	}
	if len(t.OwnerSignatures) != len(t.Inputs) {
		return fmt.Errorf(
			"%w: got %d owner signatures for %d inputs",
			ErrInvalidProof, len(t.OwnerSignatures), len(t.Inputs),
		)
	}
	if len(t.BalanceProof) <= 0 {
		return fmt.Errorf("%w: missing balance proof", ErrInvalidProof)
	}

	seen := make(map[Fingerprint]struct{})
	for i, in := range t.Inputs {
		if err := in.Fingerprint.Validate(); err != nil {
			return fmt.Errorf("%w: input %d: %s", ErrInvalidProof, i, err)
		}
		if in.Fingerprint != NewFingerprint(in.Commitment, in.OwnerKey) {
			return fmt.Errorf(
				"%w: input %d: fingerprint does not match commitment", ErrInvalidProof, i,
			)
		}
		if _, ok := seen[in.Fingerprint]; ok {
			return fmt.Errorf("%w: input %s spent twice", ErrInvalidProof, in.Fingerprint)
		}
		seen[in.Fingerprint] = struct{}{}
	}
	for i, out := range t.Outputs {
		if len(out.Commitment) <= 0 || len(out.OwnerKey) <= 0 {
			return fmt.Errorf("%w: output %d is incomplete", ErrInvalidProof, i)
		}
		fp := out.Fingerprint()
		if _, ok := seen[fp]; ok {
			return fmt.Errorf("%w: duplicated output %s", ErrInvalidProof, fp)
		}
		seen[fp] = struct{}{}
	}
	return nil
}

// Serialize returns the canonical encoding of the whole transaction.
func (t CandidateTransaction) Serialize() []byte {
	b := t.body()
	b = appendBytesField(b, 3, t.BalanceProof)
	for _, sig := range t.OwnerSignatures {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, sig)
	}
	return b
}

// DeserializeTransaction is the inverse of CandidateTransaction.Serialize.
func DeserializeTransaction(buf []byte) (*CandidateTransaction, error) {
	tx := &CandidateTransaction{}
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, _ uint64,
	) error {
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		switch num {
		case 1:
			in, err := deserializeInput(raw)
			if err != nil {
				return err
			}
			tx.Inputs = append(tx.Inputs, *in)
		case 2:
			out, err := deserializeOutput(raw)
			if err != nil {
				return err
			}
			tx.Outputs = append(tx.Outputs, *out)
		case 3:
			tx.BalanceProof = cloneBytes(raw)
		case 4:
			tx.OwnerSignatures = append(tx.OwnerSignatures, cloneBytes(raw))
		default:
			return unknownField(num)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (t CandidateTransaction) body() []byte {
	var b []byte
	for _, in := range t.Inputs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, in.serialize())
	}
	for _, out := range t.Outputs {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, out.serialize())
	}
	return b
}

func (i Input) serialize() []byte {
	var b []byte
	b = appendStringField(b, 1, string(i.Fingerprint))
	b = appendBytesField(b, 2, i.Commitment)
	b = appendBytesField(b, 3, i.OwnerKey)
	return b
}

func deserializeInput(buf []byte) (*Input, error) {
	in := &Input{}
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, _ uint64,
	) error {
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		switch num {
		case 1:
			in.Fingerprint = Fingerprint(raw)
		case 2:
			in.Commitment = cloneBytes(raw)
		case 3:
			in.OwnerKey = cloneBytes(raw)
		default:
			return unknownField(num)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return in, nil
}

func (o Output) serialize() []byte {
	var b []byte
	b = appendBytesField(b, 1, o.Commitment)
	b = appendBytesField(b, 2, o.OwnerKey)
	b = appendBoolField(b, 3, o.Bearer)
	b = appendBytesField(b, 4, o.Ephemeral)
	b = appendBytesField(b, 5, o.Ciphertext)
	return b
}

func deserializeOutput(buf []byte) (*Output, error) {
	out := &Output{}
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, v uint64,
	) error {
		if num == 3 {
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return err
			}
			out.Bearer = v != 0
			return nil
		}
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		switch num {
		case 1:
			out.Commitment = cloneBytes(raw)
		case 2:
			out.OwnerKey = cloneBytes(raw)
		case 4:
			out.Ephemeral = cloneBytes(raw)
		case 5:
			out.Ciphertext = cloneBytes(raw)
		default:
			return unknownField(num)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
