package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SpendRequest is what a wallet submits to every spentbook node: the
// candidate transaction and the tokens it consumes, in input order.
type SpendRequest struct {
	Transaction *CandidateTransaction
	InputTokens []Token
}

// TxID ...
func (r SpendRequest) TxID() string {
	return r.Transaction.ID()
}

// RejectionReason ...
type RejectionReason int

const (
	RejectionNone RejectionReason = iota
	RejectionInvalidProof
	RejectionDoubleSpend
)

func (r RejectionReason) String() string {
	switch r {
	case RejectionInvalidProof:
		return "InvalidProof"
	case RejectionDoubleSpend:
		return "DoubleSpendRejected"
	default:
		return "None"
	}
}

// ParseRejectionReason is the inverse of RejectionReason.String.
func ParseRejectionReason(str string) (RejectionReason, error) {
	for _, r := range []RejectionReason{RejectionInvalidProof, RejectionDoubleSpend} {
		if r.String() == str {
			return r, nil
		}
	}
	return RejectionNone, fmt.Errorf("unknown rejection reason %q", str)
}

// Rejection is the negative outcome of a spend request.
type Rejection struct {
	Reason          RejectionReason
	Fingerprint     Fingerprint
	ConflictingTxID string
	Message         string
}

// Err returns the error matching the rejection.
func (r Rejection) Err() error {
	switch r.Reason {
	case RejectionDoubleSpend:
		return &DoubleSpendError{
			Fingerprint:     r.Fingerprint,
			ConflictingTxID: r.ConflictingTxID,
		}
	case RejectionInvalidProof:
		if r.Message == "" {
			return ErrInvalidProof
		}
		return fmt.Errorf("%w: %s", ErrInvalidProof, r.Message)
	default:
		return nil
	}
}

// NewRejection converts the given error into a rejection, if it is a protocol
// outcome.
func NewRejection(err error) (*Rejection, bool) {
	var dsErr *DoubleSpendError
	if errors.As(err, &dsErr) {
		return &Rejection{
			Reason:          RejectionDoubleSpend,
			Fingerprint:     dsErr.Fingerprint,
			ConflictingTxID: dsErr.ConflictingTxID,
		}, true
	}
	if errors.Is(err, ErrInvalidProof) {
		msg := strings.TrimPrefix(err.Error(), ErrInvalidProof.Error())
		msg = strings.TrimPrefix(msg, ": ")
		return &Rejection{Reason: RejectionInvalidProof, Message: msg}, true
	}
	return nil, false
}

// SpendReply is the answer of a node: either one attestation per input, in
// input order, or a rejection.
type SpendReply struct {
	Attestations []Attestation
	Rejection    *Rejection
}

// NodeInfo describes a spentbook node.
type NodeInfo struct {
	NodeID     string
	Status     string
	Membership Membership
}
