package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidProof is returned when a transaction is malformed or its balance
	// proof does not verify. It is never worth retrying, the transaction must
	// be rebuilt.
	ErrInvalidProof = errors.New("invalid transaction proof")
	// ErrDoubleSpendRejected is returned when a conflicting transaction already
	// spent one of the inputs.
	ErrDoubleSpendRejected = errors.New("double spend rejected")
	// ErrQuorumUnreachable is returned when not enough spentbook nodes attested
	// a spend. Retrying the identical transaction is safe.
	ErrQuorumUnreachable = errors.New("quorum unreachable")
	// ErrInsufficientFunds ...
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnbalancedTransaction is returned when inputs exceed outputs. Any
	// leftover must be sent back with an explicit change output.
	ErrUnbalancedTransaction = errors.New("inputs amount exceeds outputs amount, add a change output")
	// ErrInvalidRecipientKey ...
	ErrInvalidRecipientKey = errors.New("invalid recipient public key")
	// ErrNoInputsSelected ...
	ErrNoInputsSelected = errors.New("no inputs selected")
	// ErrNoOutputsRequested ...
	ErrNoOutputsRequested = errors.New("no outputs requested")
	// ErrInvalidAmount ...
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrAmountOverflow ...
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrLedgerUnavailable is returned when a node can't read or write its spend
	// ledger. A node in this state must stop attesting.
	ErrLedgerUnavailable = errors.New("spend ledger unavailable")
	// ErrNodeNotReady is returned by a node that did not finish loading its
	// ledger yet.
	ErrNodeNotReady = errors.New("spentbook node not ready")
	// ErrSpendRecordExists is returned by a repository asked to overwrite a
	// stored spend record.
	ErrSpendRecordExists = errors.New("spend record already exists")

	// ErrInvalidToken is returned when a token's quorum proof does not verify.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotOwnedByMe is returned when depositing an owned token whose key is not
	// held by the wallet.
	ErrNotOwnedByMe = errors.New("token is not owned by any wallet key")
	// ErrWalletUnavailable is returned when the wallet file can't be read.
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrKeyNotFound ...
	ErrKeyNotFound = errors.New("key not found")
	// ErrEntryNotFound ...
	ErrEntryNotFound = errors.New("wallet entry not found")
	// ErrEntryAlreadySpent ...
	ErrEntryAlreadySpent = errors.New("wallet entry already spent")
	// ErrEntryLocked is returned when trying to spend an entry that is input of
	// a pending submission. Only the identical transaction can be retried.
	ErrEntryLocked = errors.New("wallet entry is locked by a pending submission")
	// ErrPendingSpendNotFound ...
	ErrPendingSpendNotFound = errors.New("pending submission not found")

	// ErrInvalidQuorumSize ...
	ErrInvalidQuorumSize = errors.New("quorum size must be between 1 and the number of peers")
	// ErrInvalidPeer ...
	ErrInvalidPeer = errors.New("invalid peer, must be in the form <pubkey>@<host:port>")
	// ErrDuplicatedPeer ...
	ErrDuplicatedPeer = errors.New("duplicated peer")
	// ErrInvalidFingerprint ...
	ErrInvalidFingerprint = errors.New("invalid fingerprint")

	// ErrUnsupportedTokenVersion ...
	ErrUnsupportedTokenVersion = errors.New("unsupported token version")
	// ErrMalformedToken ...
	ErrMalformedToken = errors.New("malformed token")
	// ErrMalformedEncoding ...
	ErrMalformedEncoding = errors.New("malformed encoding")
)

// DoubleSpendError carries the winning transaction of a rejected spend.
type DoubleSpendError struct {
	Fingerprint     Fingerprint
	ConflictingTxID string
}

func (e *DoubleSpendError) Error() string {
	return fmt.Sprintf(
		"%s: input %s already spent by tx %s",
		ErrDoubleSpendRejected, e.Fingerprint, e.ConflictingTxID,
	)
}

func (e *DoubleSpendError) Is(target error) bool {
	return target == ErrDoubleSpendRejected
}

// InsufficientFundsError reports the shortfall of a spend.
type InsufficientFundsError struct {
	Available uint64
	Requested uint64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf(
		"%s: requested %d, available %d (shortfall %d)",
		ErrInsufficientFunds, e.Requested, e.Available, e.Shortfall(),
	)
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Shortfall returns how much is missing to cover the requested amount.
func (e *InsufficientFundsError) Shortfall() uint64 {
	if e.Requested <= e.Available {
		return 0
	}
	return e.Requested - e.Available
}

// QuorumUnreachableError reports, for every input, how many distinct nodes
// attested the spend when the submission gave up.
type QuorumUnreachableError struct {
	QuorumSize int
	Reached    map[Fingerprint]int
}

func (e *QuorumUnreachableError) Error() string {
	fps := make([]string, 0, len(e.Reached))
	for fp := range e.Reached {
		fps = append(fps, string(fp))
	}
	sort.Strings(fps)

	counts := make([]string, 0, len(fps))
	for _, fp := range fps {
		counts = append(counts, fmt.Sprintf("%s:%d", fp, e.Reached[Fingerprint(fp)]))
	}
	return fmt.Sprintf(
		"%s: quorum of %d not reached (%s)",
		ErrQuorumUnreachable, e.QuorumSize, strings.Join(counts, ", "),
	)
}

func (e *QuorumUnreachableError) Is(target error) bool {
	return target == ErrQuorumUnreachable
}
