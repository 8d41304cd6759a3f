package domain

import (
	"encoding/hex"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	tagFingerprint = []byte("spentbook/fingerprint")
	tagTransaction = []byte("spentbook/transaction")
	tagAttestation = []byte("spentbook/attestation")
)

// Fingerprint uniquely identifies a spendable output. It is derived from the
// output commitment and its owner key, hence it is immutable.
type Fingerprint string

// NewFingerprint derives the fingerprint of an output.
func NewFingerprint(commitment, ownerKey []byte) Fingerprint {
	h := chainhash.TaggedHash(tagFingerprint, commitment, ownerKey)
	return Fingerprint(hex.EncodeToString(h[:]))
}

// Validate checks the fingerprint is a 32-byte hex string.
func (f Fingerprint) Validate() error {
	buf, err := hex.DecodeString(string(f))
	if err != nil || len(buf) != chainhash.HashSize {
		return ErrInvalidFingerprint
	}
	return nil
}

func (f Fingerprint) String() string {
	return string(f)
}

// SortedFingerprints returns a sorted copy without duplicates of the given
// list.
func SortedFingerprints(fps []Fingerprint) []Fingerprint {
	seen := make(map[Fingerprint]struct{}, len(fps))
	sorted := make([]Fingerprint, 0, len(fps))
	for _, fp := range fps {
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		sorted = append(sorted, fp)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted
}
