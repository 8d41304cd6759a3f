package domain

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"google.golang.org/protobuf/encoding/protowire"
)

// Attestation is the statement of a spentbook node that it durably recorded
// the given fingerprint as spent by the given transaction.
type Attestation struct {
	Fingerprint Fingerprint
	TxID        string
	NodeID      string
	Timestamp   int64
	Signature   []byte
}

// SpendRecord is what a node persists for every spent fingerprint. It is the
// attestation the node emitted the first time, returned as is on retries.
type SpendRecord = Attestation

// SigningMessage returns the digest the node signs.
func (a Attestation) SigningMessage() []byte {
	h := chainhash.TaggedHash(tagAttestation, a.serializeUnsigned())
	return h[:]
}

// SameContent returns whether the two attestations state the same spend.
func (a Attestation) SameContent(other Attestation) bool {
	return a.Fingerprint == other.Fingerprint &&
		a.TxID == other.TxID &&
		a.NodeID == other.NodeID
}

// Serialize returns the canonical encoding of the attestation.
func (a Attestation) Serialize() []byte {
	return appendBytesField(a.serializeUnsigned(), 5, a.Signature)
}

// DeserializeAttestation is the inverse of Attestation.Serialize.
func DeserializeAttestation(buf []byte) (*Attestation, error) {
	a := &Attestation{}
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, v uint64,
	) error {
		if num == 4 {
			if err := expectType(num, typ, protowire.VarintType); err != nil {
				return err
			}
			a.Timestamp = int64(v)
			return nil
		}
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		switch num {
		case 1:
			a.Fingerprint = Fingerprint(raw)
		case 2:
			a.TxID = string(raw)
		case 3:
			a.NodeID = string(raw)
		case 5:
			a.Signature = cloneBytes(raw)
		default:
			return unknownField(num)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a Attestation) serializeUnsigned() []byte {
	var b []byte
	b = appendStringField(b, 1, string(a.Fingerprint))
	b = appendStringField(b, 2, a.TxID)
	b = appendStringField(b, 3, a.NodeID)
	b = appendVarintField(b, 4, uint64(a.Timestamp))
	return b
}

// QuorumProof groups, per consumed input, the attestations collected from
// distinct spentbook nodes.
type QuorumProof map[Fingerprint][]Attestation

// Add appends the attestation unless one from the same node is already there.
func (p QuorumProof) Add(att Attestation) bool {
	for _, a := range p[att.Fingerprint] {
		if a.NodeID == att.NodeID {
			return false
		}
	}
	p[att.Fingerprint] = append(p[att.Fingerprint], att)
	return true
}

// Count returns how many distinct nodes attested the given fingerprint.
func (p QuorumProof) Count(fp Fingerprint) int {
	nodes := make(map[string]struct{})
	for _, a := range p[fp] {
		nodes[a.NodeID] = struct{}{}
	}
	return len(nodes)
}

// Serialize returns the canonical encoding of the proof, with fingerprints and
// attestations sorted.
func (p QuorumProof) Serialize() []byte {
	fps := make([]Fingerprint, 0, len(p))
	for fp := range p {
		fps = append(fps, fp)
	}
	fps = SortedFingerprints(fps)

	var b []byte
	for _, fp := range fps {
		atts := append([]Attestation(nil), p[fp]...)
		sort.SliceStable(atts, func(i, j int) bool {
			return atts[i].NodeID < atts[j].NodeID
		})
		for _, att := range atts {
			b = protowire.AppendTag(b, 1, protowire.BytesType)
			b = protowire.AppendBytes(b, att.Serialize())
		}
	}
	return b
}

// DeserializeQuorumProof is the inverse of QuorumProof.Serialize.
func DeserializeQuorumProof(buf []byte) (QuorumProof, error) {
	proof := make(QuorumProof)
	err := consumeFields(buf, func(
		num protowire.Number, typ protowire.Type, raw []byte, _ uint64,
	) error {
		if num != 1 {
			return unknownField(num)
		}
		if err := expectType(num, typ, protowire.BytesType); err != nil {
			return err
		}
		att, err := DeserializeAttestation(raw)
		if err != nil {
			return err
		}
		proof[att.Fingerprint] = append(proof[att.Fingerprint], *att)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proof, nil
}
