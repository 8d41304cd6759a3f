package spentbookv1

import "google.golang.org/protobuf/encoding/protowire"

// SpendRequest asks a node to record the inputs of a transaction as spent.
type SpendRequest struct {
	// Transaction is the canonical encoding of the candidate transaction.
	Transaction []byte
	// InputTokens are the serialized tokens consumed, in input order.
	InputTokens [][]byte
}

func (m *SpendRequest) marshal() []byte {
	var b []byte
	b = appendBytesField(b, 1, m.Transaction)
	for _, t := range m.InputTokens {
		b = appendRepeatedBytes(b, 2, t)
	}
	return b
}

func (m *SpendRequest) unmarshal(buf []byte) error {
	*m = SpendRequest{}
	return consumeFields(buf, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.bytes(num)
			m.Transaction = v
			return err
		case 2:
			v, err := f.bytes(num)
			m.InputTokens = append(m.InputTokens, v)
			return err
		}
		return nil
	})
}

// Attestation ...
type Attestation struct {
	Fingerprint string
	TxID        string
	NodeID      string
	Timestamp   int64
	Signature   []byte
}

func (m *Attestation) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.Fingerprint)
	b = appendStringField(b, 2, m.TxID)
	b = appendStringField(b, 3, m.NodeID)
	b = appendVarintField(b, 4, uint64(m.Timestamp))
	b = appendBytesField(b, 5, m.Signature)
	return b
}

func (m *Attestation) unmarshal(buf []byte) error {
	*m = Attestation{}
	return consumeFields(buf, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case 1:
			m.Fingerprint, err = f.string(num)
		case 2:
			m.TxID, err = f.string(num)
		case 3:
			m.NodeID, err = f.string(num)
		case 4:
			var v uint64
			v, err = f.varint(num)
			m.Timestamp = int64(v)
		case 5:
			m.Signature, err = f.bytes(num)
		}
		return err
	})
}

// Rejection is set in place of attestations when the node refuses the spend.
type Rejection struct {
	// Reason is either InvalidProof or DoubleSpendRejected.
	Reason          string
	Fingerprint     string
	ConflictingTxID string
	Message         string
}

func (m *Rejection) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.Reason)
	b = appendStringField(b, 2, m.Fingerprint)
	b = appendStringField(b, 3, m.ConflictingTxID)
	b = appendStringField(b, 4, m.Message)
	return b
}

func (m *Rejection) unmarshal(buf []byte) error {
	*m = Rejection{}
	return consumeFields(buf, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case 1:
			m.Reason, err = f.string(num)
		case 2:
			m.Fingerprint, err = f.string(num)
		case 3:
			m.ConflictingTxID, err = f.string(num)
		case 4:
			m.Message, err = f.string(num)
		}
		return err
	})
}

// SpendReply ...
type SpendReply struct {
	Attestations []Attestation
	Rejection    *Rejection
}

func (m *SpendReply) marshal() []byte {
	var b []byte
	for i := range m.Attestations {
		b = appendRepeatedBytes(b, 1, m.Attestations[i].marshal())
	}
	if m.Rejection != nil {
		b = appendRepeatedBytes(b, 2, m.Rejection.marshal())
	}
	return b
}

func (m *SpendReply) unmarshal(buf []byte) error {
	*m = SpendReply{}
	return consumeFields(buf, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			raw, err := f.bytes(num)
			if err != nil {
				return err
			}
			var att Attestation
			if err := att.unmarshal(raw); err != nil {
				return err
			}
			m.Attestations = append(m.Attestations, att)
		case 2:
			raw, err := f.bytes(num)
			if err != nil {
				return err
			}
			m.Rejection = &Rejection{}
			return m.Rejection.unmarshal(raw)
		}
		return nil
	})
}

// InfoRequest ...
type InfoRequest struct{}

func (m *InfoRequest) marshal() []byte {
	return nil
}

func (m *InfoRequest) unmarshal(buf []byte) error {
	return consumeFields(buf, func(protowire.Number, field) error {
		return nil
	})
}

// InfoReply ...
type InfoReply struct {
	NodeID     string
	Status     string
	Peers      []string
	QuorumSize int
}

func (m *InfoReply) marshal() []byte {
	var b []byte
	b = appendStringField(b, 1, m.NodeID)
	b = appendStringField(b, 2, m.Status)
	for _, p := range m.Peers {
		b = appendRepeatedBytes(b, 3, []byte(p))
	}
	b = appendVarintField(b, 4, uint64(m.QuorumSize))
	return b
}

func (m *InfoReply) unmarshal(buf []byte) error {
	*m = InfoReply{}
	return consumeFields(buf, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			v, err := f.string(num)
			m.NodeID = v
			return err
		case 2:
			v, err := f.string(num)
			m.Status = v
			return err
		case 3:
			v, err := f.string(num)
			m.Peers = append(m.Peers, v)
			return err
		case 4:
			v, err := f.varint(num)
			m.QuorumSize = int(v)
			return err
		}
		return nil
	})
}
