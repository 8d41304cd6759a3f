package domain_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/core/domain"
)

func TestTokenSerialization(t *testing.T) {
	t.Parallel()

	token := newTestToken()

	t.Run("binary round trip", func(t *testing.T) {
		buf := token.Serialize()
		require.Equal(t, domain.TokenVersion, buf[0])

		decoded, err := domain.DeserializeToken(buf)
		require.NoError(t, err)
		require.Equal(t, buf, decoded.Serialize())
		require.Equal(t, token.Fingerprint(), decoded.Fingerprint())
		require.Equal(t, token.TxID(), decoded.TxID())
		require.Len(t, decoded.QuorumProof, 1)
	})

	t.Run("text round trip", func(t *testing.T) {
		text := token.EncodeText()
		decoded, err := domain.DecodeTokenText(text)
		require.NoError(t, err)
		require.Equal(t, text, decoded.EncodeText())
		require.True(t, bytes.Equal(token.Serialize(), decoded.Serialize()))
	})

	t.Run("tampered text", func(t *testing.T) {
		text := []byte(token.EncodeText())
		if text[10] == 'a' {
			text[10] = 'b'
		} else {
			text[10] = 'a'
		}
		_, err := domain.DecodeTokenText(string(text))
		require.ErrorIs(t, err, domain.ErrMalformedToken)
	})

	t.Run("unsupported version", func(t *testing.T) {
		buf := token.Serialize()
		buf[0] = 99
		_, err := domain.DeserializeToken(buf)
		require.ErrorIs(t, err, domain.ErrUnsupportedTokenVersion)
	})

	t.Run("unknown field", func(t *testing.T) {
		buf := append(token.Serialize(), 0x30, 0x01)
		_, err := domain.DeserializeToken(buf)
		require.ErrorIs(t, err, domain.ErrMalformedToken)
	})

	t.Run("missing transaction", func(t *testing.T) {
		tk := newTestToken()
		tk.Transaction = nil
		_, err := domain.DeserializeToken(tk.Serialize())
		require.ErrorIs(t, err, domain.ErrMalformedToken)
	})
}

func TestTransaction(t *testing.T) {
	t.Parallel()

	t.Run("id ignores proofs", func(t *testing.T) {
		tx := newTestTransaction()
		id := tx.ID()
		tx.BalanceProof = []byte("another proof")
		tx.OwnerSignatures[0] = []byte("another signature")
		require.Equal(t, id, tx.ID())
	})

	t.Run("id covers outputs", func(t *testing.T) {
		tx := newTestTransaction()
		id := tx.ID()
		tx.Outputs[0].Commitment = []byte("other commitment")
		require.NotEqual(t, id, tx.ID())
	})

	t.Run("round trip", func(t *testing.T) {
		tx := newTestTransaction()
		decoded, err := domain.DeserializeTransaction(tx.Serialize())
		require.NoError(t, err)
		require.Equal(t, tx.Serialize(), decoded.Serialize())
		require.Equal(t, tx.ID(), decoded.ID())
	})

	t.Run("validate", func(t *testing.T) {
		require.NoError(t, newTestTransaction().Validate())

		tx := newTestTransaction()
		tx.Inputs = append(tx.Inputs, tx.Inputs[0])
		tx.OwnerSignatures = append(tx.OwnerSignatures, []byte("sig"))
		require.ErrorIs(t, tx.Validate(), domain.ErrInvalidProof)

		tx = newTestTransaction()
		tx.OwnerSignatures = nil
		require.ErrorIs(t, tx.Validate(), domain.ErrInvalidProof)

		tx = newTestTransaction()
		tx.Inputs[0].Fingerprint = domain.NewFingerprint([]byte("x"), []byte("y"))
		require.ErrorIs(t, tx.Validate(), domain.ErrInvalidProof)

		tx = newTestTransaction()
		tx.Inputs = nil
		tx.OwnerSignatures = nil
		require.ErrorIs(t, tx.Validate(), domain.ErrInvalidProof)
	})
}

func TestQuorumProof(t *testing.T) {
	t.Parallel()

	fp := domain.NewFingerprint([]byte("c"), []byte("k"))
	proof := make(domain.QuorumProof)
	require.True(t, proof.Add(domain.Attestation{Fingerprint: fp, TxID: "tx", NodeID: "b"}))
	require.True(t, proof.Add(domain.Attestation{Fingerprint: fp, TxID: "tx", NodeID: "a"}))
	require.False(t, proof.Add(domain.Attestation{Fingerprint: fp, TxID: "tx", NodeID: "a"}))
	require.Equal(t, 2, proof.Count(fp))

	other := make(domain.QuorumProof)
	other.Add(domain.Attestation{Fingerprint: fp, TxID: "tx", NodeID: "a"})
	other.Add(domain.Attestation{Fingerprint: fp, TxID: "tx", NodeID: "b"})
	require.Equal(t, proof.Serialize(), other.Serialize())
}

func TestMembership(t *testing.T) {
	t.Parallel()

	id1 := "02" + strings.Repeat("11", 32)
	id2 := "03" + strings.Repeat("22", 32)

	m, err := domain.NewMembership([]string{
		id2 + "@localhost:9002", id1 + "@localhost:9001",
	}, 2)
	require.NoError(t, err)
	sorted := m.SortedPeers()
	require.Equal(t, id1, sorted[0].ID)
	require.True(t, m.IsMember(id2))

	_, err = domain.NewMembership([]string{id1 + "@localhost:9001"}, 2)
	require.ErrorIs(t, err, domain.ErrInvalidQuorumSize)

	_, err = domain.NewMembership([]string{
		id1 + "@localhost:9001", id1 + "@localhost:9002",
	}, 1)
	require.ErrorIs(t, err, domain.ErrDuplicatedPeer)

	_, err = domain.ParsePeer("localhost:9001")
	require.ErrorIs(t, err, domain.ErrInvalidPeer)
}

func TestWalletEntry(t *testing.T) {
	t.Parallel()

	e := &domain.WalletEntry{}
	require.True(t, e.IsSpendable())
	require.NoError(t, e.Lock("tx1"))
	require.False(t, e.IsSpendable())
	require.ErrorIs(t, e.Lock("tx2"), domain.ErrEntryLocked)
	require.NoError(t, e.Spend("tx1", 10))
	require.NoError(t, e.Spend("tx1", 11))
	require.ErrorIs(t, e.Spend("tx2", 12), domain.ErrEntryAlreadySpent)
	require.Equal(t, int64(10), e.SpentAt)
}

func TestSumAmounts(t *testing.T) {
	t.Parallel()

	total, err := domain.SumAmounts(1, 2, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(6), total)

	_, err = domain.SumAmounts(^uint64(0), 1)
	require.ErrorIs(t, err, domain.ErrAmountOverflow)
}

func newTestTransaction() *domain.CandidateTransaction {
	commitment, owner := []byte("input commitment"), []byte("input owner")
	return &domain.CandidateTransaction{
		Inputs: []domain.Input{{
			Fingerprint: domain.NewFingerprint(commitment, owner),
			Commitment:  commitment,
			OwnerKey:    owner,
		}},
		Outputs: []domain.Output{
			{Commitment: []byte("out 1"), OwnerKey: []byte("owner 1"), Ciphertext: []byte("ct1")},
			{Commitment: []byte("out 2"), OwnerKey: []byte("owner 2"), Bearer: true},
		},
		BalanceProof:    []byte("proof"),
		OwnerSignatures: [][]byte{[]byte("signature")},
	}
}

func newTestToken() *domain.Token {
	tx := newTestTransaction()
	proof := make(domain.QuorumProof)
	proof.Add(domain.Attestation{
		Fingerprint: tx.Inputs[0].Fingerprint,
		TxID:        tx.ID(),
		NodeID:      "node",
		Timestamp:   1700000000000000000,
		Signature:   []byte("node signature"),
	})
	tokens := domain.AssembleTokens(tx, map[int][]byte{1: []byte("bearer")}, proof)
	return &tokens[1]
}
