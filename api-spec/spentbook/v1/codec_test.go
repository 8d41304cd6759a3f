package spentbookv1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodec(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)

	t.Run("SpendRequest", func(t *testing.T) {
		in := &SpendRequest{
			Transaction: []byte{1, 2, 3},
			InputTokens: [][]byte{{4}, {}, {5, 6}},
		}
		buf, err := c.Marshal(in)
		require.NoError(t, err)

		out := &SpendRequest{}
		require.NoError(t, c.Unmarshal(buf, out))
		require.Equal(t, in.Transaction, out.Transaction)
		require.Len(t, out.InputTokens, 3)
		require.Equal(t, []byte{4}, out.InputTokens[0])
		require.Empty(t, out.InputTokens[1])
		require.Equal(t, []byte{5, 6}, out.InputTokens[2])
	})

	t.Run("SpendReply", func(t *testing.T) {
		in := &SpendReply{Attestations: []Attestation{
			{Fingerprint: "aa", TxID: "tx", NodeID: "n1", Timestamp: 1700000000, Signature: []byte{9}},
			{Fingerprint: "bb", TxID: "tx", NodeID: "n1", Timestamp: 1700000001, Signature: []byte{8}},
		}}
		buf, err := c.Marshal(in)
		require.NoError(t, err)

		out := &SpendReply{}
		require.NoError(t, c.Unmarshal(buf, out))
		require.Equal(t, in, out)
	})

	t.Run("Rejection", func(t *testing.T) {
		in := &SpendReply{Rejection: &Rejection{
			Reason: "DoubleSpendRejected", Fingerprint: "aa", ConflictingTxID: "winner",
		}}
		buf, err := c.Marshal(in)
		require.NoError(t, err)

		out := &SpendReply{}
		require.NoError(t, c.Unmarshal(buf, out))
		require.Empty(t, out.Attestations)
		require.Equal(t, in.Rejection, out.Rejection)
	})

	t.Run("Info", func(t *testing.T) {
		in := &InfoReply{
			NodeID: "n1", Status: "Listening", Peers: []string{"a@h:1", "b@h:2"}, QuorumSize: 2,
		}
		buf, err := c.Marshal(in)
		require.NoError(t, err)

		out := &InfoReply{}
		require.NoError(t, c.Unmarshal(buf, out))
		require.Equal(t, in, out)

		buf, err = c.Marshal(&InfoRequest{})
		require.NoError(t, err)
		require.Empty(t, buf)
		require.NoError(t, c.Unmarshal(buf, &InfoRequest{}))
	})

	t.Run("UnknownFieldsIgnored", func(t *testing.T) {
		buf := protowire.AppendTag(nil, 15, protowire.Fixed32Type)
		buf = protowire.AppendFixed32(buf, 7)
		buf = protowire.AppendTag(buf, 1, protowire.BytesType)
		buf = protowire.AppendString(buf, "n1")

		out := &InfoReply{}
		require.NoError(t, c.Unmarshal(buf, out))
		require.Equal(t, "n1", out.NodeID)
	})

	t.Run("Malformed", func(t *testing.T) {
		require.ErrorIs(t, c.Unmarshal([]byte{0x0a, 0x05, 0x01}, &SpendRequest{}), ErrMalformedMessage)

		wrongType := protowire.AppendTag(nil, 1, protowire.VarintType)
		wrongType = protowire.AppendVarint(wrongType, 1)
		require.ErrorIs(t, c.Unmarshal(wrongType, &SpendRequest{}), ErrMalformedMessage)

		_, err := c.Marshal(struct{}{})
		require.ErrorIs(t, err, ErrUnknownMessage)
	})
}
