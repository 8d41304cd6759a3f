package application_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/infrastructure/crypto/pedersen"
)

func TestEndToEnd(t *testing.T) {
	cluster := newTestClusterWithCrypto(t, pedersen.NewService(), 3, 2)
	alice := cluster.newWallet(t)
	bob := cluster.newWallet(t)

	issued, err := alice.IssueGenesis(ctx)
	require.NoError(t, err)
	require.Len(t, issued.Deposited, 1)

	bobKey := newWalletKey(t, bob)
	sent, err := alice.Send(
		ctx, []application.OutputRequest{{Amount: 250000, OwnerKey: bobKey}}, nil,
	)
	require.NoError(t, err)
	require.Len(t, sent.Tokens, 2)

	// Tokens travel as text.
	token, err := domain.DecodeTokenText(sent.Tokens[0].EncodeText())
	require.NoError(t, err)
	entry, err := bob.Deposit(ctx, token, "")
	require.NoError(t, err)
	require.Equal(t, uint64(250000), entry.Amount)

	balance, err := alice.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, genesisAmount-250000, balance)

	// Replaying the genesis spend is rejected by the nodes.
	built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
	_, err = cluster.coordinator(t).Submit(ctx, built.Request(), nil)
	var dsErr *domain.DoubleSpendError
	require.True(t, errors.As(err, &dsErr))
	require.Equal(t, issued.TxID, dsErr.ConflictingTxID)

	// A tampered amount doesn't open the commitment.
	forged, err := domain.DecodeTokenText(sent.Tokens[0].EncodeText())
	require.NoError(t, err)
	forged.Output.Commitment = sent.Tokens[1].Output.Commitment
	_, err = bob.Deposit(ctx, forged, "")
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}
