package grpcinterface_test

import (
	"context"
	"encoding/hex"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	spentbookv1 "github.com/tdex-network/spentbook/api-spec/spentbook/v1"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/core/ports"
	"github.com/tdex-network/spentbook/internal/infrastructure/crypto/pedersen"
	spentbookclient "github.com/tdex-network/spentbook/internal/infrastructure/spentbook-client/grpc"
	"github.com/tdex-network/spentbook/internal/infrastructure/storage/db/inmemory"
	grpcinterface "github.com/tdex-network/spentbook/internal/interfaces/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const genesisAmount = uint64(2100000000000000)

var ctx = context.Background()

func TestSpentbookInterface(t *testing.T) {
	crypto := pedersen.NewService()
	nodeKey, nodePub, err := crypto.NewKey()
	require.NoError(t, err)

	peer := domain.Peer{ID: hex.EncodeToString(nodePub), Address: "bufnet:9001"}
	membership := domain.Membership{Peers: []domain.Peer{peer}, QuorumSize: 1}
	verifier, err := application.NewTokenVerifier(crypto, membership, genesisAmount)
	require.NoError(t, err)

	ledger, err := application.NewSpendLedger(
		inmemory.NewSpendRecordRepositoryImpl(), crypto, nodeKey,
	)
	require.NoError(t, err)
	svc := application.NewSpentbookService(ledger, verifier, nil)

	lis := bufconn.Listen(1 << 20)
	server := grpcinterface.NewServer(svc, 100)
	go server.Serve(lis)
	defer server.Stop()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	factory := spentbookclient.NewFactory(dialer)
	defer factory.Close()

	client, err := factory.Client(peer)
	require.NoError(t, err)

	t.Run("NotReady", func(t *testing.T) {
		built := buildGenesisSpend(t, crypto, verifier)
		_, err := client.Spend(ctx, built.Request())
		require.Error(t, err)
		require.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	})

	require.NoError(t, svc.Start(ctx))

	t.Run("Info", func(t *testing.T) {
		info, err := client.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, peer.ID, info.NodeID)
		require.Equal(t, application.NodeListening.String(), info.Status)
		require.Equal(t, 1, info.Membership.QuorumSize)
		require.Equal(t, []domain.Peer{peer}, info.Membership.Peers)
	})

	var issued *application.SendResult
	t.Run("WalletOverGrpc", func(t *testing.T) {
		wallet := application.NewWalletService(
			inmemory.NewWalletRepositoryImpl(),
			crypto,
			verifier,
			application.NewTransactionBuilder(crypto),
			application.NewQuorumCoordinator(factory, verifier, time.Second),
			genesisAmount,
		)
		issued, err = wallet.IssueGenesis(ctx)
		require.NoError(t, err)

		balance, err := wallet.Balance(ctx)
		require.NoError(t, err)
		require.Equal(t, genesisAmount, balance)
	})

	t.Run("DoubleSpend", func(t *testing.T) {
		require.NotNil(t, issued)
		built := buildGenesisSpend(t, crypto, verifier)
		reply, err := client.Spend(ctx, built.Request())
		require.NoError(t, err)
		require.NotNil(t, reply.Rejection)
		require.Equal(t, domain.RejectionDoubleSpend, reply.Rejection.Reason)
		require.Equal(t, issued.TxID, reply.Rejection.ConflictingTxID)
		require.Equal(t, verifier.Genesis().Fingerprint(), reply.Rejection.Fingerprint)
	})

	t.Run("Idempotent", func(t *testing.T) {
		require.NotNil(t, issued)
		tx := issued.Tokens[0].Transaction
		req := domain.SpendRequest{
			Transaction: tx, InputTokens: []domain.Token{*verifier.Genesis()},
		}
		reply, err := client.Spend(ctx, req)
		require.NoError(t, err)
		require.Nil(t, reply.Rejection)
		require.Len(t, reply.Attestations, 1)
		require.Equal(t, issued.Tokens[0].QuorumProof[tx.Inputs[0].Fingerprint][0], reply.Attestations[0])
	})

	t.Run("Malformed", func(t *testing.T) {
		conn, err := grpc.Dial(
			"bufnet", dialer, grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		require.NoError(t, err)
		defer conn.Close()

		_, err = spentbookv1.NewSpentbookClient(conn).Spend(
			ctx, &spentbookv1.SpendRequest{Transaction: []byte{0xff}},
		)
		require.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = spentbookv1.NewSpentbookClient(conn).Spend(
			ctx, &spentbookv1.SpendRequest{},
		)
		require.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func buildGenesisSpend(
	t *testing.T, crypto ports.Crypto, verifier application.TokenVerifier,
) *application.BuiltTransaction {
	_, to, err := crypto.NewKey()
	require.NoError(t, err)

	secrets, owner := domain.GenesisSecrets(genesisAmount)
	built, err := application.NewTransactionBuilder(crypto).Build(
		[]application.SpendableInput{{
			Token: *verifier.Genesis(), Secrets: secrets, OwnerSecret: owner,
		}},
		[]application.OutputRequest{{Amount: genesisAmount, OwnerKey: to}},
	)
	require.NoError(t, err)
	return built
}
