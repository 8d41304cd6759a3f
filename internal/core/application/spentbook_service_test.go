package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/core/application"
	"github.com/tdex-network/spentbook/internal/core/domain"
	"github.com/tdex-network/spentbook/internal/infrastructure/storage/db/inmemory"
)

func TestSpentbookService(t *testing.T) {
	t.Run("Attest", testAttest())
	t.Run("RejectInvalidProof", testRejectInvalidProof())
	t.Run("RejectInvalidInputToken", testRejectInvalidInputToken())
	t.Run("RejectDoubleSpend", testRejectDoubleSpend())
	t.Run("NotReady", testNodeNotReady())
	t.Run("FailClosedOnLoad", testFailClosedOnLoad())
	t.Run("FailClosedOnWrite", testFailClosedOnWrite())
}

func testAttest() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		ctx := context.Background()

		reply, err := node.service.HandleSpendRequest(ctx, built.Request())
		require.NoError(t, err)
		require.Nil(t, reply.Rejection)
		require.Len(t, reply.Attestations, 1)
		att := reply.Attestations[0]
		require.Equal(t, built.Transaction.ID(), att.TxID)
		require.Equal(t, node.id, att.NodeID)
		require.NoError(t, cluster.verifier(t).VerifyAttestation(att))

		again, err := node.service.HandleSpendRequest(ctx, built.Request())
		require.NoError(t, err)
		require.Equal(t, reply.Attestations, again.Attestations)

		info, err := node.service.Info(ctx)
		require.NoError(t, err)
		require.Equal(t, node.id, info.NodeID)
		require.Equal(t, "listening", info.Status)
	}
}

func testRejectInvalidProof() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		ctx := context.Background()

		req := built.Request()
		req.Transaction.BalanceProof = []byte("forged")
		reply, err := node.service.HandleSpendRequest(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, reply.Rejection)
		require.Equal(t, domain.RejectionInvalidProof, reply.Rejection.Reason)
		require.ErrorIs(t, reply.Rejection.Err(), domain.ErrInvalidProof)

		records, err := node.repo.GetAllSpendRecords(ctx)
		require.NoError(t, err)
		require.Empty(t, records)
	}
}

func testRejectInvalidInputToken() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		ctx := context.Background()

		// A genesis-looking token for a different amount is not the genesis.
		fake, err := application.NewGenesisToken(cluster.crypto, genesisAmount*2)
		require.NoError(t, err)
		secrets, owner := domain.GenesisSecrets(genesisAmount * 2)
		built, err := application.NewTransactionBuilder(cluster.crypto).Build(
			[]application.SpendableInput{{
				Token: *fake, Secrets: secrets, OwnerSecret: owner,
			}},
			[]application.OutputRequest{{
				Amount: genesisAmount * 2, OwnerKey: cluster.newPubKey(t),
			}},
		)
		require.NoError(t, err)

		reply, err := node.service.HandleSpendRequest(ctx, built.Request())
		require.NoError(t, err)
		require.NotNil(t, reply.Rejection)
		require.Equal(t, domain.RejectionInvalidProof, reply.Rejection.Reason)
	}
}

func testRejectDoubleSpend() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		ctx := context.Background()

		first := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		reply, err := node.service.HandleSpendRequest(ctx, first.Request())
		require.NoError(t, err)
		require.Nil(t, reply.Rejection)

		second := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		reply, err = node.service.HandleSpendRequest(ctx, second.Request())
		require.NoError(t, err)
		require.Empty(t, reply.Attestations)
		require.NotNil(t, reply.Rejection)
		require.Equal(t, domain.RejectionDoubleSpend, reply.Rejection.Reason)
		require.Equal(t, first.Transaction.ID(), reply.Rejection.ConflictingTxID)
	}
}

func testNodeNotReady() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		key, _, err := cluster.crypto.NewKey()
		require.NoError(t, err)
		ledger, err := application.NewSpendLedger(
			inmemory.NewSpendRecordRepositoryImpl(), cluster.crypto, key,
		)
		require.NoError(t, err)
		svc := application.NewSpentbookService(ledger, cluster.verifier(t), nil)

		require.Equal(t, application.NodeStarting, svc.Status())
		built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		_, err = svc.HandleSpendRequest(context.Background(), built.Request())
		require.ErrorIs(t, err, domain.ErrNodeNotReady)
	}
}

func testFailClosedOnLoad() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		ctx := context.Background()

		built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		_, err := node.service.HandleSpendRequest(ctx, built.Request())
		require.NoError(t, err)

		records, err := node.repo.GetAllSpendRecords(ctx)
		require.NoError(t, err)
		forged := records[0]
		forged.Fingerprint = randomFingerprint(42)
		require.NoError(t, node.repo.AddSpendRecords(ctx, []domain.SpendRecord{forged}))

		ledger, err := application.NewSpendLedger(node.repo, cluster.crypto, node.key)
		require.NoError(t, err)
		observer := &countingObserver{}
		svc := application.NewSpentbookService(ledger, cluster.verifier(t), observer)

		err = svc.Start(ctx)
		require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		require.Equal(t, application.NodeFailed, svc.Status())
		require.Equal(t, 1, observer.failures)
		require.ErrorIs(t, <-svc.Failures(), domain.ErrLedgerUnavailable)

		_, err = svc.HandleSpendRequest(ctx, built.Request())
		require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	}
}

func testFailClosedOnWrite() func(*testing.T) {
	return func(t *testing.T) {
		cluster := newTestCluster(t, 1, 1)
		node := cluster.nodes[0]
		ctx := context.Background()

		repo := &failingRepository{SpendRecordRepository: inmemory.NewSpendRecordRepositoryImpl()}
		ledger, err := application.NewSpendLedger(repo, cluster.crypto, node.key)
		require.NoError(t, err)
		svc := application.NewSpentbookService(ledger, cluster.verifier(t), nil)
		require.NoError(t, svc.Start(ctx))

		repo.setFailing(true)
		built := buildGenesisSpend(t, cluster, cluster.newPubKey(t))
		reply, err := svc.HandleSpendRequest(ctx, built.Request())
		require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
		require.Nil(t, reply)
		require.Equal(t, application.NodeFailed, svc.Status())
		require.ErrorIs(t, <-svc.Failures(), domain.ErrLedgerUnavailable)
	}
}

func buildGenesisSpend(
	t *testing.T, cluster *testCluster, to []byte,
) *application.BuiltTransaction {
	built, err := application.NewTransactionBuilder(cluster.crypto).Build(
		[]application.SpendableInput{cluster.genesisInput(t)},
		[]application.OutputRequest{{Amount: genesisAmount, OwnerKey: to}},
	)
	require.NoError(t, err)
	return built
}

type countingObserver struct {
	attested, rejected, loaded, failures int
}

func (o *countingObserver) OnAttested(int)      { o.attested++ }
func (o *countingObserver) OnRejected(string)   { o.rejected++ }
func (o *countingObserver) OnRecordsLoaded(int) { o.loaded++ }
func (o *countingObserver) OnLedgerFailure()    { o.failures++ }
