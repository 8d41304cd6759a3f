package dbbadger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/core/domain"
	dbbadger "github.com/tdex-network/spentbook/internal/infrastructure/storage/db/badger"
)

var ctx = context.Background()

func TestSpendRecordRepository(t *testing.T) {
	t.Run("InMemory", testSpendRecordRepository(""))
	t.Run("OnDisk", testSpendRecordRepository(t.TempDir()))
	t.Run("Reopen", testReopen())
	t.Run("ConcurrentWrites", testConcurrentWrites(t.TempDir()))
}

func testSpendRecordRepository(dir string) func(*testing.T) {
	return func(t *testing.T) {
		repo := newTestRepository(t, dir)
		defer repo.Close()

		fps := testFingerprints(3)
		err := repo.AddSpendRecords(ctx, []domain.SpendRecord{
			{Fingerprint: fps[0], TxID: "tx1", NodeID: "node", Signature: []byte{1}},
			{Fingerprint: fps[1], TxID: "tx1", NodeID: "node", Signature: []byte{2}},
		})
		require.NoError(t, err)

		found, err := repo.GetSpendRecords(ctx, []domain.Fingerprint{fps[0], fps[2]})
		require.NoError(t, err)
		require.Len(t, found, 1)
		require.Equal(t, "tx1", found[fps[0]].TxID)
		require.Equal(t, []byte{1}, found[fps[0]].Signature)

		// A conflicting batch writes nothing.
		err = repo.AddSpendRecords(ctx, []domain.SpendRecord{
			{Fingerprint: fps[2], TxID: "tx2", NodeID: "node"},
			{Fingerprint: fps[1], TxID: "tx2", NodeID: "node"},
		})
		require.ErrorIs(t, err, domain.ErrSpendRecordExists)

		found, err = repo.GetSpendRecords(ctx, []domain.Fingerprint{fps[2]})
		require.NoError(t, err)
		require.Empty(t, found)

		all, err := repo.GetAllSpendRecords(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.True(t, all[0].Fingerprint < all[1].Fingerprint)
	}
}

func testReopen() func(*testing.T) {
	return func(t *testing.T) {
		dir := t.TempDir()
		fps := testFingerprints(1)

		repo := newTestRepository(t, dir)
		err := repo.AddSpendRecords(ctx, []domain.SpendRecord{
			{Fingerprint: fps[0], TxID: "tx1", NodeID: "node", Timestamp: 1234},
		})
		require.NoError(t, err)
		repo.Close()

		_, err = repo.GetAllSpendRecords(ctx)
		require.ErrorIs(t, err, dbbadger.ErrStoreClosed)

		repo = newTestRepository(t, dir)
		defer repo.Close()

		all, err := repo.GetAllSpendRecords(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		require.Equal(t, int64(1234), all[0].Timestamp)
	}
}

func testConcurrentWrites(dir string) func(*testing.T) {
	return func(t *testing.T) {
		repo := newTestRepository(t, dir)
		defer repo.Close()

		fps := testFingerprints(21)
		shared := fps[20]

		var (
			wg       sync.WaitGroup
			lock     sync.Mutex
			accepted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				err := repo.AddSpendRecords(ctx, []domain.SpendRecord{
					{Fingerprint: fps[i], TxID: fmt.Sprintf("tx%d", i), NodeID: "node"},
				})
				assert.NoError(t, err)
			}(i)
			go func(i int) {
				defer wg.Done()
				err := repo.AddSpendRecords(ctx, []domain.SpendRecord{
					{Fingerprint: shared, TxID: fmt.Sprintf("shared%d", i), NodeID: "node"},
				})
				if err != nil {
					assert.ErrorIs(t, err, domain.ErrSpendRecordExists)
					return
				}
				lock.Lock()
				accepted++
				lock.Unlock()
			}(i)
		}
		wg.Wait()

		require.Equal(t, 1, accepted)
		all, err := repo.GetAllSpendRecords(ctx)
		require.NoError(t, err)
		require.Len(t, all, 21)
	}
}

func newTestRepository(t *testing.T, dir string) domain.SpendRecordRepository {
	db, err := dbbadger.NewDbManager(dir, nil)
	require.NoError(t, err)
	return dbbadger.NewSpendRecordRepositoryImpl(db)
}

func testFingerprints(n int) []domain.Fingerprint {
	fps := make([]domain.Fingerprint, 0, n)
	for i := 0; i < n; i++ {
		fps = append(fps, domain.NewFingerprint(
			[]byte(fmt.Sprintf("commitment%d", i)), []byte(fmt.Sprintf("key%d", i)),
		))
	}
	return fps
}
