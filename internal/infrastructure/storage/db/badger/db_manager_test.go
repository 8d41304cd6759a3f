package dbbadger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDbManagerClose(t *testing.T) {
	t.Run("OnDisk", func(t *testing.T) {
		db, err := NewDbManager(t.TempDir(), nil)
		require.NoError(t, err)

		require.NoError(t, db.Close())
		select {
		case <-db.gcDone:
		case <-time.After(time.Second):
			t.Fatal("value log gc still running after close")
		}
		require.NoError(t, db.Close())
	})

	t.Run("InMemory", func(t *testing.T) {
		db, err := NewDbManager("", nil)
		require.NoError(t, err)
		require.NoError(t, db.Close())
		require.NoError(t, db.Close())
	})

	t.Run("RepositoryClose", func(t *testing.T) {
		db, err := NewDbManager(t.TempDir(), nil)
		require.NoError(t, err)

		repo := NewSpendRecordRepositoryImpl(db)
		repo.Close()
		repo.Close()
		require.True(t, db.closed)
		<-db.gcDone
	})
}
