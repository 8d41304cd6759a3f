package config_test

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/config"
)

func TestInitConfig(t *testing.T) {
	datadir := t.TempDir()
	t.Setenv("SPENTBOOK_DATADIR", datadir)

	t.Run("Defaults", func(t *testing.T) {
		require.NoError(t, config.InitConfig())
		require.Equal(t, 9001, config.GetInt(config.ListeningPortKey))
		require.Equal(t, config.DefaultGenesisAmount, config.GetUint64(config.GenesisAmountKey))
		require.Equal(t, filepath.Join(datadir, config.DbLocation), config.GetDbDir())
		require.DirExists(t, config.GetDbDir())
	})

	t.Run("InMemory", func(t *testing.T) {
		t.Setenv("SPENTBOOK_DB_TYPE", config.DbTypeInMemory)
		require.NoError(t, config.InitConfig())
		require.Empty(t, config.GetDbDir())
	})

	t.Run("Peers", func(t *testing.T) {
		peers := []string{
			fmt.Sprintf("02%s@localhost:9001", strings.Repeat("11", 32)),
			fmt.Sprintf("03%s@localhost:9002", strings.Repeat("22", 32)),
		}
		t.Setenv("SPENTBOOK_PEERS", strings.Join(peers, " "))
		t.Setenv("SPENTBOOK_QUORUM_SIZE", "2")
		require.NoError(t, config.InitConfig())

		membership, err := config.GetMembership()
		require.NoError(t, err)
		require.Len(t, membership.Peers, 2)
		require.Equal(t, 2, membership.QuorumSize)

		t.Setenv("SPENTBOOK_QUORUM_SIZE", "3")
		require.Error(t, config.InitConfig())
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Setenv("SPENTBOOK_DB_TYPE", "postgres")
		require.Error(t, config.InitConfig())
	})
}
