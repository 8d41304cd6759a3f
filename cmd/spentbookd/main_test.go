package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/spentbook/internal/infrastructure/crypto/pedersen"
)

func TestLoadOrCreateNodeKey(t *testing.T) {
	crypto := pedersen.NewService()
	path := filepath.Join(t.TempDir(), "node.key")

	priv, id, err := loadOrCreateNodeKey(crypto, path)
	require.NoError(t, err)
	require.Len(t, id, 66)

	loadedPriv, loadedID, err := loadOrCreateNodeKey(crypto, path)
	require.NoError(t, err)
	require.Equal(t, priv, loadedPriv)
	require.Equal(t, id, loadedID)
}
