package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")

	require.NoError(t, AtomicWriteFile(path, []byte("first"), 0644))
	require.NoError(t, AtomicWriteFile(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestHashHexIsStable(t *testing.T) {
	require.Equal(t, HashHex([]byte("flake")), HashHex([]byte("flake")))
	require.NotEqual(t, HashHex([]byte("flake")), HashHex([]byte("lake")))
	require.Len(t, HashHex(nil), 64)
}

func TestShortHash(t *testing.T) {
	digest := HashHex([]byte("flake"))
	require.Len(t, ShortHash(digest), 16)
	require.Equal(t, "abc", ShortHash("abc"))
}
