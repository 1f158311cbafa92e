package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureKey_GeneratesOnceThenReuses(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)
	assert.False(t, p.KeyExists())

	first, err := EnsureKey(p)
	require.NoError(t, err)
	require.Len(t, first, historyKeySize)
	assert.True(t, p.KeyExists())

	second, err := EnsureKey(p)
	require.NoError(t, err)
	assert.Equal(t, first, second, "restart returns the same key")
}

func TestFileKeyProvider_StoresHexWithOwnerOnlyPerms(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)

	key, err := EnsureKey(p)
	require.NoError(t, err)

	path := filepath.Join(dir, historyKeyName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	// 32 bytes hex-encoded plus the trailing newline.
	assert.Len(t, raw, historyKeySize*2+1)

	got, err := p.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestFileKeyProvider_RejectsCorruptKeyFile(t *testing.T) {
	dir := t.TempDir()
	p := NewFileKeyProvider(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyKeyName), []byte("not hex\n"), 0600))

	_, err := p.GetKey()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, historyKeyName), []byte("abcd\n"), 0600))
	_, err = p.GetKey()
	assert.Error(t, err, "truncated key rejected")
}

func TestFileKeyProvider_StoreRejectsWrongSize(t *testing.T) {
	p := NewFileKeyProvider(t.TempDir())
	assert.Error(t, p.StoreKey([]byte("short")))
}
