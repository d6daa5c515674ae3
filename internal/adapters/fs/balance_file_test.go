package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingSnapshot(t *testing.T) {
	r := NewBalanceFile(t.TempDir())

	balance, ok, err := r.Load()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, balance)
}

func TestSaveThenLoad(t *testing.T) {
	r := NewBalanceFile(t.TempDir())

	require.NoError(t, r.Save(95000))

	balance, ok, err := r.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(95000), balance)
}

func TestSaveOverwrites(t *testing.T) {
	r := NewBalanceFile(t.TempDir())

	require.NoError(t, r.Save(100000))
	require.NoError(t, r.Save(42))

	balance, ok, err := r.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), balance)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	r := NewBalanceFile(dir)
	require.NoError(t, r.Save(7))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, balanceFileName, entries[0].Name())
	assert.Equal(t, filepath.Ext(entries[0].Name()), ".json")
}

func TestLoadCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, balanceFileName), []byte("{not json"), 0o600))

	r := NewBalanceFile(dir)
	_, _, err := r.Load()
	require.Error(t, err)
}
