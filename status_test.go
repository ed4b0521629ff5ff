package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresence(t *testing.T) {
	assert.Equal(t, "ok", presence(true))
	assert.Equal(t, "missing", presence(false))
}

func TestDirExists(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, dirExists(dir))
	assert.False(t, dirExists(filepath.Join(dir, "absent")))

	// A plain file does not count as a directory.
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.False(t, dirExists(file))
}
