package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingWriter_KeepsNumberedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.log")
	w, err := NewRotatingWriter(path, 10, 2)
	require.NoError(t, err)
	defer w.Close()

	for _, line := range []string{"first-line\n", "second-line\n", "third-line\n", "fourth\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fourth\n", string(current))

	b1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "third-line\n", string(b1))

	b2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "second-line\n", string(b2))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "only two backups are kept")
}

func TestNewRotatingWriter_RotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crawler.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0o644))

	w, err := NewRotatingWriter(path, 32, 1)
	require.NoError(t, err)
	defer w.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	old, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, old, 64)
}
