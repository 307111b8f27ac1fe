package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotator_RotatesWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	r, err := NewRotator(path, 0, 2)
	require.NoError(t, err)
	r.maxBytes = 10
	defer r.Close()

	_, err = r.Write([]byte("first-line\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("second\n"))
	require.NoError(t, err)
	_, err = r.Write([]byte("third\n"))
	require.NoError(t, err)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "third\n", string(current))

	backup1, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "second\n", string(backup1))

	backup2, err := os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(backup2), "first-line"))

	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "never keeps more than MaxBackups")
}

func TestRotator_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))

	r, err := NewRotator(path, 1, 1)
	require.NoError(t, err)
	_, err = r.Write([]byte("new\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old\nnew\n", string(data))
}

func TestNew_FallsBackToStdout(t *testing.T) {
	l, closer := New(Config{Level: "bogus", File: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	defer closer.Close()
	l.Info().Msg("still logs")
}

func TestRotator_NoBackupsTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	r, err := NewRotator(path, 0, 0)
	require.NoError(t, err)
	r.maxBytes = 8
	defer r.Close()

	_, _ = r.Write([]byte("aaaaaa\n"))
	_, err = r.Write([]byte("bbb\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbb\n", string(data))
	_, err = os.Stat(path + ".1")
	assert.True(t, os.IsNotExist(err))
}
