package dataset_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-autoeval/internal/dataset"
)

func TestStreamWriterCreatesHeaderAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream", "out.csv")

	w, err := dataset.NewStreamWriter(context.Background(), path, []string{"id", "output"})
	require.NoError(t, err)

	require.NoError(t, w.Append([]string{"1", "first"}))
	require.NoError(t, w.Append([]string{"2", "with, comma"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,output\n1,first\n2,\"with, comma\"\n", string(data))

	// The lock is gone once the session closes.
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestStreamWriterAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,output\n1,kept\n"), 0o644))

	w, err := dataset.NewStreamWriter(context.Background(), path, []string{"id", "output"})
	require.NoError(t, err)
	require.NoError(t, w.Append([]string{"2", "appended"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,output", lines[0], "header is not rewritten")
	assert.Equal(t, "2,appended", lines[2])
}

func TestStreamWriterLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first, err := dataset.NewStreamWriter(context.Background(), path, []string{"id"})
	require.NoError(t, err)
	defer func() { _ = first.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = dataset.NewStreamWriter(ctx, path, []string{"id"})
	require.ErrorIs(t, err, dataset.ErrLockHeld)
}

func TestStreamWriterLockReleasedForNextSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	first, err := dataset.NewStreamWriter(context.Background(), path, []string{"id"})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := dataset.NewStreamWriter(context.Background(), path, []string{"id"})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
