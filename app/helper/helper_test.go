package helper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mjpegplayback/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFilesFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mjpeg", "a.mjpeg", "notes.txt", "C.MJPEG"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte{0xFF, 0xD8}, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.mjpeg"), 0755))

	files, err := FetchFiles(dir, ".mjpeg")

	require.NoError(t, err)
	assert.Equal(t, []string{"C.MJPEG", "a.mjpeg", "b.mjpeg"}, files)
}

func TestFetchFilesMissingFolder(t *testing.T) {
	_, err := FetchFiles(filepath.Join(t.TempDir(), "missing"), ".mjpeg")

	assert.True(t, errors.Is(err, apperror.ServerError))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, 0.42, Truncate(0.4279, 0.01))
	assert.Equal(t, 0.0, Truncate(0.009, 0.01))
}
