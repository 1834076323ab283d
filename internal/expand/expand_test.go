package expand

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePages(t *testing.T, root, doc string, names ...string) {
	t.Helper()
	dir := filepath.Join(root, doc)
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("raster:"+name), 0644))
	}
}

func TestNewDirSourceValidatesRoot(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = NewDirSource(file)
	require.Error(t, err)
}

func TestExpandOrderedAndRestartable(t *testing.T) {
	root := t.TempDir()
	// Written out of order on purpose; expansion must sort.
	writePages(t, root, "aws-brief", "page-003.png", "page-001.png", "page-002.png")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := src.Expand(ctx, "aws-brief")
	require.NoError(t, err)
	require.Len(t, first, 3)
	assert.Equal(t, "page-001.png", filepath.Base(first[0]))
	assert.Equal(t, "page-002.png", filepath.Base(first[1]))
	assert.Equal(t, "page-003.png", filepath.Base(first[2]))

	second, err := src.Expand(ctx, "aws-brief")
	require.NoError(t, err)
	assert.Equal(t, first, second, "expansion is restartable")
}

func TestExpandSkipsNonRasterFiles(t *testing.T) {
	root := t.TempDir()
	writePages(t, root, "doc", "page-001.png", "notes.txt", "export.pdf")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	refs, err := src.Expand(context.Background(), "doc")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "page-001.png", filepath.Base(refs[0]))
}

func TestExpandErrors(t *testing.T) {
	root := t.TempDir()
	src, err := NewDirSource(root)
	require.NoError(t, err)

	_, err = src.Expand(context.Background(), "no-such-doc")
	assert.Error(t, err)

	_, err = src.Expand(context.Background(), "")
	assert.Error(t, err)

	// A directory with no rasters is an error, not an empty document.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	_, err = src.Expand(context.Background(), "empty")
	assert.Error(t, err)
}

func TestContent(t *testing.T) {
	root := t.TempDir()
	writePages(t, root, "doc", "page-001.png")

	src, err := NewDirSource(root)
	require.NoError(t, err)

	refs, err := src.Expand(context.Background(), "doc")
	require.NoError(t, err)

	data, err := src.Content(refs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("raster:page-001.png"), data)

	_, err = src.Content(filepath.Join(root, "doc", "missing.png"))
	assert.Error(t, err)
}
