package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("photo.JPG"))
	assert.True(t, IsSupportedImage("sub/dir/photo.png"))
	assert.False(t, IsSupportedImage("readme.txt"))
}

func TestIsSupportedArchive(t *testing.T) {
	assert.True(t, IsSupportedArchive("book.cbz"))
	assert.True(t, IsSupportedArchive("book.CBR"))
	assert.False(t, IsSupportedArchive("book.pdf"))
}

func TestEnumerateFolderFiltersAndSortsCaseInsensitively(t *testing.T) {
	root := t.TempDir()
	names := []string{"Zebra.png", "apple.jpg", "notes.txt", "Banana.JPG"}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(root, n), []byte("x"), 0o644))
	}

	entries, err := EnumerateFolder(OSWalker{}, root, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"apple.jpg", "Banana.JPG", "Zebra.png"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

func TestArchiverReaderEnumeratesZipEntries(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "book.cbz")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"003.jpg", "001.jpg", "readme.txt", "002.png"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("data-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	r, err := NewReader(zipPath)
	require.NoError(t, err)
	defer r.Close()

	entries, err := r.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"001.jpg", "002.png", "003.jpg"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})

	rc, err := r.Open("002.png")
	require.NoError(t, err)
	defer rc.Close()
	data := make([]byte, len("data-002.png"))
	n, _ := rc.Read(data)
	assert.Equal(t, "data-002.png", string(data[:n]))
}
