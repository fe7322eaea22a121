package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func testLimits() Limits {
	return Limits{Image: 1024, Video: 2048, File: 2048}
}

func TestCategorize(t *testing.T) {
	require.Equal(t, models.KindImage, Categorize("photo.PNG"))
	require.Equal(t, models.KindImage, Categorize("a.jpeg"))
	require.Equal(t, models.KindVideo, Categorize("clip.mp4"))
	require.Equal(t, models.KindFile, Categorize("report.pdf"))
	require.Equal(t, models.KindFile, Categorize("noext"))
}

func TestSaveAndResolve(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testLimits())

	ref, err := store.Save(context.Background(), []byte("hello"), "note.txt", "7")
	require.NoError(t, err)
	require.Equal(t, models.KindFile, ref.Category)
	require.Equal(t, "note.txt", ref.Name)
	require.True(t, strings.HasPrefix(ref.URL, "/api/files/file/7/"))
	require.True(t, strings.HasSuffix(ref.URL, "_note.txt"))

	local, err := store.Resolve(strings.TrimPrefix(ref.URL, "/api/files/"))
	require.NoError(t, err)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestSaveRejectsDisallowedExtension(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testLimits())

	_, err := store.Save(context.Background(), []byte("x"), "payload.exe", "7")
	require.ErrorIs(t, err, ErrExtensionNotAllowed)
}

func TestSaveEnforcesCategoryCeilings(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testLimits())

	_, err := store.Save(context.Background(), make([]byte, 1025), "big.png", "7")
	var sizeErr *SizeLimitError
	require.True(t, errors.As(err, &sizeErr))
	require.Equal(t, models.KindImage, sizeErr.Category)
	require.EqualValues(t, 1024, sizeErr.Limit)

	_, err = store.Save(context.Background(), make([]byte, 1025), "clip.mp4", "7")
	require.NoError(t, err)
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, testLimits())

	ref, err := store.Save(context.Background(), []byte("x"), "../../etc/passwd.txt", "7")
	require.NoError(t, err)
	require.Equal(t, "passwd.txt", ref.Name)

	entries, err := os.ReadDir(filepath.Join(dir, "file", "7"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestResolveRefusesEscape(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testLimits())

	_, err := store.Resolve("../outside.txt")
	require.Error(t, err)
}
