package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveWritesFileAndReturnsURI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	uri, err := store.Save(context.Background(), "olx.pl/2026-08-31/failure.html", "text/html", []byte("<html>boom</html>"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	data, err := os.ReadFile(filepath.Join(dir, "olx.pl", "2026-08-31", "failure.html"))
	require.NoError(t, err)
	require.Equal(t, "<html>boom</html>", string(data))
}

func TestSaveRejectsEscapingNames(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape.html", "/abs/path.html", "."} {
		_, err := store.Save(context.Background(), name, "text/html", []byte("x"))
		require.Error(t, err, "name %q", name)
	}
}
