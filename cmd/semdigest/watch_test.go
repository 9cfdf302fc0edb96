package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

func TestDebounce_CoalescesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "semdigest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Add(dir))

	changes := debounce(t.Context(), w, path, 100*time.Millisecond, quietLogger())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('b' + i)}, 0o644))
	}

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change signalled")
	}

	select {
	case <-changes:
		t.Fatal("burst signalled more than once")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatch_RequiresConfigPath(t *testing.T) {
	require.Error(t, watch(t.Context(), runOptions{}, quietLogger()))
}
