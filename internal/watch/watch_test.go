package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingReloader struct {
	calls atomic.Int64
	err   error
}

func (r *countingReloader) Reload(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

func startWatcher(t *testing.T, dir string, match func(string) bool, r Reloader) *Watcher {
	t.Helper()
	w, err := New(dir, match, r, Options{
		Debounce: 50 * time.Millisecond,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
}

func TestWatcher_ReloadsOnMatchingChange(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{}
	w := startWatcher(t, dir, MatchPrefix("leadvault.db"), r)

	write(t, filepath.Join(dir, "leadvault.db-wal"), "x")

	assert.Eventually(t, func() bool { return w.Reloads() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{}
	startWatcher(t, dir, MatchPrefix("leadvault.db"), r)

	write(t, filepath.Join(dir, "config.json"), "{}")

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int64(0), r.calls.Load())
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{}
	w := startWatcher(t, dir, MatchAll, r)

	path := filepath.Join(dir, "data")
	for i := 0; i < 20; i++ {
		write(t, path, "burst")
	}

	assert.Eventually(t, func() bool { return w.Reloads() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.Less(t, r.calls.Load(), int64(20), "a burst of writes should collapse into few reloads")
}

func TestWatcher_ReloadErrorIsNotCounted(t *testing.T) {
	dir := t.TempDir()
	r := &countingReloader{err: errors.New("locked")}
	w := startWatcher(t, dir, MatchAll, r)

	write(t, filepath.Join(dir, "data"), "x")

	assert.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(0), w.Reloads())
}

func TestWatcher_StopsWithContext(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, MatchAll, &countingReloader{}, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit after cancel")
	}
	_ = w.Stop()
}

func TestMatchPrefix(t *testing.T) {
	m := MatchPrefix("leadvault.db")
	assert.True(t, m("leadvault.db"))
	assert.True(t, m("leadvault.db-shm"))
	assert.False(t, m("exports"))
}
