package lock

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	l := New(path, time.Second)
	require.NoError(t, l.Acquire())
	require.True(t, l.Held())

	l.Release()
	require.False(t, l.Held())

	// Reacquire after release.
	require.NoError(t, l.Acquire())
	l.Release()
}

func TestAcquireTwiceSameProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	l := New(path, time.Second)
	require.NoError(t, l.Acquire())
	defer l.Release()

	require.Error(t, l.Acquire())
}

func TestContentionSurfacesBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := New(path, time.Second)
	require.NoError(t, first.Acquire())
	defer first.Release()

	// A second holder with a small wait budget must give up with ErrBusy
	// rather than hang. Separate FileLock values model separate processes;
	// flock is per file description, not per process.
	second := New(path, 50*time.Millisecond)
	err := second.Acquire()
	require.ErrorIs(t, err, ErrBusy)
	require.False(t, second.Held())
}

func TestLockFreedAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	first := New(path, time.Second)
	require.NoError(t, first.Acquire())
	first.Release()

	second := New(path, 50*time.Millisecond)
	require.NoError(t, second.Acquire())
	second.Release()
}
