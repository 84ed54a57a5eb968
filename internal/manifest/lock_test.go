package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmind-br/repocache-go/internal/domain"
)

func newTestLock(t *testing.T, opts LockOptions) *FileLock {
	t.Helper()
	return NewFileLock(filepath.Join(t.TempDir(), "manifest.lock"), opts)
}

func TestFileLock_AcquireRelease(t *testing.T) {
	l := newTestLock(t, LockOptions{})

	require.NoError(t, l.Acquire())
	_, err := os.Stat(l.Path())
	assert.NoError(t, err, "marker should exist while held")

	l.Release()
	_, err = os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err), "marker should be gone after release")
}

func TestFileLock_Acquire_RecordsHolder(t *testing.T) {
	l := newTestLock(t, LockOptions{})
	require.NoError(t, l.Acquire())
	defer l.Release()

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, string(data), "@")
}

func TestFileLock_Acquire_HeldTimesOut(t *testing.T) {
	l := newTestLock(t, LockOptions{
		StaleAfter:    time.Hour,
		RetryInterval: time.Millisecond,
		MaxAttempts:   3,
	})

	// Simulate another live holder.
	require.NoError(t, os.WriteFile(l.Path(), []byte("other\n"), 0644))

	err := l.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	var lockErr *domain.LockError
	assert.ErrorAs(t, err, &lockErr)

	// The marker is forcibly removed on exhaustion: liveness over a
	// stuck cache.
	_, statErr := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileLock_Acquire_StaleMarkerIsReclaimed(t *testing.T) {
	l := newTestLock(t, LockOptions{
		StaleAfter:    time.Minute,
		RetryInterval: time.Millisecond,
		MaxAttempts:   3,
	})

	// Pre-create a back-dated marker as if a holder crashed long ago.
	require.NoError(t, os.WriteFile(l.Path(), []byte("dead\n"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(l.Path(), old, old))

	assert.NoError(t, l.Acquire())
	l.Release()
}

func TestFileLock_Acquire_WaitsForRelease(t *testing.T) {
	l := newTestLock(t, LockOptions{
		StaleAfter:    time.Hour,
		RetryInterval: 5 * time.Millisecond,
		MaxAttempts:   100,
	})
	require.NoError(t, l.Acquire())

	second := NewFileLock(l.Path(), LockOptions{
		StaleAfter:    time.Hour,
		RetryInterval: 5 * time.Millisecond,
		MaxAttempts:   100,
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Release()
	}()

	assert.NoError(t, second.Acquire())
	second.Release()
}
