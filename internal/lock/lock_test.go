package lock_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbojanin/airsampler/internal/lock"
)

func TestFileLockSingleHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.lock")

	first := lock.NewFileLock(path)
	acquired, err := first.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	assert.True(t, first.IsHeld())

	second := lock.NewFileLock(path)
	acquired, err = second.TryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired, "second holder must be refused")
	assert.False(t, second.IsHeld())

	require.NoError(t, first.Release())
	assert.False(t, first.IsHeld())

	acquired, err = second.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired, "lock must be acquirable after release")
	require.NoError(t, second.Release())
}

func TestFileLockReacquireByHolderIsRefused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.lock")

	l := lock.NewFileLock(path)
	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	defer l.Release()

	acquired, err = l.TryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired)
}

func TestFileLockRecordsPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.lock")

	l := lock.NewFileLock(path)
	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	defer l.Release()

	pid, ok := l.HolderPID()
	require.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)
}

func TestFileLockCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "scheduler.lock")

	l := lock.NewFileLock(path)
	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, l.Release())
}

func TestFileLockReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.lock")

	l := lock.NewFileLock(path)
	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	require.True(t, acquired)
	require.NoError(t, l.Release())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryLock(t *testing.T) {
	l := lock.NewMemoryLock()

	acquired, err := l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = l.TryAcquire()
	require.NoError(t, err)
	assert.False(t, acquired)

	require.NoError(t, l.Release())

	acquired, err = l.TryAcquire()
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockReleaseUnheldIsNoop(t *testing.T) {
	l := lock.NewMemoryLock()
	require.NoError(t, l.Release())
	assert.False(t, l.IsHeld())
}
