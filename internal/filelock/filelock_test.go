package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dadosend.json")
	locker := NewLocker(200*time.Millisecond, 10*time.Millisecond)

	lock, err := locker.Acquire(context.Background(), path)
	require.NoError(t, err)
	assert.FileExists(t, LockPath(path))

	require.NoError(t, lock.Release())
	require.NoError(t, lock.Release())

	again, err := locker.Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dadosend.json")
	locker := NewLocker(100*time.Millisecond, 10*time.Millisecond)

	held, err := locker.Acquire(context.Background(), path)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = locker.Acquire(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAcquired))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWithReleasesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avisos.json")
	locker := NewLocker(100*time.Millisecond, 10*time.Millisecond)

	boom := errors.New("boom")
	err := locker.With(context.Background(), path, func() error { return boom })
	assert.Equal(t, boom, err)

	called := false
	require.NoError(t, locker.With(context.Background(), path, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
