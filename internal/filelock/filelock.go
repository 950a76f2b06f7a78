package filelock

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrNotAcquired is returned when the lock could not be taken before the timeout.
var ErrNotAcquired = errors.New("file lock not acquired")

const (
	DefaultTimeout       = 5 * time.Second
	DefaultRetryInterval = 50 * time.Millisecond
)

// Locker hands out advisory locks guarding store files. The lock for
// "dadosend.json" lives in "dadosend.json.lock" next to it.
type Locker struct {
	timeout       time.Duration
	retryInterval time.Duration
}

// Lock is a held advisory lock.
type Lock struct {
	fl   *flock.Flock
	path string
}

// NewLocker creates a locker. Non-positive values fall back to the defaults.
func NewLocker(timeout, retryInterval time.Duration) *Locker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retryInterval <= 0 {
		retryInterval = DefaultRetryInterval
	}
	return &Locker{timeout: timeout, retryInterval: retryInterval}
}

// LockPath returns the lock file used for path.
func LockPath(path string) string {
	return path + ".lock"
}

// Acquire blocks until the lock for path is held, the timeout expires or ctx is done.
func (l *Locker) Acquire(ctx context.Context, path string) (*Lock, error) {
	lockPath := LockPath(path)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create lock directory for %s", path)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, l.retryInterval)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, errors.Wrapf(err, "failed to lock %s", lockPath)
	}
	if !locked {
		log.Warn().Str("path", path).Dur("timeout", l.timeout).Msg("Lock not acquired")
		return nil, errors.Wrapf(ErrNotAcquired, "%s", path)
	}
	return &Lock{fl: fl, path: path}, nil
}

// With runs fn while holding the lock for path.
func (l *Locker) With(ctx context.Context, path string, fn func() error) error {
	lock, err := l.Acquire(ctx, path)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn()
}

// Release drops the lock. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrapf(err, "failed to unlock %s", l.path)
	}
	l.fl = nil
	return nil
}
