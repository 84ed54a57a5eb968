package manifest

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/quantmind-br/repocache-go/internal/domain"
)

var errLockHeld = errors.New("lock held")

// FileLock is an advisory cross-process lock built on exclusive file
// creation. The marker records the holder's identity and creation time;
// markers older than StaleAfter are presumed abandoned (a crashed
// process) and forcibly removed by the next acquirer.
type FileLock struct {
	path          string
	staleAfter    time.Duration
	retryInterval time.Duration
	maxAttempts   int
}

// LockOptions contains options for creating a file lock
type LockOptions struct {
	StaleAfter    time.Duration
	RetryInterval time.Duration
	MaxAttempts   int
}

// NewFileLock creates a lock around the marker at path
func NewFileLock(path string, opts LockOptions) *FileLock {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Minute
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 200 * time.Millisecond
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 50
	}
	return &FileLock{
		path:          path,
		staleAfter:    opts.StaleAfter,
		retryInterval: opts.RetryInterval,
		maxAttempts:   opts.MaxAttempts,
	}
}

// Path returns the marker path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire takes the lock, polling at a fixed interval for at most
// MaxAttempts tries. A stale marker is deleted and the slot retried
// within the same attempt. On exhaustion the marker is forcibly removed
// before the failure is returned: liveness is preferred over the small
// lost-update risk of breaking someone else's lock.
func (l *FileLock) Acquire() error {
	op := func() error {
		if err := l.tryCreate(); err == nil {
			return nil
		} else if !os.IsExist(err) {
			return backoff.Permanent(err)
		}

		if l.isStale() {
			os.Remove(l.path)
			if err := l.tryCreate(); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%w: %s", errLockHeld, l.path)
	}

	schedule := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(l.retryInterval),
		uint64(l.maxAttempts-1),
	)
	if err := backoff.Retry(op, schedule); err != nil {
		if !errors.Is(err, errLockHeld) {
			return &domain.LockError{Path: l.path, Err: err}
		}
		os.Remove(l.path)
		return &domain.LockError{Path: l.path, Err: domain.ErrLockTimeout}
	}
	return nil
}

// Release deletes the marker. Releasing an already-released lock is a no-op.
func (l *FileLock) Release() {
	os.Remove(l.path)
}

func (l *FileLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	host, _ := os.Hostname()
	fmt.Fprintf(f, "%d@%s %s\n", os.Getpid(), host, time.Now().Format(time.RFC3339))
	return f.Close()
}

// isStale checks the marker's age via mtime, not its recorded content,
// so a marker whose holder died mid-write is still reclaimable.
func (l *FileLock) isStale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > l.staleAfter
}
