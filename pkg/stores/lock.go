package stores

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/environment"
)

// lockPollInterval is how often a blocked acquisition re-checks the lock.
const lockPollInterval = 50 * time.Millisecond

// fileLock is an advisory lock implemented as a sidecar file created with
// O_EXCL and holding the owning PID. A lock whose owner is no longer alive
// is stale and gets reclaimed; a lock file with unparseable content is
// treated the same way.
type fileLock struct {
	path     string
	released bool
}

// acquireLock takes the lock at path, polling until it succeeds or timeout
// elapses. On expiry it fails with environment.ErrLockTimeout.
func acquireLock(ctx context.Context, path string, timeout time.Duration) (*fileLock, error) {
	deadline := time.Now().Add(timeout)
	pid := os.Getpid()

	for {
		err := tryCreateLock(path, pid)
		if err == nil {
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if reclaimed := reclaimIfStale(path); reclaimed {
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %s held by another process: %w", path, environment.ErrLockTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

// Release removes the lock file. Calling Release more than once is a no-op.
func (l *fileLock) Release() error {
	if l.released {
		return nil
	}
	l.released = true
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.path, err)
	}
	return nil
}

func tryCreateLock(path string, pid int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", pid)
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(path)
		return werr
	}
	return cerr
}

// reclaimIfStale removes the lock file when its owner is dead or its
// content is unreadable, and reports whether it did.
func reclaimIfStale(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		// Lost a race with the owner's release; retry the acquisition.
		return errors.Is(err, fs.ErrNotExist)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		log.Warn().Str("lock", path).Msg("removing lock file with invalid content")
		return os.Remove(path) == nil
	}
	if pid == os.Getpid() {
		// Our own lock from a previous acquisition in this process; the
		// caller holding it must release it first.
		return false
	}
	if processAlive(pid) {
		return false
	}

	// Another waiter can reclaim the lock and a new owner can recreate
	// it between the liveness check and the remove. Re-reading just
	// before the remove narrows that window; closing it would need an
	// atomic compare-and-remove the filesystem does not offer.
	current, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(current, data) {
		return false
	}

	log.Warn().Str("lock", path).Int("pid", pid).Msg("reclaiming stale lock from dead process")
	return os.Remove(path) == nil
}
