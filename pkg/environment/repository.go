package environment

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for the requested name.
var ErrNotFound = errors.New("environment not found")

// ErrAlreadyExists is returned by guarded saves when a record for the name
// is already present.
var ErrAlreadyExists = errors.New("environment already exists")

// ErrLockTimeout is returned when the per-environment lock could not be
// acquired within the caller's deadline. A lock that stays held usually
// means an interrupted prior invocation; acquisition fails fast instead of
// blocking indefinitely.
var ErrLockTimeout = errors.New("environment lock acquisition timed out")

// Repository owns the canonical persisted representation of environments.
// Saves are atomic (write-temp-then-rename): a concurrent reader observes
// either the previous document or the new one, never a partial write.
type Repository interface {
	// Load returns the environment persisted under name.
	// Fails with ErrNotFound or ErrCorruptedState.
	Load(ctx context.Context, name Name) (Any, error)

	// Save persists the environment, replacing any previous record.
	Save(ctx context.Context, env Any) error

	// Create persists a new record, failing with ErrAlreadyExists when one
	// is present. Used by the create verb only.
	Create(ctx context.Context, env Any) error

	// Exists reports whether a record is present for name.
	Exists(ctx context.Context, name Name) (bool, error)

	// Delete removes the persisted record. Used by purge only; callers
	// must have verified the environment is Destroyed.
	Delete(ctx context.Context, name Name) error

	// List returns every persisted environment.
	List(ctx context.Context) ([]Any, error)

	// Lock acquires the exclusive per-name lock, waiting at most timeout.
	// The returned release function must be called on every exit path.
	// Fails with ErrLockTimeout.
	Lock(ctx context.Context, name Name, timeout time.Duration) (release func() error, err error)
}
