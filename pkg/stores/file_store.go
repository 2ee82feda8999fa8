package stores

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hoistlab/hoist/pkg/environment"
)

const (
	environmentFileName = "environment.json"
	dataDirName         = "data"

	dirMode  = 0o755
	fileMode = 0o644
)

// FileStore is the file-backed environment repository. It implements
// environment.Repository.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a repository rooted at workspaceDir. Records live
// under <workspaceDir>/data/<name>/environment.json.
func NewFileStore(workspaceDir string) *FileStore {
	return &FileStore{baseDir: filepath.Join(workspaceDir, dataDirName)}
}

// EnvironmentPath returns the path of the persisted document for name.
func (s *FileStore) EnvironmentPath(name environment.Name) string {
	return filepath.Join(s.envDir(name), environmentFileName)
}

func (s *FileStore) envDir(name environment.Name) string {
	return filepath.Join(s.baseDir, name.String())
}

// Load reads and validates the persisted document for name.
func (s *FileStore) Load(ctx context.Context, name environment.Name) (environment.Any, error) {
	if err := ctx.Err(); err != nil {
		return environment.Any{}, err
	}

	data, err := os.ReadFile(s.EnvironmentPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return environment.Any{}, fmt.Errorf("environment %q: %w", name, environment.ErrNotFound)
	}
	if err != nil {
		return environment.Any{}, fmt.Errorf("read environment %q: %w", name, err)
	}

	env, err := environment.UnmarshalDocument(data)
	if err != nil {
		return environment.Any{}, fmt.Errorf("environment %q: %w", name, err)
	}
	return env, nil
}

// Save atomically replaces the persisted document for env. The document is
// written to a temp file in the target directory and renamed over the
// previous one, so readers never observe a partial write.
func (s *FileStore) Save(ctx context.Context, env environment.Any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := environment.MarshalDocument(env)
	if err != nil {
		return err
	}

	dir := s.envDir(env.Name())
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create environment dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, environmentFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write environment %q: %w", env.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync environment %q: %w", env.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, fileMode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.EnvironmentPath(env.Name())); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace environment %q: %w", env.Name(), err)
	}

	log.Debug().
		Str("environment", env.Name().String()).
		Str("state", string(env.State())).
		Msg("environment persisted")
	return nil
}

// Create persists a new record, refusing to overwrite an existing one.
func (s *FileStore) Create(ctx context.Context, env environment.Any) error {
	exists, err := s.Exists(ctx, env.Name())
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("environment %q: %w", env.Name(), environment.ErrAlreadyExists)
	}
	return s.Save(ctx, env)
}

// Exists reports whether a document is present for name.
func (s *FileStore) Exists(ctx context.Context, name environment.Name) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.EnvironmentPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat environment %q: %w", name, err)
	}
	return true, nil
}

// Delete removes the record and the environment's data directory.
func (s *FileStore) Delete(ctx context.Context, name environment.Name) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.envDir(name)); err != nil {
		return fmt.Errorf("delete environment %q: %w", name, err)
	}
	return nil
}

// List loads every persisted environment, sorted by name. Entries that are
// not valid environment directories are skipped.
func (s *FileStore) List(ctx context.Context) ([]environment.Any, error) {
	entries, err := os.ReadDir(s.baseDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}

	var envs []environment.Any
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name, err := environment.NewName(entry.Name())
		if err != nil {
			continue
		}
		env, err := s.Load(ctx, name)
		if errors.Is(err, environment.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool {
		return envs[i].Name().String() < envs[j].Name().String()
	})
	return envs, nil
}

// Lock acquires the per-environment advisory lock, waiting at most timeout.
func (s *FileStore) Lock(ctx context.Context, name environment.Name, timeout time.Duration) (func() error, error) {
	if err := os.MkdirAll(s.envDir(name), dirMode); err != nil {
		return nil, fmt.Errorf("create environment dir: %w", err)
	}
	lock, err := acquireLock(ctx, s.EnvironmentPath(name)+".lock", timeout)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
