package paper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gofrs/flock"

	"papermill/internal/config"
	"papermill/internal/logging"
	"papermill/internal/services"
)

const (
	lockRetryAttempts = 10
	lockRetryDelay    = 50 * time.Millisecond
)

var errLockHeld = errors.New("record lock held by another writer")

// Store persists the full set of paper records in a single JSON file.
// Every mutation is a whole-file read-modify-write guarded by two locks: an
// in-process RWMutex serializing goroutines, and an advisory file lock
// serializing against other processes. The companion .lock file carries no
// data. The advisory lock is not goroutine-granular on its own, which is why
// the mutex comes first.
type Store struct {
	path   string
	mu     sync.RWMutex
	lock   *flock.Flock
	logger *slog.Logger
}

// NewStore opens the record store rooted in the configured working directory.
func NewStore(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("store requires config")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	path := cfg.RecordFilePath()
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With(logging.String(logging.FieldComponent, "store")),
	}, nil
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the full record set. A missing file yields an empty set. An
// unparsable file also yields an empty set: the caller cannot repair a
// corrupt record file, so availability wins over surfacing the fault.
func (s *Store) Load(ctx context.Context) ([]Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.acquire(ctx, s.lock.TryRLock); err != nil {
		return nil, err
	}
	defer s.release()
	return s.read(), nil
}

// Save replaces the full record set.
func (s *Store) Save(ctx context.Context, papers []Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquire(ctx, s.lock.TryLock); err != nil {
		return err
	}
	defer s.release()
	return s.write(papers)
}

// Upsert merges records into the existing set by key, last write wins.
func (s *Store) Upsert(ctx context.Context, papers []Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquire(ctx, s.lock.TryLock); err != nil {
		return err
	}
	defer s.release()

	existing := s.read()
	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[NormalizeKey(p.Key)] = i
	}
	for _, p := range papers {
		if i, ok := index[NormalizeKey(p.Key)]; ok {
			existing[i] = p
			continue
		}
		index[NormalizeKey(p.Key)] = len(existing)
		existing = append(existing, p)
	}
	return s.write(existing)
}

// GetByKey returns the record matching key, or nil when absent. Matching
// tolerates the non-canonical path separator on either side.
func (s *Store) GetByKey(ctx context.Context, key string) (*Paper, error) {
	papers, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		if papers[i].MatchesKey(key) {
			found := papers[i]
			return &found, nil
		}
	}
	return nil, nil
}

// Update applies a partial mutation to the record matching key under the
// exclusive lock. It returns false when no record matched.
func (s *Store) Update(ctx context.Context, key string, apply func(*Paper)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquire(ctx, s.lock.TryLock); err != nil {
		return false, err
	}
	defer s.release()

	papers := s.read()
	for i := range papers {
		if papers[i].MatchesKey(key) {
			apply(&papers[i])
			return true, s.write(papers)
		}
	}
	return false, nil
}

// Delete removes the record matching key. It returns whether removal occurred.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.acquire(ctx, s.lock.TryLock); err != nil {
		return false, err
	}
	defer s.release()

	papers := s.read()
	kept := papers[:0]
	for _, p := range papers {
		if !p.MatchesKey(key) {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(papers) {
		return false, nil
	}
	return true, s.write(kept)
}

// acquire obtains the file lock with bounded retry and backoff, surfacing
// exhaustion as ErrUnavailable.
func (s *Store) acquire(ctx context.Context, try func() (bool, error)) error {
	err := retry.Do(
		func() error {
			ok, lockErr := try()
			if lockErr != nil {
				return lockErr
			}
			if !ok {
				return errLockHeld
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(lockRetryAttempts),
		retry.Delay(lockRetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "store", "lock", "acquire record lock", err)
	}
	return nil
}

func (s *Store) release() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("release record lock", logging.Error(err))
	}
}

// read loads the record file. Callers must hold the lock.
func (s *Store) read() []Paper {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("read record file", logging.Error(err))
		}
		return nil
	}
	var papers []Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		s.logger.Warn("record file unparsable, treating as empty", logging.Error(err))
		return nil
	}
	return papers
}

// write rewrites the full record file. Callers must hold the lock.
func (s *Store) write(papers []Paper) error {
	if papers == nil {
		papers = []Paper{}
	}
	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write record file: %w", err)
	}
	return nil
}
