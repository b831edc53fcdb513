package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"
)

// ErrNotFound indicates no checkpoint exists for the run ID.
var ErrNotFound = errors.New("checkpoint not found")

// runIDPattern matches the run identifier format; anything else is rejected
// before it can reach a filename or SQL key.
var runIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Record is one durable snapshot of a run. State holds the serialized
// workflow state; the remaining fields are denormalized for listing.
type Record struct {
	RunID     string          `json:"run_id"`
	Status    string          `json:"status"`
	Stage     string          `json:"stage"`
	Subsystem string          `json:"subsystem"`
	UpdatedAt time.Time       `json:"updated_at"`
	State     json.RawMessage `json:"state"`
}

// Store persists run snapshots keyed by run ID.
type Store interface {
	// Save writes or replaces the snapshot for rec.RunID.
	Save(ctx context.Context, rec Record) error

	// Load returns the snapshot for runID, or ErrNotFound.
	Load(ctx context.Context, runID string) (Record, error)

	// List returns all snapshots, newest first.
	List(ctx context.Context) ([]Record, error)

	// Delete removes the snapshot for runID. Deleting a missing run is not
	// an error.
	Delete(ctx context.Context, runID string) error
}

func validateRunID(runID string) error {
	if !runIDPattern.MatchString(runID) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

// Save implements Store.
func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := validateRunID(rec.RunID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.RunID] = rec
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(ctx context.Context, runID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[runID]
	if !ok {
		return Record{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return rec, nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, runID)
	return nil
}
