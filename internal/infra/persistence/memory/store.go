// Package memory keeps the snapshot archive in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"curvegraph/pkg/domain"
)

var _ domain.Archive = (*Store)(nil)

// Store is an append-only in-memory archive. A snapshot saved again under an
// existing revision replaces the earlier entry in place.
type Store struct {
	mu        sync.RWMutex
	snapshots []domain.Snapshot
	index     map[string]int
}

// NewStore returns an empty archive.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Save appends a copy of snapshot.
func (s *Store) Save(_ context.Context, snapshot domain.Snapshot) error {
	if snapshot.Revision == "" {
		return fmt.Errorf("save snapshot: empty revision")
	}
	cp := domain.CloneSnapshot(snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[cp.Revision]; ok {
		s.snapshots[i] = cp
		return nil
	}
	s.index[cp.Revision] = len(s.snapshots)
	s.snapshots = append(s.snapshots, cp)
	return nil
}

// Latest returns the most recently saved snapshot.
func (s *Store) Latest(_ context.Context) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return domain.Snapshot{}, false, nil
	}
	return domain.CloneSnapshot(s.snapshots[len(s.snapshots)-1]), true, nil
}

// List summarises saved snapshots oldest first.
func (s *Store) List(_ context.Context) ([]domain.SnapshotInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SnapshotInfo, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap.Info())
	}
	return out, nil
}
