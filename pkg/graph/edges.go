package graph

import (
	"fmt"
	"sort"
	"sync"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
)

// EdgeStore holds the fetched edge sets of one scope. Sets are written once
// and never rewritten; removing a set from disk is the only way to refetch it.
type EdgeStore struct {
	mu      sync.RWMutex
	pattern string
	path    string
	sets    map[string]models.EdgeSet
	journal *jsonl.Appender
	logger  logger.Logger
}

// Load reads every segment matching pattern. New sets are appended to path.
func Load(pattern, path string, log logger.Logger) (*EdgeStore, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &EdgeStore{
		pattern: pattern,
		path:    path,
		sets:    make(map[string]models.EdgeSet),
		logger:  log.WithField("edges", path),
	}

	stats, err := jsonl.ReadGlob(pattern, func(e models.EdgeSet) error {
		if e.UserID == "" {
			return nil
		}
		// first write wins; a duplicate comes from two processes racing
		if _, ok := s.sets[e.UserID]; !ok {
			s.sets[e.UserID] = e
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load edge sets: %w", err)
	}
	if stats.Corrupt > 0 {
		s.logger.WarnWithFields("Skipped unreadable edge set lines", map[string]interface{}{
			"corrupt": stats.Corrupt,
		})
	}
	return s, nil
}

// Get returns the stored edge set of userID
func (s *EdgeStore) Get(userID string) (models.EdgeSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sets[userID]
	return e, ok
}

// Put durably appends e. Storing a user that already has a set is a no-op.
func (s *EdgeStore) Put(e models.EdgeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sets[e.UserID]; ok {
		return nil
	}
	if s.journal == nil {
		j, err := jsonl.OpenAppender(s.path)
		if err != nil {
			return fmt.Errorf("failed to open edge journal: %w", err)
		}
		s.journal = j
	}
	if err := s.journal.Append(e); err != nil {
		return fmt.Errorf("failed to persist edges of %s: %w", e.UserID, err)
	}
	s.sets[e.UserID] = e
	return nil
}

func (s *EdgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}

// UserIDs returns the users with a stored set in sorted order
func (s *EdgeStore) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *EdgeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}
