package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
)

// Scope identifies one checkpointed unit of work
type Scope struct {
	City     string
	UserType models.UserType
	Substep  models.Substep
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s", s.City, s.UserType, s.Substep)
}

// Entry is one durable completion mark
type Entry struct {
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

const compactedSegment = "compacted"

// Store records which users a substep has finished for one scope.
//
// Marks from every segment file in the scope directory count as done, but this
// store only appends to its own segment. Independent processes working on
// different chunks of the same scope therefore never write the same file.
type Store struct {
	mu      sync.RWMutex
	dir     string
	scope   Scope
	segment string
	done    map[string]time.Time
	journal *jsonl.Appender
	logger  logger.Logger
}

// Open loads every existing mark of the scope stored under dir. segment names
// the file this process appends to, typically the chunk label.
func Open(dir string, scope Scope, segment string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if segment == "" {
		segment = "all"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	s := &Store{
		dir:     dir,
		scope:   scope,
		segment: segment,
		done:    make(map[string]time.Time),
		logger:  log.WithField("scope", scope.String()),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"done":    len(s.done),
		"segment": segment,
	})
	return s, nil
}

func (s *Store) segmentPaths() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint segments: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Store) load() error {
	paths, err := s.segmentPaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		stats, err := jsonl.Read(p, func(e Entry) error {
			if e.UserID == "" {
				return nil
			}
			if prev, ok := s.done[e.UserID]; !ok || e.CompletedAt.Before(prev) {
				s.done[e.UserID] = e.CompletedAt
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to load checkpoint %s: %w", p, err)
		}
		if stats.Corrupt > 0 {
			s.logger.WarnWithFields("Skipped unreadable checkpoint lines", map[string]interface{}{
				"path":    p,
				"corrupt": stats.Corrupt,
			})
		}
	}
	return nil
}

// IsDone reports whether userID already has a durable mark
func (s *Store) IsDone(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.done[userID]
	return ok
}

// MarkDone durably records userID as complete. Marking an already completed
// user is a no-op.
func (s *Store) MarkDone(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.done[userID]; ok {
		return nil
	}

	if s.journal == nil {
		j, err := jsonl.OpenAppender(filepath.Join(s.dir, s.segment+".jsonl"))
		if err != nil {
			return fmt.Errorf("failed to open checkpoint segment: %w", err)
		}
		s.journal = j
	}

	now := time.Now().UTC()
	if err := s.journal.Append(Entry{UserID: userID, CompletedAt: now}); err != nil {
		return fmt.Errorf("failed to record checkpoint for %s: %w", userID, err)
	}
	s.done[userID] = now
	return nil
}

// Pending filters ids down to the ones without a mark, preserving order
func (s *Store) Pending(ids []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.done[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Done returns the completed user IDs in sorted order
func (s *Store) Done() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.done))
	for id := range s.done {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.done)
}

// Compact folds every segment into one sorted file. Run it only while no
// other process is working on the scope.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeJournal(); err != nil {
		return err
	}

	paths, err := s.segmentPaths()
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(s.done))
	for id, at := range s.done {
		entries = append(entries, Entry{UserID: id, CompletedAt: at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })

	target := filepath.Join(s.dir, compactedSegment+".jsonl")
	if err := jsonl.WriteLines(target, entries); err != nil {
		return fmt.Errorf("failed to write compacted checkpoint: %w", err)
	}
	for _, p := range paths {
		if p == target {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove segment %s: %w", p, err)
		}
	}

	s.logger.InfoWithFields("Checkpoint compacted", map[string]interface{}{
		"segments": len(paths),
		"done":     len(entries),
	})
	return nil
}

// Reset deletes every mark of the scope
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeJournal(); err != nil {
		return err
	}
	paths, err := s.segmentPaths()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete checkpoint: %w", err)
		}
	}
	s.done = make(map[string]time.Time)

	s.logger.Info("Checkpoint reset")
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeJournal()
}

func (s *Store) closeJournal() error {
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

// Segments lists the segment names present for a scope directory
func Segments(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(p), ".jsonl"))
	}
	sort.Strings(names)
	return names, nil
}
