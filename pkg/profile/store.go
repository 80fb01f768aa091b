package profile

import (
	"fmt"
	"sync"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
)

// Store maps friend IDs to their raw self-reported location. An entry with an
// empty location records that the friend was resolved and has none.
type Store struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]string
	journal  *jsonl.Appender
	logger   logger.Logger
}

// Load reads every segment matching pattern; new profiles are appended to path
func Load(pattern, path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Store{
		path:     path,
		profiles: make(map[string]string),
		logger:   log.WithField("profiles", path),
	}
	stats, err := jsonl.ReadGlob(pattern, func(p models.FriendProfile) error {
		if p.FriendID == "" {
			return nil
		}
		if _, ok := s.profiles[p.FriendID]; !ok {
			s.profiles[p.FriendID] = p.RawLocation
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if stats.Corrupt > 0 {
		s.logger.WarnWithFields("Skipped unreadable profile lines", map[string]interface{}{
			"corrupt": stats.Corrupt,
		})
	}
	return s, nil
}

func (s *Store) Get(friendID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.profiles[friendID]
	return loc, ok
}

// Put durably appends the profiles not yet stored, in one write
func (s *Store) Put(profiles ...models.FriendProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]interface{}, 0, len(profiles))
	seen := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		if _, ok := s.profiles[p.FriendID]; ok {
			continue
		}
		if _, dup := seen[p.FriendID]; dup || p.FriendID == "" {
			continue
		}
		seen[p.FriendID] = struct{}{}
		fresh = append(fresh, p)
	}
	if len(fresh) == 0 {
		return nil
	}

	if s.journal == nil {
		j, err := jsonl.OpenAppender(s.path)
		if err != nil {
			return fmt.Errorf("failed to open profile store: %w", err)
		}
		s.journal = j
	}
	if err := s.journal.Append(fresh...); err != nil {
		return fmt.Errorf("failed to persist profiles: %w", err)
	}
	for _, p := range fresh {
		fp := p.(models.FriendProfile)
		s.profiles[fp.FriendID] = fp.RawLocation
	}
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	return err
}

// FriendStore holds the friend list extracted for each target user
type FriendStore struct {
	mu      sync.RWMutex
	path    string
	lists   map[string][]string
	journal *jsonl.Appender
}

// LoadFriends reads every segment matching pattern; new lists go to path
func LoadFriends(pattern, path string) (*FriendStore, error) {
	fs := &FriendStore{path: path, lists: make(map[string][]string)}
	_, err := jsonl.ReadGlob(pattern, func(l models.FriendList) error {
		if l.UserID != "" {
			fs.lists[l.UserID] = l.FriendIDs
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load friend lists: %w", err)
	}
	return fs, nil
}

func (fs *FriendStore) Get(userID string) ([]string, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	ids, ok := fs.lists[userID]
	return ids, ok
}

// Put durably appends the friend list of one target
func (fs *FriendStore) Put(l models.FriendList) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.journal == nil {
		j, err := jsonl.OpenAppender(fs.path)
		if err != nil {
			return fmt.Errorf("failed to open friend lists: %w", err)
		}
		fs.journal = j
	}
	if err := fs.journal.Append(l); err != nil {
		return fmt.Errorf("failed to persist friends of %s: %w", l.UserID, err)
	}
	fs.lists[l.UserID] = l.FriendIDs
	return nil
}

func (fs *FriendStore) Close() error {
	if fs == nil {
		return nil
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.journal == nil {
		return nil
	}
	err := fs.journal.Close()
	fs.journal = nil
	return err
}
