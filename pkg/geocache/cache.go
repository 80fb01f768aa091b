package geocache

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
)

const shardCount = 64

// Entry is the memoized outcome of geocoding one normalized string.
// NotFound entries are tombstones: the geocoder answered and had no match.
type Entry struct {
	Key        string            `json:"key"`
	Query      string            `json:"query,omitempty"`
	Place      string            `json:"place,omitempty"`
	Level      models.PlaceLevel `json:"level,omitempty"`
	Lat        float64           `json:"lat,omitempty"`
	Lon        float64           `json:"lon,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	NotFound   bool              `json:"not_found,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type shard struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// Cache is the global, cross-city, cross-run geocode memo. It is loaded once
// per process, every Put is appended durably to the cache file, and entries
// are never removed. Later writes for a key replace earlier ones.
type Cache struct {
	path    string
	shards  [shardCount]*shard
	journal *jsonl.Appender
	logger  logger.Logger
}

// Open loads path (creating it on first Put) and prepares it for appends
func Open(path string, log logger.Logger) (*Cache, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	c := &Cache{path: path, logger: log.WithField("cache", path)}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[string]Entry)}
	}

	stats, err := jsonl.Read(path, func(e Entry) error {
		c.load(e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load geocode cache: %w", err)
	}
	if stats.Corrupt > 0 {
		c.logger.WarnWithFields("Skipped unreadable cache lines", map[string]interface{}{
			"corrupt": stats.Corrupt,
		})
	}

	journal, err := jsonl.OpenAppender(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geocode cache: %w", err)
	}
	c.journal = journal

	c.logger.InfoWithFields("Geocode cache loaded", map[string]interface{}{
		"entries": c.Len(),
		"lines":   stats.Records,
	})
	return c, nil
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// load applies a record read from disk. File order decides: later lines win.
func (c *Cache) load(e Entry) {
	if e.Key == "" {
		e.Key = Normalize(e.Query)
	}
	if e.Key == "" {
		return
	}
	s := c.shardFor(e.Key)
	s.entries[e.Key] = e
}

func (c *Cache) Path() string {
	return c.path
}

// Get looks up a raw location string
func (c *Cache) Get(raw string) (Entry, bool) {
	return c.GetKey(Normalize(raw))
}

// GetKey looks up an already normalized key
func (c *Cache) GetKey(key string) (Entry, bool) {
	if key == "" {
		return Entry{}, false
	}
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Put stores e under the key of raw and returns once it is durable
func (c *Cache) Put(raw string, e Entry) error {
	key := Normalize(raw)
	if key == "" {
		return fmt.Errorf("location %q has no cacheable content", raw)
	}
	if e.Query == "" {
		e.Query = raw
	}
	return c.PutKey(key, e)
}

// PutKey stores e under an already normalized key, the one GetKey is asked
// for, and returns once it is durable
func (c *Cache) PutKey(key string, e Entry) error {
	if key == "" {
		return fmt.Errorf("location %q has no cacheable content", e.Query)
	}
	e.Key = key
	return c.put(e)
}

func (c *Cache) put(e Entry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	return c.store(e)
}

// store appends e as given, without stamping it
func (c *Cache) store(e Entry) error {
	s := c.shardFor(e.Key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := c.journal.Append(e); err != nil {
		return fmt.Errorf("failed to persist cache entry %q: %w", e.Key, err)
	}
	s.entries[e.Key] = e
	return nil
}

// Len returns the number of distinct keys
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Entries returns a snapshot sorted by key
func (c *Cache) Entries() []Entry {
	var out []Entry
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			out = append(out, e)
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats summarizes the cache contents
type Stats struct {
	Entries  int                       `json:"entries"`
	Found    int                       `json:"found"`
	NotFound int                       `json:"not_found"`
	ByLevel  map[models.PlaceLevel]int `json:"by_level"`
}

func (c *Cache) Stats() Stats {
	st := Stats{ByLevel: make(map[models.PlaceLevel]int)}
	for _, e := range c.Entries() {
		st.Entries++
		if e.NotFound {
			st.NotFound++
			continue
		}
		st.Found++
		st.ByLevel[e.Level]++
	}
	return st
}

// Compact rewrites the cache file with one line per key. It must not run
// while another process appends to the same file.
func (c *Cache) Compact() error {
	entries := c.Entries()

	for _, s := range c.shards {
		s.mu.Lock()
	}
	defer func() {
		for _, s := range c.shards {
			s.mu.Unlock()
		}
	}()

	if err := c.journal.Close(); err != nil {
		return fmt.Errorf("failed to close cache journal: %w", err)
	}
	if err := jsonl.WriteLines(c.path, entries); err != nil {
		return fmt.Errorf("failed to compact geocode cache: %w", err)
	}
	journal, err := jsonl.OpenAppender(c.path)
	if err != nil {
		return fmt.Errorf("failed to reopen geocode cache: %w", err)
	}
	c.journal = journal

	c.logger.InfoWithFields("Geocode cache compacted", map[string]interface{}{
		"entries": len(entries),
	})
	return nil
}

// Close releases the cache file. Every Put is already durable.
func (c *Cache) Close() error {
	return c.journal.Close()
}
