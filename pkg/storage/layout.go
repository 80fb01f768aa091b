package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"friendgeo/pkg/models"
)

// Layout maps every artifact of a run onto the data directory:
//
//	<root>/<city>/users.json
//	<root>/<city>/star-users.json, remaining-users.json
//	<root>/<city>/profiles[.<segment>].jsonl
//	<root>/<city>/<user_type>/edges[.<segment>].jsonl
//	<root>/<city>/<user_type>/friends[.<segment>].jsonl
//	<root>/<city>/<user_type>/inferred-locations[.chunkIIofMM].json
//	<root>/checkpoints/<city>/<user_type>/<substep>/<segment>.jsonl
//	<root>/geocode-cache.jsonl (unless configured elsewhere)
type Layout struct {
	root string
}

// NewLayout creates the root directory if needed
func NewLayout(root string) (*Layout, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Layout{root: root}, nil
}

func (l *Layout) Root() string {
	return l.root
}

// CityDir returns the directory holding one city's artifacts
func (l *Layout) CityDir(city string) string {
	return filepath.Join(l.root, CityKey(city))
}

func (l *Layout) ScopeDir(city string, userType models.UserType) string {
	return filepath.Join(l.CityDir(city), string(userType))
}

func (l *Layout) UsersPath(city string) string {
	return filepath.Join(l.CityDir(city), "users.json")
}

// CohortPath is the classifier output for one user type
func (l *Layout) CohortPath(city string, userType models.UserType) string {
	return filepath.Join(l.CityDir(city), string(userType)+"-users.json")
}

// Journals that several processes may extend at once are split into
// segments, one per writer. Readers take the union of every segment.

func (l *Layout) ProfilesPath(city, segment string) string {
	return filepath.Join(l.CityDir(city), segmentFile("profiles", segment))
}

func (l *Layout) ProfilesPattern(city string) string {
	return filepath.Join(l.CityDir(city), "profiles*.jsonl")
}

func (l *Layout) EdgesPath(city string, userType models.UserType, segment string) string {
	return filepath.Join(l.ScopeDir(city, userType), segmentFile("edges", segment))
}

func (l *Layout) EdgesPattern(city string, userType models.UserType) string {
	return filepath.Join(l.ScopeDir(city, userType), "edges*.jsonl")
}

func (l *Layout) FriendsPath(city string, userType models.UserType, segment string) string {
	return filepath.Join(l.ScopeDir(city, userType), segmentFile("friends", segment))
}

func (l *Layout) FriendsPattern(city string, userType models.UserType) string {
	return filepath.Join(l.ScopeDir(city, userType), "friends*.jsonl")
}

func segmentFile(base, segment string) string {
	if segment == "" {
		return base + ".jsonl"
	}
	return base + "." + segment + ".jsonl"
}

// OutputPath names the inferred-location file. Chunked runs get their own
// file so parallel chunks never overwrite each other.
func (l *Layout) OutputPath(city string, userType models.UserType, chunkIndex, chunkCount int) string {
	name := "inferred-locations.json"
	if chunkCount > 0 {
		name = fmt.Sprintf("inferred-locations.%s.json", ChunkLabel(chunkIndex, chunkCount))
	}
	return filepath.Join(l.ScopeDir(city, userType), name)
}

// CheckpointDir holds every segment of one (city, user type, substep) scope
func (l *Layout) CheckpointDir(city string, userType models.UserType, substep models.Substep) string {
	return filepath.Join(l.root, "checkpoints", CityKey(city), string(userType), string(substep))
}

func (l *Layout) DefaultCachePath() string {
	return filepath.Join(l.root, "geocode-cache.jsonl")
}

// ChunkLabel renders a chunk as chunk03of20, zero padded to the width of count
func ChunkLabel(index, count int) string {
	width := len(fmt.Sprint(count))
	if width < 2 {
		width = 2
	}
	return fmt.Sprintf("chunk%0*dof%0*d", width, index, width, count)
}

// CityKey turns a configured city name into a directory name
func CityKey(city string) string {
	key := strings.ToLower(strings.TrimSpace(city))
	return strings.ReplaceAll(key, " ", "_")
}
