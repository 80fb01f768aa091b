package pipeline

import (
	"strings"

	"friendgeo/pkg/chunk"
	"friendgeo/pkg/classify"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"
	"friendgeo/pkg/storage"
)

// Scope is one (city, user type, chunk) unit of work with its users loaded
type Scope struct {
	City       string
	UserType   models.UserType
	ChunkIndex int
	ChunkCount int
	Users      []models.User
}

// Chunked reports whether the scope covers one chunk of its cohort
func (s Scope) Chunked() bool {
	return s.ChunkCount > 0
}

// Segment names the journal files this scope appends to. Unchunked scopes
// use the default segment.
func (s Scope) Segment() string {
	if !s.Chunked() {
		return ""
	}
	return storage.ChunkLabel(s.ChunkIndex, s.ChunkCount)
}

func (s Scope) UserIDs() []string {
	return classify.IDs(s.Users)
}

// ParseSubsteps turns the operator's substep flag into the substeps to run in
// order. "all" and "" select every substep.
func ParseSubsteps(s string) ([]models.Substep, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return append([]models.Substep(nil), models.Substeps...), nil
	}
	sub, err := models.ParseSubstep(s)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	return []models.Substep{sub}, nil
}

// ResolveScope loads the cohort of city and narrows it to the requested
// chunk. chunkCount 0 selects the whole cohort. Star users are never chunked.
func ResolveScope(layout *storage.Layout, city string, userType models.UserType, chunkIndex, chunkCount int) (Scope, error) {
	scope := Scope{City: city, UserType: userType}
	if chunkCount > 0 && userType == models.UserTypeStar {
		return scope, errs.Validation("star users are processed as one set; drop the chunk selection")
	}

	users, err := classify.LoadCohort(layout.CohortPath(city, userType), userType)
	if err != nil {
		return scope, err
	}
	scope.Users = users
	if chunkCount == 0 {
		return scope, nil
	}

	c, err := chunk.Select(classify.IDs(users), chunkIndex, chunkCount)
	if err != nil {
		return scope, err
	}
	scope.ChunkIndex = c.Index
	scope.ChunkCount = c.Count
	scope.Users = users[c.Start : c.Start+len(c.UserIDs)]
	return scope, nil
}
