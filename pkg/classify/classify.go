// Package classify splits a city's users into the star and remaining cohorts.
package classify

import (
	"fmt"
	"sort"

	"friendgeo/internal/jsonl"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"
)

// Options holds the star cut-off
type Options struct {
	Threshold int
	// RequireFollowing also demands more than Threshold followings
	RequireFollowing bool
}

// IsStar reports whether u belongs to the star cohort
func (o Options) IsStar(u models.User) bool {
	if u.FollowerCount <= o.Threshold {
		return false
	}
	return !o.RequireFollowing || u.FollowingCount > o.Threshold
}

// Classify returns both cohorts deduplicated by ID and sorted by ID, the
// order the chunk partitioner relies on. The first record of a duplicated ID
// wins.
func Classify(users []models.User, opts Options) (star, remaining []models.User) {
	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		if opts.IsStar(u) {
			u.Type = models.UserTypeStar
			star = append(star, u)
		} else {
			u.Type = models.UserTypeRemaining
			remaining = append(remaining, u)
		}
	}
	byID := func(s []models.User) {
		sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
	}
	byID(star)
	byID(remaining)
	return star, remaining
}

// LoadUsers reads the upstream user list of one city
func LoadUsers(path string) ([]models.User, error) {
	var users []models.User
	found, err := jsonl.ReadJSON(path, &users)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Validation("user list %s does not exist", path)
	}
	return users, nil
}

// Write stores one cohort file
func Write(path string, users []models.User) error {
	if users == nil {
		users = []models.User{}
	}
	if err := jsonl.WriteJSON(path, users); err != nil {
		return fmt.Errorf("failed to write cohort: %w", err)
	}
	return nil
}

// LoadCohort reads a cohort written by Write. A missing file means the city
// was never classified.
func LoadCohort(path string, userType models.UserType) ([]models.User, error) {
	var users []models.User
	found, err := jsonl.ReadJSON(path, &users)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Validation("cohort %s does not exist, run classify first", path)
	}
	for i := range users {
		users[i].Type = userType
	}
	return users, nil
}

// IDs returns the user IDs in cohort order
func IDs(users []models.User) []string {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	return ids
}
