package classify

import (
	"os"
	"path/filepath"
	"testing"

	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStar(t *testing.T) {
	opts := Options{Threshold: 1000, RequireFollowing: true}
	assert.True(t, opts.IsStar(models.User{FollowerCount: 1001, FollowingCount: 1500}))
	assert.False(t, opts.IsStar(models.User{FollowerCount: 1000, FollowingCount: 1500}))
	assert.False(t, opts.IsStar(models.User{FollowerCount: 50000, FollowingCount: 10}))

	opts.RequireFollowing = false
	assert.True(t, opts.IsStar(models.User{FollowerCount: 50000, FollowingCount: 10}))
}

func TestClassifySortsAndDeduplicates(t *testing.T) {
	users := []models.User{
		{ID: "30", FollowerCount: 10},
		{ID: "12", FollowerCount: 2000, FollowingCount: 2000},
		{ID: "20", FollowerCount: 5},
		{ID: "30", FollowerCount: 99999, FollowingCount: 99999},
		{ID: ""},
	}
	star, remaining := Classify(users, Options{Threshold: 1000, RequireFollowing: true})

	assert.Equal(t, []string{"12"}, IDs(star))
	assert.Equal(t, []string{"20", "30"}, IDs(remaining))
	assert.Equal(t, models.UserTypeStar, star[0].Type)
	assert.Equal(t, models.UserTypeRemaining, remaining[1].Type)
	assert.Equal(t, 10, remaining[1].FollowerCount)
}

func TestCohortRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "portland", "remaining-users.json")

	require.NoError(t, Write(path, []models.User{{ID: "1"}, {ID: "2"}}))
	got, err := LoadCohort(path, models.UserTypeRemaining)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, IDs(got))
	assert.Equal(t, models.UserTypeRemaining, got[0].Type)

	_, err = LoadCohort(filepath.Join(dir, "none.json"), models.UserTypeStar)
	assert.True(t, errs.IsValidation(err))
}

func TestLoadUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"id": "7", "follower_count": 1200, "following_count": 1300, "raw_self_location": ""},
  {"id": "8", "follower_count": 3, "following_count": 4}
]`), 0644))

	users, err := LoadUsers(path)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 1300, users[0].FollowingCount)
}
