package storage

import (
	"path/filepath"
	"testing"

	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	root := t.TempDir()
	l, err := NewLayout(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "el_paso"), l.CityDir("El Paso"))
	assert.Equal(t, filepath.Join(root, "portland", "users.json"), l.UsersPath("portland"))
	assert.Equal(t, filepath.Join(root, "portland", "star-users.json"), l.CohortPath("portland", models.UserTypeStar))
	assert.Equal(t, filepath.Join(root, "portland", "profiles.jsonl"), l.ProfilesPath("portland", ""))
	assert.Equal(t, filepath.Join(root, "portland", "remaining", "edges.chunk02of05.jsonl"),
		l.EdgesPath("portland", models.UserTypeRemaining, "chunk02of05"))
	assert.Equal(t, filepath.Join(root, "portland", "remaining", "friends.jsonl"), l.FriendsPath("portland", models.UserTypeRemaining, ""))
	assert.Equal(t,
		filepath.Join(root, "checkpoints", "san_francisco", "star", "geocode"),
		l.CheckpointDir("san_francisco", models.UserTypeStar, models.SubstepGeocode))
	assert.Equal(t, filepath.Join(root, "geocode-cache.jsonl"), l.DefaultCachePath())
}

func TestSegmentsMatchPattern(t *testing.T) {
	l, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	for _, seg := range []string{"", "chunk01of03", "all"} {
		ok, err := filepath.Match(l.EdgesPattern("rockford", models.UserTypeStar), l.EdgesPath("rockford", models.UserTypeStar, seg))
		require.NoError(t, err)
		assert.True(t, ok, seg)

		ok, err = filepath.Match(l.ProfilesPattern("rockford"), l.ProfilesPath("rockford", seg))
		require.NoError(t, err)
		assert.True(t, ok, seg)

		ok, err = filepath.Match(l.FriendsPattern("rockford", models.UserTypeStar), l.FriendsPath("rockford", models.UserTypeStar, seg))
		require.NoError(t, err)
		assert.True(t, ok, seg)
	}
}

func TestOutputPath(t *testing.T) {
	l, err := NewLayout(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "inferred-locations.json",
		filepath.Base(l.OutputPath("buffalo", models.UserTypeStar, 0, 0)))
	assert.Equal(t, "inferred-locations.chunk03of20.json",
		filepath.Base(l.OutputPath("buffalo", models.UserTypeRemaining, 3, 20)))
}

func TestChunkLabel(t *testing.T) {
	assert.Equal(t, "chunk01of05", ChunkLabel(1, 5))
	assert.Equal(t, "chunk12of20", ChunkLabel(12, 20))
	assert.Equal(t, "chunk007of120", ChunkLabel(7, 120))
}

func TestCityKey(t *testing.T) {
	assert.Equal(t, "el_paso", CityKey(" El Paso "))
	assert.Equal(t, "san_francisco", CityKey("san_francisco"))
}
