package graph

import (
	"path/filepath"
	"testing"

	"friendgeo/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeStoreSegments(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "edges*.jsonl")

	a, err := Load(pattern, filepath.Join(dir, "edges.chunk01of02.jsonl"), nil)
	require.NoError(t, err)
	b, err := Load(pattern, filepath.Join(dir, "edges.chunk02of02.jsonl"), nil)
	require.NoError(t, err)

	require.NoError(t, a.Put(models.EdgeSet{UserID: "u1", FollowerIDs: []string{"x"}}))
	require.NoError(t, b.Put(models.EdgeSet{UserID: "u2", FollowingIDs: []string{"y"}}))
	// stored sets are never replaced
	require.NoError(t, a.Put(models.EdgeSet{UserID: "u1", FollowerIDs: []string{"z"}}))
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	all, err := Load(pattern, filepath.Join(dir, "edges.jsonl"), nil)
	require.NoError(t, err)
	defer all.Close()

	assert.Equal(t, []string{"u1", "u2"}, all.UserIDs())
	u1, ok := all.Get("u1")
	require.True(t, ok)
	assert.Equal(t, []string{"x"}, u1.FollowerIDs)
}
