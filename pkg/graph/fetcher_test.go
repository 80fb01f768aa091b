package graph_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/graph"
	"friendgeo/pkg/graph/mocks"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
	"friendgeo/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	dir   string
	scope checkpoint.Scope
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		dir:   t.TempDir(),
		scope: checkpoint.Scope{City: "portland", UserType: models.UserTypeRemaining, Substep: models.SubstepFetchGraph},
	}
}

func (fx *fixture) stores(t *testing.T) (*graph.EdgeStore, *checkpoint.Store) {
	t.Helper()
	edges, err := graph.Load(filepath.Join(fx.dir, "edges*.jsonl"), filepath.Join(fx.dir, "edges.jsonl"), nil)
	require.NoError(t, err)
	cp, err := checkpoint.Open(filepath.Join(fx.dir, "checkpoints"), fx.scope, "", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		edges.Close()
		cp.Close()
	})
	return edges, cp
}

func fastRetry(maxRetries int) *retry.Config {
	return &retry.Config{
		MaxRetries: maxRetries,
		Backoff:    &retry.ConstantBackoff{},
	}
}

func page(more bool, next string, users ...models.ProfileSnippet) models.GraphPage {
	return models.GraphPage{Users: users, HasMore: more, NextCursor: next}
}

func snippet(id, loc string) models.ProfileSnippet {
	return models.ProfileSnippet{ID: id, RawLocation: loc}
}

func users(ids ...string) []models.User {
	out := make([]models.User, len(ids))
	for i, id := range ids {
		out[i] = models.User{ID: id, Type: models.UserTypeRemaining}
	}
	return out
}

func TestFetchPaginatesPersistsAndMarks(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	ctrl := gomock.NewController(t)
	src := mocks.NewMockGraphSource(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Followers, "").
			Return(page(true, "c2", snippet("f1", "Portland, OR"), snippet("f2", "")), nil),
		src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Followers, "c2").
			Return(page(false, "", snippet("f3", "PDX"), snippet("f1", "Portland, OR")), nil),
		src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Following, "").
			Return(page(false, "", snippet("f1", "Portland, OR"), snippet("f4", "Buffalo")), nil),
	)

	f := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, graph.Options{Threads: 1}, logger.NewNopLogger())
	report, err := f.Run(ctx, users("u1"))
	require.NoError(t, err)

	assert.Equal(t, graph.Report{Total: 1, Succeeded: 1, APICalls: 3}, report)
	set, ok := edges.Get("u1")
	require.True(t, ok)
	assert.Equal(t, []string{"f1", "f2", "f3"}, set.FollowerIDs)
	assert.Equal(t, []string{"f1", "f4"}, set.FollowingIDs)
	assert.Equal(t, map[string]string{"f1": "Portland, OR", "f3": "PDX", "f4": "Buffalo"}, set.Profiles)
	assert.False(t, set.Truncated)
	assert.True(t, cp.IsDone("u1"))
}

func TestFetchSecondRunMakesNoCalls(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	{
		edges, cp := fx.stores(t)
		src := mocks.NewMockGraphSource(gomock.NewController(t))
		src.EXPECT().FetchGraph(gomock.Any(), gomock.Any(), gomock.Any(), "").
			Return(page(false, "", snippet("f1", "Austin, TX")), nil).Times(4)

		report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, graph.Options{Threads: 2}, nil).
			Run(ctx, users("u1", "u2"))
		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)
		require.NoError(t, edges.Close())
		require.NoError(t, cp.Close())
	}

	edges, cp := fx.stores(t)
	src := mocks.NewMockGraphSource(gomock.NewController(t))
	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, graph.Options{Threads: 2}, nil).
		Run(ctx, users("u1", "u2"))
	require.NoError(t, err)
	assert.Equal(t, graph.Report{Total: 2, Skipped: 2}, report)
}

func TestFetchResumesAfterInterruption(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)

	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("u%02d", i)
	}
	for _, id := range ids[:30] {
		require.NoError(t, cp.MarkDone(id))
	}

	src := mocks.NewMockGraphSource(gomock.NewController(t))
	src.EXPECT().FetchGraph(gomock.Any(), gomock.Any(), gomock.Any(), "").
		DoAndReturn(func(_ context.Context, userID string, _ models.Direction, _ string) (models.GraphPage, error) {
			assert.GreaterOrEqual(t, userID, "u30", "checkpointed users must not be fetched")
			return page(false, ""), nil
		}).Times(40)

	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, graph.Options{Threads: 4}, nil).
		Run(context.Background(), users(ids...))
	require.NoError(t, err)
	assert.Equal(t, 30, report.Skipped)
	assert.Equal(t, 20, report.Succeeded)
	assert.Equal(t, int64(40), report.APICalls)
	assert.Equal(t, 50, cp.Count())
}

func TestFetchRetriesThenSkips(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	src := mocks.NewMockGraphSource(gomock.NewController(t))

	// u1 recovers after one throttled call, u2 never does
	gomock.InOrder(
		src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Followers, "").Return(models.GraphPage{}, errs.RateLimited("slow down")),
		src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Followers, "").Return(page(false, ""), nil),
	)
	src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Following, "").Return(page(false, ""), nil)
	src.EXPECT().FetchGraph(gomock.Any(), "u2", models.Followers, "").
		Return(models.GraphPage{}, errs.FromStatusCode(503, "unavailable")).Times(3)

	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(2), nil, graph.Options{Threads: 1}, nil).
		Run(context.Background(), users("u1", "u2"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{"u2"}, report.FailedIDs)
	assert.True(t, cp.IsDone("u1"))
	assert.False(t, cp.IsDone("u2"))
	_, stored := edges.Get("u2")
	assert.False(t, stored)
}

func TestFetchFatalAbortsRun(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	src := mocks.NewMockGraphSource(gomock.NewController(t))

	src.EXPECT().FetchGraph(gomock.Any(), "u1", models.Followers, "").
		Return(models.GraphPage{}, errs.FromStatusCode(401, "bad key"))

	_, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(3), nil, graph.Options{Threads: 1}, nil).
		Run(context.Background(), users("u1", "u2", "u3"))
	require.Error(t, err)
	assert.True(t, errs.IsFatalError(err))
	assert.Equal(t, 0, cp.Count())
}

func TestFetchStarCaps(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	src := mocks.NewMockGraphSource(gomock.NewController(t))

	star := models.User{ID: "s1", FollowerCount: 3000, FollowingCount: 1500, Type: models.UserTypeStar}
	huge := models.User{ID: "s2", FollowerCount: 90000, FollowingCount: 1200, Type: models.UserTypeStar}

	src.EXPECT().FetchGraph(gomock.Any(), "s1", models.Followers, "").
		Return(page(true, "c2", snippet("a", ""), snippet("b", ""), snippet("c", "")), nil)
	src.EXPECT().FetchGraph(gomock.Any(), "s1", models.Following, "").
		Return(page(false, "", snippet("a", "")), nil)

	opts := graph.Options{Threads: 1, MaxFetch: 2, SkipAbove: 5000}
	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, opts, nil).
		Run(context.Background(), []models.User{star, huge})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Succeeded)
	set, ok := edges.Get("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, set.FollowerIDs)
	assert.True(t, set.Truncated)
	assert.False(t, cp.IsDone("s2"))
}

func TestFetchSuspiciousEmptyStarIsRetriedLater(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	src := mocks.NewMockGraphSource(gomock.NewController(t))

	star := models.User{ID: "s1", FollowerCount: 2500, FollowingCount: 1100, Type: models.UserTypeStar}
	src.EXPECT().FetchGraph(gomock.Any(), "s1", gomock.Any(), "").Return(page(false, ""), nil).Times(2)

	opts := graph.Options{Threads: 1, SuspiciousMin: 100}
	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, opts, nil).
		Run(context.Background(), []models.User{star})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.False(t, cp.IsDone("s1"))
	assert.Equal(t, 0, edges.Len())
}

func TestFetchMarksPersistedButUnmarkedUser(t *testing.T) {
	fx := newFixture(t)
	edges, cp := fx.stores(t)
	require.NoError(t, edges.Put(models.EdgeSet{UserID: "u1", FollowerIDs: []string{"f1"}}))

	src := mocks.NewMockGraphSource(gomock.NewController(t))
	report, err := graph.NewFetcher(src, edges, cp, nil, fastRetry(0), nil, graph.Options{}, nil).
		Run(context.Background(), users("u1"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Zero(t, report.APICalls)
	assert.True(t, cp.IsDone("u1"))
}
