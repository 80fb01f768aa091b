package geocode_test

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/geocode"
	"friendgeo/pkg/geocode/mocks"
	"friendgeo/pkg/models"
	"friendgeo/pkg/profile"
	"friendgeo/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type stage struct {
	dir      string
	cache    *geocache.Cache
	profiles *profile.Store
	friends  *profile.FriendStore
	cp       *checkpoint.Store
}

func newStage(t *testing.T, dir string) *stage {
	t.Helper()
	cache, err := geocache.Open(filepath.Join(dir, "cache.jsonl"), nil)
	require.NoError(t, err)
	profiles, err := profile.Load(filepath.Join(dir, "profiles*.jsonl"), filepath.Join(dir, "profiles.jsonl"), nil)
	require.NoError(t, err)
	friends, err := profile.LoadFriends(filepath.Join(dir, "friends*.jsonl"), filepath.Join(dir, "friends.jsonl"))
	require.NoError(t, err)
	cp, err := checkpoint.Open(filepath.Join(dir, "cp"), checkpoint.Scope{City: "rockford", Substep: models.SubstepGeocode}, "", nil)
	require.NoError(t, err)
	s := &stage{dir: dir, cache: cache, profiles: profiles, friends: friends, cp: cp}
	t.Cleanup(s.close)
	return s
}

func (s *stage) close() {
	s.cache.Close()
	s.profiles.Close()
	s.friends.Close()
	s.cp.Close()
}

func (s *stage) seed(t *testing.T, lists map[string][]string, locations map[string]string) {
	t.Helper()
	for fid, loc := range locations {
		require.NoError(t, s.profiles.Put(models.FriendProfile{FriendID: fid, RawLocation: loc}))
	}
	for uid, ids := range lists {
		require.NoError(t, s.friends.Put(models.FriendList{UserID: uid, FriendIDs: ids}))
	}
}

func (s *stage) geocoder(g geocode.Geocoder, maxRetries int) *geocode.FriendGeocoder {
	return &geocode.FriendGeocoder{
		Geocoder:    g,
		Cache:       s.cache,
		Profiles:    s.profiles,
		Friends:     s.friends,
		Checkpoints: s.cp,
		Retry:       &retry.Config{MaxRetries: maxRetries, Backoff: &retry.ConstantBackoff{}},
		Threads:     3,
	}
}

func TestGeocodesEachDistinctStringOnce(t *testing.T) {
	s := newStage(t, t.TempDir())
	s.seed(t,
		map[string][]string{"u1": {"f1", "f2", "f3"}, "u2": {"f2", "f4", "f5"}},
		map[string]string{
			"f1": "Rockford, IL",
			"f2": "rockford il",
			"f3": "",
			"f4": "Mordor",
			"f5": "ROCKFORD,   IL!",
		})

	g := mocks.NewMockGeocoder(gomock.NewController(t))
	g.EXPECT().Geocode(gomock.Any(), "rockford il").
		Return(geocode.Result{Found: true, Place: "Rockford, IL", Level: models.PlaceLevelCity, Confidence: 0.9}, nil)
	g.EXPECT().Geocode(gomock.Any(), "mordor").Return(geocode.Result{}, nil)

	report, err := s.geocoder(g, 0).Run(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, geocode.Report{Targets: 2, Distinct: 2, Geocoded: 1, NotFound: 1, UsersMarked: 2, APICalls: 2}, report)

	e, ok := s.cache.Get("Rockford IL")
	require.True(t, ok)
	assert.Equal(t, "Rockford, IL", e.Place)
	m, ok := s.cache.Get("mordor")
	require.True(t, ok)
	assert.True(t, m.NotFound)
}

func TestCachedStringsMakeNoCalls(t *testing.T) {
	dir := t.TempDir()
	s := newStage(t, dir)
	s.seed(t, map[string][]string{"u1": {"f1"}}, map[string]string{"f1": "Fayetteville, AR"})
	require.NoError(t, s.cache.Put("fayetteville ar", geocache.Entry{Place: "Fayetteville, AR", Level: models.PlaceLevelCity}))

	g := mocks.NewMockGeocoder(gomock.NewController(t))
	report, err := s.geocoder(g, 0).Run(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cached)
	assert.Zero(t, report.APICalls)
	assert.True(t, s.cp.IsDone("u1"))
}

func TestNonLatinLocationIsGeocodedOnce(t *testing.T) {
	dir := t.TempDir()
	raw := "ᏓᏁᎸᎯ Tahlequah"
	key := geocache.Normalize(raw)

	s := newStage(t, dir)
	s.seed(t, map[string][]string{"u1": {"f1"}}, map[string]string{"f1": raw})

	g := mocks.NewMockGeocoder(gomock.NewController(t))
	g.EXPECT().Geocode(gomock.Any(), key).
		Return(geocode.Result{Found: true, Place: "Tahlequah, OK", Level: models.PlaceLevelCity}, nil).
		Times(1)

	report, err := s.geocoder(g, 0).Run(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.APICalls)
	assert.Equal(t, 1, report.UsersMarked)
	assert.True(t, s.cp.IsDone("u1"))
	s.close()

	// a later run over another target with the same friend reads the cache
	again := newStage(t, dir)
	again.seed(t, map[string][]string{"u2": {"f1"}}, nil)
	e, ok := again.cache.GetKey(key)
	require.True(t, ok)
	assert.Equal(t, "Tahlequah, OK", e.Place)

	quiet := mocks.NewMockGeocoder(gomock.NewController(t))
	report, err = again.geocoder(quiet, 0).Run(context.Background(), []string{"u2"})
	require.NoError(t, err)
	assert.Zero(t, report.APICalls)
	assert.Equal(t, 1, report.Cached)
	assert.True(t, again.cp.IsDone("u2"))
}

func TestFailedLookupsStayUncached(t *testing.T) {
	s := newStage(t, t.TempDir())
	s.seed(t,
		map[string][]string{"u1": {"f1", "f2"}, "u2": {"f2"}},
		map[string]string{"f1": "Scranton", "f2": "South Bend"})

	g := mocks.NewMockGeocoder(gomock.NewController(t))
	g.EXPECT().Geocode(gomock.Any(), "scranton").Return(geocode.Result{}, errs.RateLimited("quota")).Times(2)
	g.EXPECT().Geocode(gomock.Any(), "south bend").
		Return(geocode.Result{Found: true, Place: "South Bend, IN", Level: models.PlaceLevelCity}, nil)

	report, err := s.geocoder(g, 1).Run(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.UsersMarked)
	assert.False(t, s.cp.IsDone("u1"))
	assert.True(t, s.cp.IsDone("u2"))
	_, cached := s.cache.Get("scranton")
	assert.False(t, cached)
}

func TestFatalGeocoderErrorAborts(t *testing.T) {
	s := newStage(t, t.TempDir())
	s.seed(t, map[string][]string{"u1": {"f1"}}, map[string]string{"f1": "Buffalo"})

	var calls atomic.Int32
	g := mocks.NewMockGeocoder(gomock.NewController(t))
	g.EXPECT().Geocode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string) (geocode.Result, error) {
			calls.Add(1)
			return geocode.Result{}, errs.Fatal("request denied")
		})

	_, err := s.geocoder(g, 3).Run(context.Background(), []string{"u1"})
	require.Error(t, err)
	assert.True(t, errs.IsFatalError(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, s.cp.Count())
}
