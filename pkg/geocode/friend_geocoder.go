package geocode

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"friendgeo/internal/workerpool"
	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/metrics"
	"friendgeo/pkg/models"
	"friendgeo/pkg/profile"
	"friendgeo/pkg/ratelimit"
	"friendgeo/pkg/retry"
)

const provider = "geocoder"

// Report summarizes one geocoding run. Distinct counts normalized location
// strings; Cached of them needed no call.
type Report struct {
	Targets     int   `json:"targets"`
	Skipped     int   `json:"skipped"`
	Distinct    int   `json:"distinct"`
	Cached      int   `json:"cached"`
	Geocoded    int   `json:"geocoded"`
	NotFound    int   `json:"not_found"`
	Failed      int   `json:"failed"`
	UsersMarked int   `json:"users_marked"`
	APICalls    int64 `json:"api_calls"`
}

// FriendGeocoder resolves the friend locations of a scope through the
// global cache, calling the provider only for strings never seen before.
type FriendGeocoder struct {
	Geocoder    Geocoder
	Cache       *geocache.Cache
	Profiles    *profile.Store
	Friends     *profile.FriendStore
	Checkpoints *checkpoint.Store
	Limiter     ratelimit.Limiter
	Retry       *retry.Config
	Threads     int
	Metrics     *metrics.Metrics
	Logger      logger.Logger

	apiCalls atomic.Int64
}

// Run geocodes the friend locations of every pending target. Each provider
// answer is cached before its worker moves on; strings whose retries run out
// stay uncached and their targets stay unmarked.
func (g *FriendGeocoder) Run(ctx context.Context, userIDs []string) (Report, error) {
	start := time.Now()
	defer g.Metrics.ObserveStage(string(models.SubstepGeocode), start)

	log := g.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("substep", string(models.SubstepGeocode))
	limiter := g.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	retryCfg := g.retryConfig(limiter, log)

	report := Report{Targets: len(userIDs)}
	targetKeys := make(map[string][]string)
	queries := make(map[string]string)

	for _, id := range userIDs {
		if g.Checkpoints.IsDone(id) {
			report.Skipped++
			continue
		}
		friends, ok := g.Friends.Get(id)
		if !ok {
			report.Skipped++
			continue
		}
		keys := make([]string, 0, len(friends))
		for _, fid := range friends {
			raw, _ := g.Profiles.Get(fid)
			key := geocache.Normalize(raw)
			if key == "" {
				continue
			}
			keys = append(keys, key)
			if _, seen := queries[key]; !seen {
				queries[key] = raw
			}
		}
		targetKeys[id] = keys
	}

	report.Distinct = len(queries)
	var misses []string
	for key := range queries {
		if _, ok := g.Cache.GetKey(key); ok {
			report.Cached++
			g.Metrics.IncCacheLookup(true)
			continue
		}
		g.Metrics.IncCacheLookup(false)
		misses = append(misses, key)
	}
	sort.Strings(misses)

	logger.LogComponentStart(log, "friend_geocoder", map[string]interface{}{
		"targets":  len(targetKeys),
		"distinct": report.Distinct,
		"misses":   len(misses),
	})

	var mu sync.Mutex
	pool := workerpool.New[string]("geocode", g.Threads, log)
	err := pool.Run(ctx, misses, func(ctx context.Context, workerID int, key string) error {
		res, gerr := retry.DoWithResult(ctx, func(ctx context.Context) (Result, error) {
			return g.call(ctx, limiter, key)
		}, retryCfg)

		if gerr != nil {
			if errs.IsFatalError(gerr) || errors.Is(gerr, context.Canceled) || errors.Is(gerr, context.DeadlineExceeded) {
				return gerr
			}
			mu.Lock()
			report.Failed++
			mu.Unlock()
			log.WarnWithFields("Leaving location uncached after failed lookup", map[string]interface{}{
				"key":   key,
				"error": gerr.Error(),
			})
			return nil
		}

		entry := geocache.Entry{Query: queries[key], NotFound: !res.Found}
		if res.Found {
			entry.Place = res.Place
			entry.Level = res.Level
			entry.Lat = res.Lat
			entry.Lon = res.Lon
			entry.Confidence = res.Confidence
		}
		if err := g.Cache.PutKey(key, entry); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "geocode cache write failed")
		}

		mu.Lock()
		if res.Found {
			report.Geocoded++
		} else {
			report.NotFound++
		}
		mu.Unlock()
		return nil
	})
	report.APICalls = g.apiCalls.Load()
	if err != nil {
		logger.LogComponentStop(log, "friend_geocoder", err.Error())
		return report, err
	}

	ids := make([]string, 0, len(targetKeys))
	for id := range targetKeys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !g.allCached(targetKeys[id]) {
			continue
		}
		if err := g.Checkpoints.MarkDone(id); err != nil {
			return report, errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint write failed")
		}
		report.UsersMarked++
	}
	g.Metrics.AddUsers(string(models.SubstepGeocode), "succeeded", report.UsersMarked)
	g.Metrics.AddUsers(string(models.SubstepGeocode), "failed", len(ids)-report.UsersMarked)

	logger.LogComponentStop(log, "friend_geocoder", "completed")
	return report, nil
}

func (g *FriendGeocoder) allCached(keys []string) bool {
	for _, k := range keys {
		if _, ok := g.Cache.GetKey(k); !ok {
			return false
		}
	}
	return true
}

func (g *FriendGeocoder) call(ctx context.Context, limiter ratelimit.Limiter, key string) (Result, error) {
	if err := limiter.Wait(ctx); err != nil {
		return Result{}, err
	}
	g.apiCalls.Add(1)
	start := time.Now()
	res, err := g.Geocoder.Geocode(ctx, key)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = string(errs.TypeOf(err))
	case !res.Found:
		outcome = "not_found"
	}
	g.Metrics.ObserveAPICall(provider, outcome, start)
	return res, err
}

func (g *FriendGeocoder) retryConfig(limiter ratelimit.Limiter, log logger.Logger) *retry.Config {
	base := g.Retry
	if base == nil {
		base = retry.DefaultConfig()
	}
	cfg := *base
	cfg.Logger = log
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		g.Metrics.IncRetry(provider, string(errs.TypeOf(err)))
		ratelimit.PauseOnRateLimit(limiter, err, delay)
		if base.OnRetry != nil {
			base.OnRetry(attempt, err, delay)
		}
	}
	return &cfg
}
