package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"friendgeo/pkg/aggregate"
	"friendgeo/pkg/checkpoint"
	"friendgeo/pkg/config"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/geocode"
	"friendgeo/pkg/graph"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/metrics"
	"friendgeo/pkg/models"
	"friendgeo/pkg/profile"
	"friendgeo/pkg/ratelimit"
	"friendgeo/pkg/retry"
	"friendgeo/pkg/storage"

	"github.com/google/uuid"
)

// Providers are the external capabilities a run may call
type Providers struct {
	Graph    graph.GraphSource
	Geocoder geocode.Geocoder
}

// Request describes one operator invocation
type Request struct {
	Cities       []string
	UserType     models.UserType
	Substeps     []models.Substep
	ChunkIndex   int
	ChunkCount   int
	Threads      int
	ForceRestart bool
}

// Result collects the reports of every substep run for one scope
type Result struct {
	City      string            `json:"city"`
	UserType  models.UserType   `json:"user_type"`
	Segment   string            `json:"segment,omitempty"`
	Users     int               `json:"users"`
	Fetch     *graph.Report     `json:"fetch,omitempty"`
	Extract   *profile.Report   `json:"extract,omitempty"`
	Geocode   *geocode.Report   `json:"geocode,omitempty"`
	Aggregate *aggregate.Report `json:"aggregate,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// Runner executes substeps over scopes. One Runner holds the global geocode
// cache and the provider rate limiters for the whole process.
type Runner struct {
	cfg          *config.Config
	layout       *storage.Layout
	providers    Providers
	cache        *geocache.Cache
	metrics      *metrics.Metrics
	graphLimiter ratelimit.Limiter
	geoLimiter   ratelimit.Limiter
	retry        *retry.Config
	logger       logger.Logger
}

// NewRunner opens the data directory and the geocode cache
func NewRunner(cfg *config.Config, providers Providers, log logger.Logger) (*Runner, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	layout, err := storage.NewLayout(cfg.Data.Dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "data directory unavailable")
	}

	runID := uuid.NewString()
	log = log.WithField("run_id", runID)

	cache, err := geocache.Open(cfg.CacheFilePath(), log)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "geocode cache unavailable")
	}

	rl := cfg.RateLimit
	etb := retry.NewErrorTypeBackoff(rl.BaseDelay, rl.MaxDelay, rl.RateLimitDelay)

	return &Runner{
		cfg:          cfg,
		layout:       layout,
		providers:    providers,
		cache:        cache,
		metrics:      metrics.New(runID),
		graphLimiter: newLimiter(rl),
		geoLimiter:   newLimiter(rl),
		retry: &retry.Config{
			MaxRetries: rl.MaxRetries,
			BackoffFor: etb.ForError,
			RetryIf:    retry.DefaultRetryIf,
		},
		logger: log,
	}, nil
}

func newLimiter(rl config.RateLimitConfig) ratelimit.Limiter {
	if rl.RequestsPerSecond <= 0 {
		return ratelimit.Unlimited{}
	}
	return ratelimit.NewTokenBucket(rl.RequestsPerSecond, rl.Burst)
}

func (r *Runner) Layout() *storage.Layout {
	return r.layout
}

func (r *Runner) Cache() *geocache.Cache {
	return r.cache
}

func (r *Runner) Metrics() *metrics.Metrics {
	return r.metrics
}

// Run validates the whole request, then runs the requested substeps for each
// city in order. Per-user failures are counted in the results; a fatal error
// stops the run and is returned with the results gathered so far.
func (r *Runner) Run(ctx context.Context, req Request) ([]Result, error) {
	threads := req.Threads
	if threads == 0 {
		threads = r.cfg.Pipeline.Threads
	}
	if threads < 1 || threads > 10 {
		return nil, errs.Validation("threads must be between 1 and 10, got %d", threads)
	}
	if len(req.Substeps) == 0 {
		req.Substeps = models.Substeps
	}
	if err := r.checkProviders(req.Substeps); err != nil {
		return nil, err
	}

	scopes := make([]Scope, 0, len(req.Cities))
	for _, city := range req.Cities {
		scope, err := ResolveScope(r.layout, city, req.UserType, req.ChunkIndex, req.ChunkCount)
		if err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}

	var results []Result
	for _, scope := range scopes {
		res, err := r.runScope(ctx, scope, req.Substeps, threads, req.ForceRestart)
		results = append(results, res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func (r *Runner) checkProviders(substeps []models.Substep) error {
	for _, s := range substeps {
		switch {
		case s == models.SubstepFetchGraph && r.providers.Graph == nil:
			return errs.New(errs.ErrorTypeConfig, "no graph API configured; set a key with 'friendgeo auth set graph'")
		case s == models.SubstepGeocode && r.providers.Geocoder == nil:
			return errs.New(errs.ErrorTypeConfig, "no geocoder configured; set a key with 'friendgeo auth set geocoder'")
		}
	}
	return nil
}

func (r *Runner) runScope(ctx context.Context, scope Scope, substeps []models.Substep, threads int, force bool) (Result, error) {
	start := time.Now()
	res := Result{City: scope.City, UserType: scope.UserType, Segment: scope.Segment(), Users: len(scope.Users)}
	log := r.logger.WithFields(map[string]interface{}{
		"city":      scope.City,
		"user_type": string(scope.UserType),
		"segment":   scope.Segment(),
	})
	log.InfoWithFields("Processing scope", map[string]interface{}{
		"users":    len(scope.Users),
		"substeps": len(substeps),
	})

	for _, sub := range substeps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.runSubstep(ctx, scope, sub, threads, force, &res, log); err != nil {
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%s %s %s: %w", scope.City, scope.UserType, sub, err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (r *Runner) openCheckpoint(scope Scope, sub models.Substep, force bool, log logger.Logger) (*checkpoint.Store, error) {
	cp, err := checkpoint.Open(
		r.layout.CheckpointDir(scope.City, scope.UserType, sub),
		checkpoint.Scope{City: scope.City, UserType: scope.UserType, Substep: sub},
		scope.Segment(),
		log,
	)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint unavailable")
	}
	if force {
		if err := cp.Reset(); err != nil {
			cp.Close()
			return nil, errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint reset failed")
		}
	}
	return cp, nil
}

func (r *Runner) runSubstep(ctx context.Context, scope Scope, sub models.Substep, threads int, force bool, res *Result, log logger.Logger) error {
	cp, err := r.openCheckpoint(scope, sub, force, log)
	if err != nil {
		return err
	}
	defer cp.Close()

	seg := scope.Segment()
	city, typ := scope.City, scope.UserType

	switch sub {
	case models.SubstepFetchGraph:
		edges, err := graph.Load(r.layout.EdgesPattern(city, typ), r.layout.EdgesPath(city, typ, seg), log)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "edge store unavailable")
		}
		defer edges.Close()

		opts := graph.Options{Threads: threads}
		if typ == models.UserTypeStar {
			opts.MaxFetch = r.cfg.Star.MaxFetch
			opts.SkipAbove = r.cfg.Star.SkipAbove
			opts.SuspiciousMin = r.cfg.Star.SuspiciousMin
		}
		f := graph.NewFetcher(r.providers.Graph, edges, cp, r.graphLimiter, r.retry, r.metrics, opts, log)
		report, err := f.Run(ctx, scope.Users)
		res.Fetch = &report
		return err

	case models.SubstepExtractProfiles:
		edges, err := graph.Load(r.layout.EdgesPattern(city, typ), r.layout.EdgesPath(city, typ, seg), log)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "edge store unavailable")
		}
		defer edges.Close()
		profiles, shared, friends, err := r.openProfiles(scope, log)
		if err != nil {
			return err
		}
		defer closeAll(profiles, shared, friends)

		mode, err := profile.ParseFriendMode(r.cfg.Pipeline.FriendMode)
		if err != nil {
			return err
		}
		x := &profile.Extractor{
			Edges:       edges,
			Profiles:    profiles,
			Shared:      shared,
			Friends:     friends,
			Checkpoints: cp,
			Mode:        mode,
			Metrics:     r.metrics,
			Logger:      log,
		}
		report, err := x.Run(ctx, scope.UserIDs())
		res.Extract = &report
		return err

	case models.SubstepGeocode:
		profiles, shared, friends, err := r.openProfiles(scope, log)
		if err != nil {
			return err
		}
		defer closeAll(profiles, shared, friends)

		g := &geocode.FriendGeocoder{
			Geocoder:    r.providers.Geocoder,
			Cache:       r.cache,
			Profiles:    profiles,
			Friends:     friends,
			Checkpoints: cp,
			Limiter:     r.geoLimiter,
			Retry:       r.retry,
			Threads:     threads,
			Metrics:     r.metrics,
			Logger:      log,
		}
		report, err := g.Run(ctx, scope.UserIDs())
		res.Geocode = &report
		return err

	case models.SubstepAggregate:
		profiles, shared, friends, err := r.openProfiles(scope, log)
		if err != nil {
			return err
		}
		defer closeAll(profiles, shared, friends)

		granularity, err := aggregate.ParseGranularity(r.cfg.Aggregate.Granularity)
		if err != nil {
			return err
		}
		a := &aggregate.Aggregator{
			Cache:       r.cache,
			Profiles:    profiles,
			Friends:     friends,
			Checkpoints: cp,
			Options: aggregate.Options{
				Granularity:         granularity,
				CellLevel:           r.cfg.Aggregate.CellLevel,
				IncludeCountryLevel: r.cfg.Aggregate.IncludeCountryLevel,
				StateFallback:       r.cfg.Aggregate.StateFallback,
			},
			Metrics: r.metrics,
			Logger:  log,
		}
		out := r.layout.OutputPath(city, typ, scope.ChunkIndex, scope.ChunkCount)
		report, err := a.Run(ctx, city, scope.UserIDs(), out)
		res.Aggregate = &report
		return err
	}
	return errs.Validation("unknown substep %q", sub)
}

type closer interface {
	Close() error
}

// closeAll closes stores that are nil-safe
func closeAll(cs ...closer) {
	for _, c := range cs {
		c.Close()
	}
}

// openProfiles opens the city profile store, the optional cross-city shared
// store and the scope's friend lists
func (r *Runner) openProfiles(scope Scope, log logger.Logger) (*profile.Store, *profile.Store, *profile.FriendStore, error) {
	seg := scope.Segment()
	profiles, err := profile.Load(r.layout.ProfilesPattern(scope.City), r.layout.ProfilesPath(scope.City, profileSegment(scope)), log)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrorTypeStorage, err, "profile store unavailable")
	}

	var shared *profile.Store
	if path := r.cfg.Data.SharedProfiles; path != "" {
		base := strings.TrimSuffix(path, filepath.Ext(path))
		own := base + "." + profileSegment(scope) + ".jsonl"
		shared, err = profile.Load(base+"*.jsonl", own, log)
		if err != nil {
			profiles.Close()
			return nil, nil, nil, errs.Wrap(errs.ErrorTypeStorage, err, "shared profile store unavailable")
		}
	}

	friends, err := profile.LoadFriends(
		r.layout.FriendsPattern(scope.City, scope.UserType),
		r.layout.FriendsPath(scope.City, scope.UserType, seg),
	)
	if err != nil {
		closeAll(profiles, shared)
		return nil, nil, nil, errs.Wrap(errs.ErrorTypeStorage, err, "friend lists unavailable")
	}
	return profiles, shared, friends, nil
}

// profileSegment keeps the star and remaining cohorts of a city, which share
// one profile store, on separate journal files
func profileSegment(scope Scope) string {
	seg := string(scope.UserType)
	if scope.Chunked() {
		seg += "." + scope.Segment()
	}
	return seg
}

// Close flushes the geocode cache and exports metrics when configured
func (r *Runner) Close() error {
	var firstErr error
	if r.cfg.Metrics.Textfile != "" {
		if err := r.metrics.WriteTextfile(r.cfg.Metrics.Textfile); err != nil {
			firstErr = err
		}
	}
	if err := r.cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
