package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"friendgeo/internal/workerpool"
	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/metrics"
	"friendgeo/pkg/models"
	"friendgeo/pkg/ratelimit"
	"friendgeo/pkg/retry"
)

const provider = "graph"

// Options tunes a fetch run
type Options struct {
	// Threads is the number of concurrent workers
	Threads int
	// MaxFetch caps each direction's list; 0 fetches everything
	MaxFetch int
	// SkipAbove leaves users with more followers untouched; 0 disables
	SkipAbove int
	// SuspiciousMin is the follower count above which a star user whose
	// fetch comes back empty in both directions is retried next run
	SuspiciousMin int
	// ProgressEvery logs progress after this many finished users
	ProgressEvery int
}

// Report summarizes one fetch run
type Report struct {
	Total     int      `json:"total"`
	Skipped   int      `json:"skipped"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
	APICalls  int64    `json:"api_calls"`
}

// Fetcher downloads the follower and following lists of a scope's users.
// A user is checkpointed only after its edge set is durable, so an
// interrupted run refetches at most the users that were in flight.
type Fetcher struct {
	source      GraphSource
	edges       *EdgeStore
	checkpoints *checkpoint.Store
	limiter     ratelimit.Limiter
	retry       *retry.Config
	metrics     *metrics.Metrics
	opts        Options
	logger      logger.Logger

	apiCalls atomic.Int64
}

// NewFetcher wires a fetcher. limiter, retryCfg and m may be nil.
func NewFetcher(source GraphSource, edges *EdgeStore, cp *checkpoint.Store, limiter ratelimit.Limiter,
	retryCfg *retry.Config, m *metrics.Metrics, opts Options, log logger.Logger) *Fetcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 50
	}

	cfg := *retryCfg
	cfg.Logger = log
	onRetry := retryCfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		m.IncRetry(provider, string(errs.TypeOf(err)))
		ratelimit.PauseOnRateLimit(limiter, err, delay)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
	}

	return &Fetcher{
		source:      source,
		edges:       edges,
		checkpoints: cp,
		limiter:     limiter,
		retry:       &cfg,
		metrics:     m,
		opts:        opts,
		logger:      log.WithField("substep", string(models.SubstepFetchGraph)),
	}
}

// Run fetches every user of the scope that has no checkpoint yet. Users whose
// retries run out are reported as failed and left unmarked for the next run.
// A fatal error cancels the remaining work and is returned with the partial
// report.
func (f *Fetcher) Run(ctx context.Context, users []models.User) (Report, error) {
	start := time.Now()
	defer f.metrics.ObserveStage(string(models.SubstepFetchGraph), start)

	report := Report{Total: len(users)}
	var pending []models.User
	for _, u := range users {
		switch {
		case f.checkpoints.IsDone(u.ID):
			report.Skipped++
		case f.opts.SkipAbove > 0 && u.FollowerCount > f.opts.SkipAbove:
			report.Skipped++
			f.logger.DebugWithFields("Skipping oversized account", map[string]interface{}{
				"user_id":   u.ID,
				"followers": u.FollowerCount,
			})
		default:
			pending = append(pending, u)
		}
	}
	f.metrics.AddUsers(string(models.SubstepFetchGraph), "skipped", report.Skipped)

	logger.LogComponentStart(f.logger, "graph_fetcher", map[string]interface{}{
		"total":   report.Total,
		"pending": len(pending),
		"threads": f.opts.Threads,
	})

	var (
		mu       sync.Mutex
		finished int
	)
	pool := workerpool.New[models.User]("fetch-graph", f.opts.Threads, f.logger)
	err := pool.Run(ctx, pending, func(ctx context.Context, workerID int, u models.User) error {
		ferr := f.fetchUser(ctx, u)

		mu.Lock()
		defer mu.Unlock()
		finished++
		if finished%f.opts.ProgressEvery == 0 || finished == len(pending) {
			logger.LogStageProgress(f.logger, string(models.SubstepFetchGraph), finished, len(pending))
		}

		switch {
		case ferr == nil:
			report.Succeeded++
			f.metrics.IncUser(string(models.SubstepFetchGraph), "succeeded")
			return nil
		case errs.IsFatalError(ferr), errors.Is(ferr, context.Canceled), errors.Is(ferr, context.DeadlineExceeded):
			return ferr
		default:
			report.Failed++
			report.FailedIDs = append(report.FailedIDs, u.ID)
			f.metrics.IncUser(string(models.SubstepFetchGraph), "failed")
			f.logger.WarnWithFields("Skipping user after failed fetch", map[string]interface{}{
				"user_id":   u.ID,
				"worker_id": workerID,
				"error":     ferr.Error(),
			})
			return nil
		}
	})

	sort.Strings(report.FailedIDs)
	report.APICalls = f.apiCalls.Load()

	reason := "completed"
	if err != nil {
		reason = err.Error()
	}
	logger.LogComponentStop(f.logger, "graph_fetcher", reason)
	return report, err
}

// fetchUser persists u's edge set and then marks it done
func (f *Fetcher) fetchUser(ctx context.Context, u models.User) error {
	set, ok := f.edges.Get(u.ID)
	if !ok {
		var err error
		set, err = f.fetchEdges(ctx, u)
		if err != nil {
			return err
		}
		if err := f.edges.Put(set); err != nil {
			return errs.Wrap(errs.ErrorTypeStorage, err, "edge store write failed")
		}
	}
	if err := f.checkpoints.MarkDone(u.ID); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint write failed")
	}
	return nil
}

func (f *Fetcher) fetchEdges(ctx context.Context, u models.User) (models.EdgeSet, error) {
	set := models.EdgeSet{UserID: u.ID, Profiles: make(map[string]string)}

	followers, truncF, err := f.fetchDirection(ctx, u.ID, models.Followers, set.Profiles)
	if err != nil {
		return set, fmt.Errorf("followers of %s: %w", u.ID, err)
	}
	following, truncG, err := f.fetchDirection(ctx, u.ID, models.Following, set.Profiles)
	if err != nil {
		return set, fmt.Errorf("following of %s: %w", u.ID, err)
	}

	if u.Type == models.UserTypeStar && f.opts.SuspiciousMin > 0 &&
		u.FollowerCount > f.opts.SuspiciousMin && len(followers) == 0 && len(following) == 0 {
		return set, errs.Transient(nil, fmt.Sprintf("empty graph for %s with %d followers", u.ID, u.FollowerCount))
	}

	set.FollowerIDs = followers
	set.FollowingIDs = following
	set.Truncated = truncF || truncG
	set.FetchedAt = time.Now().UTC()
	return set, nil
}

// fetchDirection walks the pages of one direction until the listing ends or
// MaxFetch is reached
func (f *Fetcher) fetchDirection(ctx context.Context, userID string, dir models.Direction, profiles map[string]string) ([]string, bool, error) {
	var (
		ids    []string
		seen   = make(map[string]struct{})
		cursor string
	)
	for {
		page, err := retry.DoWithResult(ctx, func(ctx context.Context) (models.GraphPage, error) {
			return f.call(ctx, userID, dir, cursor)
		}, f.retry)
		if err != nil {
			return nil, false, err
		}

		for _, p := range page.Users {
			if p.ID == "" {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			ids = append(ids, p.ID)
			if p.RawLocation != "" {
				profiles[p.ID] = p.RawLocation
			}
			if f.opts.MaxFetch > 0 && len(ids) >= f.opts.MaxFetch {
				return ids, true, nil
			}
		}

		if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
			return ids, false, nil
		}
		cursor = page.NextCursor
	}
}

func (f *Fetcher) call(ctx context.Context, userID string, dir models.Direction, cursor string) (models.GraphPage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return models.GraphPage{}, err
	}
	f.apiCalls.Add(1)
	start := time.Now()
	page, err := f.source.FetchGraph(ctx, userID, dir, cursor)
	outcome := "ok"
	if err != nil {
		outcome = string(errs.TypeOf(err))
	}
	f.metrics.ObserveAPICall(provider, outcome, start)
	return page, err
}
