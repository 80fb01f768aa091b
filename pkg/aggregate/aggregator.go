package aggregate

import (
	"context"
	"time"

	"friendgeo/internal/jsonl"
	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/metrics"
	"friendgeo/pkg/models"
	"friendgeo/pkg/profile"
)

// Report summarizes one aggregation run
type Report struct {
	Targets        int    `json:"targets"`
	Inferred       int    `json:"inferred"`
	NoSignal       int    `json:"no_signal"`
	MissingFriends int    `json:"missing_friends"`
	Output         string `json:"output"`
}

// Aggregator infers one location per target of a scope from the cached
// geocodes of its friends
type Aggregator struct {
	Cache       *geocache.Cache
	Profiles    *profile.Store
	Friends     *profile.FriendStore
	Checkpoints *checkpoint.Store
	Options     Options
	Metrics     *metrics.Metrics
	Logger      logger.Logger
}

// Infer runs the inference for a single target
func (a *Aggregator) Infer(userID, city string) (models.InferredLocation, bool) {
	friends, ok := a.Friends.Get(userID)
	if !ok {
		return models.InferredLocation{}, false
	}
	entries := make([]geocache.Entry, 0, len(friends))
	for _, fid := range friends {
		raw, _ := a.Profiles.Get(fid)
		if e, ok := a.Cache.Get(raw); ok {
			entries = append(entries, e)
		}
	}
	return Infer(userID, city, entries, a.Options)
}

// Run infers every target of userIDs, replaces the output file and marks
// the targets that had a friend list. The output is rebuilt from scratch
// on every run.
func (a *Aggregator) Run(ctx context.Context, city string, userIDs []string, outputPath string) (Report, error) {
	start := time.Now()
	defer a.Metrics.ObserveStage(string(models.SubstepAggregate), start)
	log := a.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("substep", string(models.SubstepAggregate))

	report := Report{Targets: len(userIDs), Output: outputPath}
	results := make(map[string]models.InferredLocation)
	var processed []string

	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := a.Friends.Get(id); !ok {
			report.MissingFriends++
			continue
		}
		processed = append(processed, id)
		loc, ok := a.Infer(id, city)
		if !ok {
			report.NoSignal++
			continue
		}
		results[id] = loc
		report.Inferred++
	}

	if err := WriteResults(outputPath, results); err != nil {
		return report, errs.Wrap(errs.ErrorTypeStorage, err, "inferred locations write failed")
	}
	for _, id := range processed {
		if err := a.Checkpoints.MarkDone(id); err != nil {
			return report, errs.Wrap(errs.ErrorTypeStorage, err, "checkpoint write failed")
		}
	}

	a.Metrics.AddUsers(string(models.SubstepAggregate), "succeeded", report.Inferred)
	a.Metrics.AddUsers(string(models.SubstepAggregate), "no_signal", report.NoSignal)
	a.Metrics.AddUsers(string(models.SubstepAggregate), "skipped", report.MissingFriends)
	log.InfoWithFields("Locations inferred", map[string]interface{}{
		"targets":   report.Targets,
		"inferred":  report.Inferred,
		"no_signal": report.NoSignal,
		"output":    outputPath,
	})
	return report, nil
}

// WriteResults atomically replaces path with a JSON object keyed by user ID
func WriteResults(path string, results map[string]models.InferredLocation) error {
	return jsonl.WriteJSON(path, results)
}

// ReadResults loads an inferred-locations file; a missing file is empty
func ReadResults(path string) (map[string]models.InferredLocation, error) {
	results := make(map[string]models.InferredLocation)
	if _, err := jsonl.ReadJSON(path, &results); err != nil {
		return nil, err
	}
	return results, nil
}
