package profile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"friendgeo/pkg/checkpoint"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/graph"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/metrics"
	"friendgeo/pkg/models"
)

// FriendMode selects which edges count as friendship
type FriendMode string

const (
	// Mutual keeps accounts that both follow and are followed by the target
	Mutual FriendMode = "mutual"
	// Union keeps every follower and every followed account
	Union FriendMode = "union"
)

func ParseFriendMode(s string) (FriendMode, error) {
	switch FriendMode(s) {
	case "", Mutual:
		return Mutual, nil
	case Union:
		return Union, nil
	}
	return "", errs.Validation("unknown friend mode %q (want mutual or union)", s)
}

// Friends derives the sorted, deduplicated friend IDs of one edge set
func Friends(set models.EdgeSet, mode FriendMode) []string {
	out := make(map[string]struct{})
	if mode == Union {
		for _, id := range set.FollowerIDs {
			out[id] = struct{}{}
		}
		for _, id := range set.FollowingIDs {
			out[id] = struct{}{}
		}
	} else {
		followers := make(map[string]struct{}, len(set.FollowerIDs))
		for _, id := range set.FollowerIDs {
			followers[id] = struct{}{}
		}
		for _, id := range set.FollowingIDs {
			if _, ok := followers[id]; ok {
				out[id] = struct{}{}
			}
		}
	}
	delete(out, "")
	delete(out, set.UserID)

	ids := make([]string, 0, len(out))
	for id := range out {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Report summarizes one extraction run
type Report struct {
	Targets         int `json:"targets"`
	Skipped         int `json:"skipped"`
	MissingEdges    int `json:"missing_edges"`
	DistinctFriends int `json:"distinct_friends"`
	ProfilesReused  int `json:"profiles_reused"`
	ProfilesAdded   int `json:"profiles_added"`
	Marked          int `json:"marked"`
}

// Extractor turns fetched edge sets into friend lists and a deduplicated
// profile store. It works on local files only.
type Extractor struct {
	Edges       *graph.EdgeStore
	Profiles    *Store
	Shared      *Store
	Friends     *FriendStore
	Checkpoints *checkpoint.Store
	Mode        FriendMode
	Metrics     *metrics.Metrics
	Logger      logger.Logger
}

// Run extracts every pending target of userIDs. Targets without an edge set
// are skipped and stay unmarked. Each distinct friend is resolved once no
// matter how many targets share it.
func (e *Extractor) Run(ctx context.Context, userIDs []string) (Report, error) {
	start := time.Now()
	defer e.Metrics.ObserveStage(string(models.SubstepExtractProfiles), start)
	log := e.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("substep", string(models.SubstepExtractProfiles))

	report := Report{Targets: len(userIDs)}
	type target struct {
		id      string
		friends []string
	}
	var targets []target
	snippets := make(map[string]string)
	distinct := make(map[string]struct{})

	for _, id := range userIDs {
		if e.Checkpoints.IsDone(id) {
			report.Skipped++
			continue
		}
		set, ok := e.Edges.Get(id)
		if !ok {
			report.MissingEdges++
			continue
		}
		friends := Friends(set, e.Mode)
		for _, fid := range friends {
			distinct[fid] = struct{}{}
			if loc, ok := set.Profiles[fid]; ok {
				snippets[fid] = loc
			}
		}
		targets = append(targets, target{id: id, friends: friends})
	}
	report.DistinctFriends = len(distinct)

	fresh := make([]models.FriendProfile, 0)
	ids := make([]string, 0, len(distinct))
	for fid := range distinct {
		ids = append(ids, fid)
	}
	sort.Strings(ids)
	for _, fid := range ids {
		if _, ok := e.Profiles.Get(fid); ok {
			report.ProfilesReused++
			continue
		}
		if e.Shared != nil {
			if loc, ok := e.Shared.Get(fid); ok {
				report.ProfilesReused++
				fresh = append(fresh, models.FriendProfile{FriendID: fid, RawLocation: loc})
				continue
			}
		}
		fresh = append(fresh, models.FriendProfile{FriendID: fid, RawLocation: snippets[fid]})
		report.ProfilesAdded++
	}

	if err := e.Profiles.Put(fresh...); err != nil {
		return report, errs.Wrap(errs.ErrorTypeStorage, err, "profile store write failed")
	}
	if e.Shared != nil {
		if err := e.Shared.Put(fresh...); err != nil {
			return report, errs.Wrap(errs.ErrorTypeStorage, err, "shared profile store write failed")
		}
	}

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := e.Friends.Put(models.FriendList{UserID: t.id, FriendIDs: t.friends}); err != nil {
			return report, errs.Wrap(errs.ErrorTypeStorage, err, "friend list write failed")
		}
		if err := e.Checkpoints.MarkDone(t.id); err != nil {
			return report, errs.Wrap(errs.ErrorTypeStorage, err, fmt.Sprintf("checkpoint of %s failed", t.id))
		}
		report.Marked++
		if (i+1)%500 == 0 {
			logger.LogStageProgress(log, string(models.SubstepExtractProfiles), i+1, len(targets))
		}
	}

	e.Metrics.AddUsers(string(models.SubstepExtractProfiles), "succeeded", report.Marked)
	e.Metrics.AddUsers(string(models.SubstepExtractProfiles), "skipped", report.Skipped+report.MissingEdges)
	if report.MissingEdges > 0 {
		log.WarnWithFields("Targets without fetched edges were skipped", map[string]interface{}{
			"missing": report.MissingEdges,
		})
	}
	log.InfoWithFields("Friend profiles extracted", map[string]interface{}{
		"targets":          report.Targets,
		"marked":           report.Marked,
		"distinct_friends": report.DistinctFriends,
		"profiles_added":   report.ProfilesAdded,
	})
	return report, nil
}
