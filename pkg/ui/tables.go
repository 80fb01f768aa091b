package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"friendgeo/pkg/chunk"
	"friendgeo/pkg/credentials"
	"friendgeo/pkg/geocache"
	"friendgeo/pkg/models"
	"friendgeo/pkg/pipeline"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// newTable builds a bordered table; columns listed in numeric are right aligned
func newTable(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, c := range numeric {
		right[c] = true
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// Section renders a title above a block
func Section(title, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), body)
}

func itoa(n int) string { return strconv.Itoa(n) }

// ChunkPreview renders the partition of one city's cohort
func ChunkPreview(city string, summaries []chunk.Summary) string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			fmt.Sprintf("%d/%d", s.Index, len(summaries)),
			itoa(s.Size),
			fmt.Sprintf("%d-%d", s.Start, s.End),
			s.FirstID,
			s.LastID,
		})
	}
	return Section(city, newTable([]string{"chunk", "users", "range", "first", "last"}, rows, 1))
}

// RunSummary renders per-scope stage reports of a run
func RunSummary(results []pipeline.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		scope := r.City + "/" + string(r.UserType)
		if r.Segment != "" {
			scope += "/" + r.Segment
		}
		fetch, extract, geo, agg := "-", "-", "-", "-"
		if f := r.Fetch; f != nil {
			fetch = fmt.Sprintf("%d ok %d fail %d skip", f.Succeeded, f.Failed, f.Skipped)
			if f.Failed > 0 {
				fetch = warningStyle.Render(fetch)
			}
		}
		if e := r.Extract; e != nil {
			extract = fmt.Sprintf("%d friends, %d new", e.DistinctFriends, e.ProfilesAdded)
		}
		if g := r.Geocode; g != nil {
			geo = fmt.Sprintf("%d cached %d new %d miss", g.Cached, g.Geocoded, g.NotFound)
			if g.Failed > 0 {
				geo = warningStyle.Render(fmt.Sprintf("%s %d fail", geo, g.Failed))
			}
		}
		if a := r.Aggregate; a != nil {
			agg = fmt.Sprintf("%d/%d inferred", a.Inferred, a.Targets)
		}
		rows = append(rows, []string{scope, itoa(r.Users), fetch, extract, geo, agg, r.Duration.Round(time.Millisecond).String()})
	}
	return Section("run summary", newTable(
		[]string{"scope", "users", "fetch", "extract", "geocode", "aggregate", "took"}, rows, 1))
}

// CacheStats renders geocode cache totals by level
func CacheStats(path string, st geocache.Stats) string {
	rows := [][]string{
		{"entries", itoa(st.Entries)},
		{"found", itoa(st.Found)},
		{"not found", itoa(st.NotFound)},
	}
	levels := make([]string, 0, len(st.ByLevel))
	for l := range st.ByLevel {
		if l == "" {
			continue
		}
		levels = append(levels, string(l))
	}
	sort.Strings(levels)
	for _, l := range levels {
		rows = append(rows, []string{"  " + l, itoa(st.ByLevel[models.PlaceLevel(l)])})
	}
	return Section(path, newTable([]string{"cache", "count"}, rows, 1))
}

// MergeSummary renders the outcome of a cache merge
func MergeSummary(st geocache.MergeStats) string {
	return newTable([]string{"read", "added", "updated", "kept"},
		[][]string{{itoa(st.Read), itoa(st.Added), itoa(st.Updated), itoa(st.Kept)}}, 0, 1, 2, 3)
}

// NearDuplicates renders near-identical cache keys
func NearDuplicates(dups []geocache.NearDuplicate) string {
	rows := make([][]string, 0, len(dups))
	for _, d := range dups {
		agree := successStyle.Render("same place")
		if !d.Agree {
			agree = errorStyle.Render("differ")
		}
		rows = append(rows, []string{d.A, d.B, itoa(d.Distance), agree})
	}
	return Section("near duplicates", newTable([]string{"key", "similar", "distance", "result"}, rows, 2))
}

// CheckpointStatus renders completion per scope and substep
func CheckpointStatus(statuses []pipeline.ScopeStatus) string {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		pct := 0.0
		if s.Total > 0 {
			pct = float64(s.Done) / float64(s.Total) * 100
		}
		progress := progressStyle(pct).Render(fmt.Sprintf("%d/%d (%.0f%%)", s.Done, s.Total, pct))
		rows = append(rows, []string{s.City, string(s.UserType), string(s.Substep), progress, strings.Join(s.Segments, ",")})
	}
	return Section("checkpoints", newTable([]string{"city", "type", "substep", "done", "segments"}, rows))
}

// Credentials renders stored keys with their values masked
func Credentials(listed []credentials.Listed) string {
	rows := make([][]string, 0, len(listed))
	for _, l := range listed {
		rows = append(rows, []string{
			string(l.Credential.Provider),
			credentials.Mask(l.Credential.Key),
			l.Store,
			l.Credential.LastModified.Format(time.RFC3339),
		})
	}
	return newTable([]string{"provider", "key", "store", "modified"}, rows)
}
