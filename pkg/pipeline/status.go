package pipeline

import (
	"os"

	"friendgeo/pkg/checkpoint"
	"friendgeo/pkg/classify"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/models"
	"friendgeo/pkg/storage"
)

// ClassifyCity splits a city's upstream user list into the two cohort files
func ClassifyCity(layout *storage.Layout, city string, opts classify.Options) (star, remaining int, err error) {
	users, err := classify.LoadUsers(layout.UsersPath(city))
	if err != nil {
		return 0, 0, err
	}
	s, r := classify.Classify(users, opts)
	if err := classify.Write(layout.CohortPath(city, models.UserTypeStar), s); err != nil {
		return 0, 0, errs.Wrap(errs.ErrorTypeStorage, err, city)
	}
	if err := classify.Write(layout.CohortPath(city, models.UserTypeRemaining), r); err != nil {
		return 0, 0, errs.Wrap(errs.ErrorTypeStorage, err, city)
	}
	return len(s), len(r), nil
}

// ScopeStatus is the checkpoint progress of one substep over one cohort
type ScopeStatus struct {
	City     string          `json:"city"`
	UserType models.UserType `json:"user_type"`
	Substep  models.Substep  `json:"substep"`
	Segments []string        `json:"segments,omitempty"`
	Done     int             `json:"done"`
	Total    int             `json:"total"`
}

// Status reports checkpoint counts for every substep of the given cohorts.
// It never creates files.
func Status(layout *storage.Layout, cities []string, userTypes []models.UserType) ([]ScopeStatus, error) {
	var out []ScopeStatus
	for _, city := range cities {
		for _, typ := range userTypes {
			total := 0
			if users, err := classify.LoadCohort(layout.CohortPath(city, typ), typ); err == nil {
				total = len(users)
			}
			for _, sub := range models.Substeps {
				st := ScopeStatus{City: city, UserType: typ, Substep: sub, Total: total}
				dir := layout.CheckpointDir(city, typ, sub)
				if _, err := os.Stat(dir); err == nil {
					segments, err := checkpoint.Segments(dir)
					if err != nil {
						return nil, err
					}
					cp, err := checkpoint.Open(dir, checkpoint.Scope{City: city, UserType: typ, Substep: sub}, "", nil)
					if err != nil {
						return nil, err
					}
					st.Segments = segments
					st.Done = cp.Count()
					cp.Close()
				}
				out = append(out, st)
			}
		}
	}
	return out, nil
}

// ResetCheckpoints deletes every mark of the given substeps so the next run
// redoes them
func ResetCheckpoints(layout *storage.Layout, cities []string, userType models.UserType, substeps []models.Substep) error {
	for _, city := range cities {
		for _, sub := range substeps {
			dir := layout.CheckpointDir(city, userType, sub)
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			cp, err := checkpoint.Open(dir, checkpoint.Scope{City: city, UserType: userType, Substep: sub}, "", nil)
			if err != nil {
				return err
			}
			err = cp.Reset()
			cp.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// CompactCheckpoints folds the segments of every existing scope into one
// file. Run it only while no other process works on these cities.
func CompactCheckpoints(layout *storage.Layout, cities []string, userTypes []models.UserType) (int, error) {
	n := 0
	for _, city := range cities {
		for _, typ := range userTypes {
			for _, sub := range models.Substeps {
				dir := layout.CheckpointDir(city, typ, sub)
				if _, err := os.Stat(dir); err != nil {
					continue
				}
				cp, err := checkpoint.Open(dir, checkpoint.Scope{City: city, UserType: typ, Substep: sub}, "", nil)
				if err != nil {
					return n, err
				}
				err = cp.Compact()
				cp.Close()
				if err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}
