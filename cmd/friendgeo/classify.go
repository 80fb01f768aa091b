package main

import (
	"fmt"

	"friendgeo/pkg/classify"
	"friendgeo/pkg/pipeline"
	"friendgeo/pkg/storage"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Split each city's users into star and remaining cohorts",
	Long: `Read <data-dir>/<city>/users.json and write star-users.json and
remaining-users.json. A user is a star when their follower count exceeds
star.threshold (and, with star.require_following, their following count too).`,
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	addCityFlags(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	cities, err := selectCities(cfg.Pipeline.Cities)
	if err != nil {
		return err
	}
	layout, err := storage.NewLayout(cfg.Data.Dir)
	if err != nil {
		return err
	}

	opts := classify.Options{Threshold: cfg.Star.Threshold, RequireFollowing: cfg.Star.RequireFollowing}
	for _, city := range cities {
		star, remaining, err := pipeline.ClassifyCity(layout, city, opts)
		if err != nil {
			return err
		}
		log.InfoWithFields("Classified users", map[string]interface{}{
			"city":      city,
			"star":      star,
			"remaining": remaining,
		})
		ui.PrintInfo(city, fmt.Sprintf("%d star, %d remaining", star, remaining))
	}
	return nil
}

func selectCities(configured []string) ([]string, error) {
	return pipeline.SelectCities(configured, cityNames, cityRange)
}
