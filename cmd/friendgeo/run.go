package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"friendgeo/pkg/chunk"
	"friendgeo/pkg/config"
	"friendgeo/pkg/gmaps"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/models"
	"friendgeo/pkg/pipeline"
	"friendgeo/pkg/twitterapi"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	cityNames    []string
	cityRange    string
	userTypeFlag string

	runSubstep       string
	runChunk         string
	runThreads       int
	runForce         bool
	runGranularity   string
	runFriendMode    string
	runStateFallback bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run friend analysis substeps for one or more cities",
	Long: `Run one or all substeps of the friend analysis for a user type in each
selected city. Finished users are skipped, so the same command resumes an
interrupted run. A remaining-user cohort can be split with --chunk so that
several processes share the work.`,
	Example: `  # Everything for the star users of two cities
  friendgeo run --cities portland,buffalo --user-type star

  # Fetch graphs for chunk 3 of 20 of the remaining users in cities 1-5
  friendgeo run --range 1-5 --substep fetch-graph --chunk 3/20 --threads 4

  # Re-aggregate with state granularity, ignoring earlier checkpoints
  friendgeo run --cities rockford --substep aggregate --granularity state --force-restart`,
	RunE: runRun,
}

func addCityFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&cityNames, "cities", nil, "comma separated city names")
	cmd.Flags().StringVar(&cityRange, "range", "", "1-based range over the configured city list, e.g. 1-5")
}

func addUserTypeFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&userTypeFlag, "user-type", string(models.UserTypeRemaining), "star or remaining")
}

func init() {
	rootCmd.AddCommand(runCmd)
	addCityFlags(runCmd)
	addUserTypeFlag(runCmd)
	runCmd.Flags().StringVar(&runSubstep, "substep", "all", "fetch-graph, extract-profiles, geocode, aggregate or all")
	runCmd.Flags().StringVar(&runChunk, "chunk", "", "process only chunk N of M, e.g. 1/20")
	runCmd.Flags().IntVar(&runThreads, "threads", 0, "concurrent workers, 1-10 (default from config)")
	runCmd.Flags().BoolVar(&runForce, "force-restart", false, "discard checkpoints of the selected substeps first")
	runCmd.Flags().StringVar(&runGranularity, "granularity", "", "aggregate by place, state or cell")
	runCmd.Flags().StringVar(&runFriendMode, "friend-mode", "", "mutual or union")
	runCmd.Flags().BoolVar(&runStateFallback, "state-fallback", false, "resolve scattered place votes by state")
}

func runRun(cmd *cobra.Command, args []string) error {
	extra := map[string]interface{}{}
	if runThreads != 0 {
		extra["threads"] = runThreads
	}
	if runGranularity != "" {
		extra["granularity"] = runGranularity
	}
	if runFriendMode != "" {
		extra["friend-mode"] = runFriendMode
	}
	if cmd.Flags().Changed("state-fallback") {
		extra["state-fallback"] = runStateFallback
	}
	cfg, log, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}

	req, err := buildRequest(cfg)
	if err != nil {
		return err
	}

	runner, err := pipeline.NewRunner(cfg, buildProviders(cfg, log), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.WithError(err).Error("Failed to close runner")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintBanner()
	ui.PrintInfo("Cities", fmt.Sprintf("%v", req.Cities))
	ui.PrintInfo("User type", string(req.UserType))
	ui.PrintInfo("Run ID", runner.Metrics().RunID())

	results, err := runner.Run(ctx, req)
	if len(results) > 0 {
		fmt.Println(ui.RunSummary(results))
	}
	if err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Interrupted; rerun the same command to resume")
		}
		return err
	}
	ui.PrintSuccess("Run complete")
	return nil
}

func buildRequest(cfg *config.Config) (pipeline.Request, error) {
	var req pipeline.Request

	cities, err := pipeline.SelectCities(cfg.Pipeline.Cities, cityNames, cityRange)
	if err != nil {
		return req, err
	}
	userType, err := parseUserType(userTypeFlag)
	if err != nil {
		return req, err
	}
	substeps, err := pipeline.ParseSubsteps(runSubstep)
	if err != nil {
		return req, err
	}

	req = pipeline.Request{
		Cities:       cities,
		UserType:     userType,
		Substeps:     substeps,
		Threads:      cfg.Pipeline.Threads,
		ForceRestart: runForce,
	}
	if runChunk != "" {
		req.ChunkIndex, req.ChunkCount, err = chunk.ParseSpec(runChunk)
		if err != nil {
			return req, err
		}
	}
	return req, nil
}

// buildProviders wires whichever providers have a key. The runner rejects a
// substep whose provider is missing before any work starts.
func buildProviders(cfg *config.Config, log logger.Logger) pipeline.Providers {
	var p pipeline.Providers
	if cfg.GraphAPI.APIKey != "" {
		p.Graph = twitterapi.NewClient(cfg.GraphAPI.BaseURL, cfg.GraphAPI.APIKey, cfg.GraphAPI.Timeout, log)
	}
	if cfg.Geocoder.APIKey != "" {
		p.Geocoder = gmaps.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.APIKey, cfg.Geocoder.Region, cfg.Geocoder.Timeout, log)
	}
	return p
}
