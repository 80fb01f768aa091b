package main

import (
	"fmt"
	"os"
	"runtime"

	"friendgeo/pkg/config"
	"friendgeo/pkg/credentials"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/logger"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile      string
	logLevel        string
	logFile         string
	dataDir         string
	cacheFile       string
	metricsTextfile string
)

var rootCmd = &cobra.Command{
	Use:   "friendgeo",
	Short: "Infer where users live from where their friends say they live",
	Long: `friendgeo infers a home location for each user of a city cohort from the
self-reported locations of their mutual friends.

Work is split into four resumable substeps per city and user type:
  fetch-graph       download follower and following lists
  extract-profiles  derive friends and collect their raw locations
  geocode           resolve every distinct location string once
  aggregate         pick the most common friend location per user

Every substep checkpoints each finished user, so an interrupted run picks up
where it stopped. Large cohorts can be split into chunks and run as separate
processes.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Validation and fatal errors exit with 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errs.IsValidation(err) {
			ui.PrintError("Invalid request", err.Error())
		} else {
			ui.PrintError("Error", err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .friendgeo.yaml or ~/.config/friendgeo/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "root of per-city data and checkpoints")
	rootCmd.PersistentFlags().StringVar(&cacheFile, "cache-file", "", "geocode cache file (default <data-dir>/geocode-cache.jsonl)")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics of the run to this file")

	rootCmd.SetVersionTemplate(`friendgeo {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig merges defaults, file, environment and the flags the operator
// set, fills provider keys from the credential store and starts the logger.
func loadConfig(cmd *cobra.Command, extra map[string]interface{}) (*config.Config, logger.Logger, error) {
	flags := map[string]interface{}{}
	for k, v := range extra {
		flags[k] = v
	}
	pf := cmd.Flags()
	setIfChanged := func(name string, v interface{}) {
		if pf.Changed(name) {
			flags[name] = v
		}
	}
	setIfChanged("log-level", logLevel)
	setIfChanged("log-file", logFile)
	setIfChanged("data-dir", dataDir)
	setIfChanged("cache-file", cacheFile)
	setIfChanged("metrics-textfile", metricsTextfile)

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to load configuration")
	}

	if m, err := credentials.NewManager(); err == nil {
		m.Apply(cfg)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize logger")
	}
	return cfg, logger.GetLogger(), nil
}
