package main

import (
	"fmt"
	"os"

	"friendgeo/pkg/config"
	"friendgeo/pkg/credentials"
	errs "friendgeo/pkg/errors"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage friendgeo configuration.

Configuration is merged from, highest priority first:
  - command line flags
  - environment variables (FRIENDGEO_*)
  - .env files
  - the configuration file
  - defaults

API keys are never written to the configuration file; use 'friendgeo auth'.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every option at its default",
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and report missing keys",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".friendgeo.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return errs.Validation("configuration file %s already exists", path)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store API keys with 'friendgeo auth set graph' and 'friendgeo auth set geocoder'")
	fmt.Println("2. Place each city's users.json under the data directory")
	fmt.Println("3. Run 'friendgeo classify' and then 'friendgeo run'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	ui.PrintHighlight("Current configuration")
	fmt.Println()
	fmt.Print(string(data))
	fmt.Println()
	ui.PrintInfo("graph API key", maskedOrMissing(cfg.GraphAPI.APIKey))
	ui.PrintInfo("geocoder key", maskedOrMissing(cfg.Geocoder.APIKey))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.GraphAPI.APIKey == "" {
		ui.PrintWarning("No graph API key; fetch-graph cannot run")
	}
	if cfg.Geocoder.APIKey == "" {
		ui.PrintWarning("No geocoder key; geocode cannot run")
	}
	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Data directory", cfg.Data.Dir)
	ui.PrintInfo("Cities", fmt.Sprintf("%d configured", len(cfg.Pipeline.Cities)))
	ui.PrintInfo("Threads", fmt.Sprintf("%d", cfg.Pipeline.Threads))
	ui.PrintInfo("Rate limit", fmt.Sprintf("%.1f requests/s, %d retries", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.MaxRetries))
	return nil
}

func maskedOrMissing(key string) string {
	if key == "" {
		return "(not set)"
	}
	return credentials.Mask(key)
}
