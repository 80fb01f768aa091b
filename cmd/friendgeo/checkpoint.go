package main

import (
	"fmt"

	"friendgeo/pkg/models"
	"friendgeo/pkg/pipeline"
	"friendgeo/pkg/storage"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	cpScanType  string
	cpResetType string
	cpSubstep   string
	cpYes       bool
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and reset per-substep progress",
}

var checkpointStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many users each substep has finished",
	RunE:  runCheckpointStatus,
}

var checkpointResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard checkpoints so substeps start over",
	Long: `Delete the checkpoints of the selected substeps for one user type. Data
already fetched (edge sets, profiles, cache entries) is kept and reused.`,
	RunE: runCheckpointReset,
}

var checkpointCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Fold checkpoint segments into one file per scope",
	Long: `Fold the per-chunk checkpoint segments of every scope into one file.
Run it only while no friendgeo process is working on the selected cities.`,
	RunE: runCheckpointCompact,
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointStatusCmd, checkpointResetCmd, checkpointCompactCmd)
	for _, c := range []*cobra.Command{checkpointStatusCmd, checkpointResetCmd, checkpointCompactCmd} {
		addCityFlags(c)
	}
	checkpointStatusCmd.Flags().StringVar(&cpScanType, "user-type", "all", "star, remaining or all")
	checkpointCompactCmd.Flags().StringVar(&cpScanType, "user-type", "all", "star, remaining or all")
	checkpointResetCmd.Flags().StringVar(&cpResetType, "user-type", string(models.UserTypeRemaining), "star or remaining")
	checkpointResetCmd.Flags().StringVar(&cpSubstep, "substep", "all", "substep to reset, or all")
	checkpointResetCmd.Flags().BoolVarP(&cpYes, "yes", "y", false, "do not ask for confirmation")
}

func checkpointTarget(cmd *cobra.Command) (*storage.Layout, []string, error) {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, nil, err
	}
	cities, err := selectCities(cfg.Pipeline.Cities)
	if err != nil {
		return nil, nil, err
	}
	layout, err := storage.NewLayout(cfg.Data.Dir)
	if err != nil {
		return nil, nil, err
	}
	return layout, cities, nil
}

func runCheckpointStatus(cmd *cobra.Command, args []string) error {
	layout, cities, err := checkpointTarget(cmd)
	if err != nil {
		return err
	}
	types, err := userTypesOrAll(cpScanType)
	if err != nil {
		return err
	}
	statuses, err := pipeline.Status(layout, cities, types)
	if err != nil {
		return err
	}
	fmt.Println(ui.CheckpointStatus(statuses))
	return nil
}

func runCheckpointReset(cmd *cobra.Command, args []string) error {
	layout, cities, err := checkpointTarget(cmd)
	if err != nil {
		return err
	}
	userType, err := parseUserType(cpResetType)
	if err != nil {
		return err
	}
	substeps, err := pipeline.ParseSubsteps(cpSubstep)
	if err != nil {
		return err
	}

	if !cpYes && !confirm(fmt.Sprintf("Reset %v of %s users in %v?", substeps, userType, cities)) {
		return nil
	}
	if err := pipeline.ResetCheckpoints(layout, cities, userType, substeps); err != nil {
		return err
	}
	ui.PrintSuccess("Checkpoints reset")
	return nil
}

func runCheckpointCompact(cmd *cobra.Command, args []string) error {
	layout, cities, err := checkpointTarget(cmd)
	if err != nil {
		return err
	}
	types, err := userTypesOrAll(cpScanType)
	if err != nil {
		return err
	}
	n, err := pipeline.CompactCheckpoints(layout, cities, types)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Compacted %d checkpoint scopes", n))
	return nil
}
