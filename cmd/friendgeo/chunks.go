package main

import (
	"fmt"

	"friendgeo/pkg/chunk"
	"friendgeo/pkg/classify"
	"friendgeo/pkg/storage"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var chunkCount int

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Preview how a cohort splits into chunks",
	Long: `Show the deterministic split of each selected city's cohort into M chunks.
Nothing is written; use the same M with 'run --chunk N/M'.`,
	Example: `  friendgeo chunks --count 20 --cities portland`,
	RunE:    runChunks,
}

func init() {
	rootCmd.AddCommand(chunksCmd)
	addCityFlags(chunksCmd)
	addUserTypeFlag(chunksCmd)
	chunksCmd.Flags().IntVar(&chunkCount, "count", 1, "number of chunks")
}

func runChunks(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	cities, err := selectCities(cfg.Pipeline.Cities)
	if err != nil {
		return err
	}
	userType, err := parseUserType(userTypeFlag)
	if err != nil {
		return err
	}
	layout, err := storage.NewLayout(cfg.Data.Dir)
	if err != nil {
		return err
	}

	for _, city := range cities {
		users, err := classify.LoadCohort(layout.CohortPath(city, userType), userType)
		if err != nil {
			return err
		}
		summaries, err := chunk.Preview(classify.IDs(users), chunkCount)
		if err != nil {
			return err
		}
		fmt.Println(ui.ChunkPreview(fmt.Sprintf("%s (%s, %d users)", city, userType, len(users)), summaries))
	}
	return nil
}
