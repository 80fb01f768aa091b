package main

import (
	"fmt"

	"friendgeo/pkg/geocache"
	"friendgeo/pkg/ui"

	"github.com/spf13/cobra"
)

var (
	mergeReportNear bool
	nearMaxDistance int
	nearMinLen      int
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the global geocode cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size by outcome and place level",
	RunE:  runCacheStats,
}

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the cache journal with one line per key",
	Long: `Rewrite the cache journal keeping only the latest entry of every key.
Run it while no other friendgeo process is using the cache.`,
	RunE: runCacheCompact,
}

var cacheMergeCmd = &cobra.Command{
	Use:   "merge <file>...",
	Short: "Merge other caches into the global cache",
	Long: `Merge cache journals or legacy {"raw string": "place"} JSON maps into the
global cache. Journal entries win when newer; legacy maps only fill keys
that are missing.`,
	Example: `  friendgeo cache merge old/portland_cache.json other/geocode-cache.jsonl --report-near`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runCacheMerge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheCompactCmd, cacheMergeCmd)
	for _, c := range []*cobra.Command{cacheStatsCmd, cacheMergeCmd} {
		c.Flags().BoolVar(&mergeReportNear, "report-near", false, "list keys within --max-distance edits of each other")
		c.Flags().IntVar(&nearMaxDistance, "max-distance", 2, "edit distance for --report-near")
		c.Flags().IntVar(&nearMinLen, "min-len", 6, "ignore keys shorter than this for --report-near")
	}
}

func openCache(cmd *cobra.Command) (*geocache.Cache, error) {
	cfg, log, err := loadConfig(cmd, nil)
	if err != nil {
		return nil, err
	}
	return geocache.Open(cfg.CacheFilePath(), log)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Println(ui.CacheStats(c.Path(), c.Stats()))
	printNear(c)
	return nil
}

func runCacheCompact(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Compact(); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Compacted %s to %d entries", c.Path(), c.Len()))
	return nil
}

func runCacheMerge(cmd *cobra.Command, args []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Merge(args...)
	if err != nil {
		return err
	}
	fmt.Println(ui.MergeSummary(st))
	printNear(c)
	return nil
}

func printNear(c *geocache.Cache) {
	if !mergeReportNear {
		return
	}
	dups := c.NearDuplicates(nearMaxDistance, nearMinLen)
	if len(dups) == 0 {
		ui.PrintInfo("Near duplicates", "none")
		return
	}
	fmt.Println(ui.NearDuplicates(dups))
}
