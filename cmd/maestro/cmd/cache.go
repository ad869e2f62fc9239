package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the artifact cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache analytics",
	RunE: func(_ *cobra.Command, _ []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		analytics := comps.store.Analytics(comps.cost)
		fmt.Printf("Entries:         %d\n", analytics.TotalEntries)
		fmt.Printf("Hit rate:        %.1f%%\n", analytics.HitRate)
		fmt.Printf("Size:            %.2f MB\n", analytics.TotalSizeMB)
		fmt.Printf("API calls saved: %d\n", analytics.APICallsSaved)
		fmt.Printf("Cost savings:    $%.2f\n", analytics.CostSavingsUSD)
		return nil
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired and corrupted cache entries",
	RunE: func(_ *cobra.Command, _ []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		stats := comps.store.Cleanup()
		fmt.Printf("Expired:   %d\n", stats.ExpiredCount)
		fmt.Printf("Corrupted: %d\n", stats.CorruptedCount)
		fmt.Printf("Kept:      %d\n", stats.KeptCount)
		fmt.Printf("Freed:     %d bytes\n", stats.BytesFreed)
		return nil
	},
}

var cacheCascade bool

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <key>",
	Short: "Invalidate a cache entry, optionally cascading to dependents",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		comps, err := buildComponents()
		if err != nil {
			return err
		}
		defer comps.close()

		removed := comps.store.Invalidate(args[0], cacheCascade)
		fmt.Printf("Invalidated %d entries:\n", len(removed))
		for _, key := range removed {
			fmt.Printf("  %s\n", key)
		}
		return nil
	},
}

func init() {
	cacheInvalidateCmd.Flags().BoolVar(&cacheCascade, "cascade", true,
		"also invalidate entries depending on the key")
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd, cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
