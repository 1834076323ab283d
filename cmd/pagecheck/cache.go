package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/steveyegge/pagecheck/internal/cache"
	"github.com/steveyegge/pagecheck/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the content cache",
}

// openStore loads config and opens the cache database, exiting on
// configuration errors.
func openStore() *cache.SQLiteStore {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigError)
	}
	store, err := cache.NewSQLite(cfg.CachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitConfigError)
	}
	return store
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry count and size",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		stats, err := store.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitPartial)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("\n%s\n", cyan("=== Cache Statistics ==="))
		fmt.Printf("  Entries: %d\n", stats.Entries)
		fmt.Printf("  Size:    %.1f KiB\n", float64(stats.Bytes)/1024)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe the cache unconditionally",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		if err := store.ClearAll(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitPartial)
		}
		fmt.Println("Cache cleared.")
	},
}

var cacheClearExpiredCmd = &cobra.Command{
	Use:   "clear-expired",
	Short: "Remove entries past their TTL",
	Run: func(cmd *cobra.Command, args []string) {
		store := openStore()
		defer store.Close()

		removed, err := store.ClearExpired(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitPartial)
		}
		fmt.Printf("Removed %d expired entries.\n", removed)
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheClearExpiredCmd)
	rootCmd.AddCommand(cacheCmd)
}
