package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/breakingbooks/bookdeck/internal/cache"
	"github.com/breakingbooks/bookdeck/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the enrichment cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache location, entry count, and size",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		stats, err := store.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Dir:     %s\n", stats.Dir)
		fmt.Printf("Entries: %d\n", stats.Entries)
		fmt.Printf("Size:    %.1f KiB\n", float64(stats.Bytes)/1024)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached enrichment results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		removed, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d entries\n", removed)
		return nil
	},
}

func openStore() (*cache.Store, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cache.New(cache.Config{Dir: cfg.Cache.Dir, Logger: newLogger()}), nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
