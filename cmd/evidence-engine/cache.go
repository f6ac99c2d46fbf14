// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/evidence-engine/internal/evidence"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the extraction cache (stats, clear, export)",
	Long: `Cache manages the persistent extraction cache. Entries never expire on
their own: a changed document, question, or model produces a new key.
Use clear to discard everything, or export to inspect entries as YAML.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show extraction cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer cache.Close()

		stats, err := cache.Stats(context.Background())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "entries:   %d\n", stats.Entries)
		fmt.Fprintf(os.Stdout, "documents: %d\n", stats.Documents)
		fmt.Fprintf(os.Stdout, "models:    %d\n", stats.Models)
		if stats.Oldest != "" {
			fmt.Fprintf(os.Stdout, "oldest:    %s\n", stats.Oldest)
			fmt.Fprintf(os.Stdout, "newest:    %s\n", stats.Newest)
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every extraction cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer cache.Close()

		removed, err := cache.Clear(context.Background())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "removed %d entries\n", removed)
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the extraction cache as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache(cmd)
		if err != nil {
			return err
		}
		defer cache.Close()

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return cache.ExportYAML(context.Background(), out)
	},
}

func openCache(cmd *cobra.Command) (*evidence.Cache, error) {
	dir, _ := cmd.Flags().GetString("cache-dir")
	if dir == "" {
		dir = loadPipelineConfig().Cache.Dir
	}
	return evidence.OpenCache(dir)
}

func init() {
	cacheCmd.PersistentFlags().String("cache-dir", "", "cache directory (default: configured cache.dir)")
	cacheExportCmd.Flags().String("output", "", "write the export to a file instead of stdout")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)

	rootCmd.AddCommand(cacheCmd)
}
