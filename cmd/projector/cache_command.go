package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"projector/internal/logging"
	"projector/internal/lookupcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the lookup cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func openCache(ctx *commandContext) (*lookupcache.Cache, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return lookupcache.New(cfg.Cache.Path, cfg.Cache.FlushEvery, logging.NewNop()), nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show lookup cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}

			hits := 0
			misses := 0
			for _, entry := range cache.Entries() {
				if entry.Found {
					hits++
				} else {
					misses++
				}
			}

			cfg, _ := ctx.ensureConfig()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:    %s\n", cfg.Cache.Path)
			fmt.Fprintf(out, "Entries: %d\n", cache.Len())
			fmt.Fprintf(out, "Found:   %d\n", hits)
			fmt.Fprintf(out, "Missing: %d\n", misses)
			return nil
		},
	}
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached lookups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}

			entries := cache.Entries()
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			const stampLayout = "2006-01-02 15:04"
			for _, entry := range entries {
				marker := "not found"
				if entry.Found && entry.Payload != nil {
					marker = entry.Payload.IMDbID
					if marker == "" {
						marker = "found"
					}
				}
				fmt.Fprintf(out, "  - %s — %s (cached %s)\n",
					entry.Key, marker, entry.CachedAt.Local().Format(stampLayout))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 = all)")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached lookup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache(ctx)
			if err != nil {
				return err
			}
			removed := cache.Len()
			if err := cache.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached lookups\n", removed)
			return nil
		},
	}
}
