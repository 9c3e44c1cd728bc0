package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjonasALICE/arTui/internal/arxiv"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run fetch+purge in a loop with configurable interval",
		Long: `Continuously fetch new arXiv articles and sweep expired unsaved ones.
Designed for running inside a Docker container or as a background service.
Handles SIGINT/SIGTERM for graceful shutdown (finishes the current cycle).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			log.Printf("artui daemon: starting with interval %s", interval)

			cycle := 1
			for {
				start := time.Now()
				log.Printf("artui daemon: cycle %d starting", cycle)

				if err := runCycle(ctx); err != nil {
					log.Printf("artui daemon: cycle %d error: %v", cycle, err)
				} else {
					log.Printf("artui daemon: cycle %d completed in %s", cycle, time.Since(start).Round(time.Millisecond))
				}

				cycle++

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(interval)
				select {
				case <-sig:
					timer.Stop()
					log.Println("artui daemon: received shutdown signal, exiting")
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 1*time.Hour, "duration between fetch cycles (e.g. 5m, 30s, 1h)")
	return cmd
}

// runCycle fetches anything due per the fetch threshold, then purges
// expired unsaved articles. The store is reopened each cycle so a
// replaced database file is picked up.
func runCycle(ctx context.Context) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	fetcher := arxiv.NewFetcher(store)
	fetcher.MaxResults = cfg.Fetch.MaxResults

	results, err := fetcher.FetchAll(ctx, cfg, false)
	if err != nil {
		return err
	}
	added := 0
	for _, n := range results {
		added += n
	}
	log.Printf("artui daemon: fetched %d new articles across %d keys", added, len(results))

	if cfg.FeedRetentionDays > 0 {
		deleted, err := store.PurgeOldUnsaved(cfg.FeedRetentionDays)
		if err != nil {
			return err
		}
		if deleted > 0 {
			log.Printf("artui daemon: purged %d articles older than %d days", deleted, cfg.FeedRetentionDays)
		}
	}

	return nil
}
