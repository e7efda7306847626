package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/semindex/semindex/internal/watcher"
	"github.com/semindex/semindex/pkg/types"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the codebase and keep the index up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openComponents()
		if err != nil {
			return err
		}
		defer c.close()

		// Initial sync before watching.
		fmt.Printf("Indexing %s...\n", c.cfg.RootPath)
		stats, err := c.indexer.Update(cmd.Context())
		if err != nil {
			return err
		}
		printStats(stats)

		w := watcher.New(c.cfg.RootPath, flagDebounce, func(ctx context.Context) {
			stats, err := c.indexer.Update(ctx)
			if err != nil {
				if errors.Is(err, types.ErrUpdateInProgress) {
					return
				}
				log.Printf("update failed: %v", err)
				return
			}
			if stats.FilesUpserted > 0 || stats.FilesDeleted > 0 {
				log.Printf("updated: %d files indexed, %d deleted, %d chunks",
					stats.FilesUpserted, stats.FilesDeleted, stats.ChunksIndexed)
			}
		})

		fmt.Println("Watching for changes (ctrl-c to stop)...")
		err = w.Run(cmd.Context())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watcher.DefaultDebounce, "settle time before re-indexing after a change")
	rootCmd.AddCommand(watchCmd)
}
