package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagRebuild bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Bring the semantic index in sync with the codebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openComponents()
		if err != nil {
			return err
		}
		defer c.close()

		fmt.Printf("Indexing %s...\n", c.cfg.RootPath)

		update := c.indexer.Update
		if flagRebuild {
			update = c.indexer.Rebuild
		}

		stats, err := update(cmd.Context())
		if stats != nil {
			printStats(stats)
		}
		return err
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagRebuild, "rebuild", false, "discard the existing index and re-index every file")
	rootCmd.AddCommand(indexCmd)
}
