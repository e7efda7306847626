package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semindex/semindex/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openComponents()
		if err != nil {
			return err
		}
		defer c.close()

		stats, err := c.storage.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Root:        %s\n", c.cfg.RootPath)
		fmt.Printf("Database:    %s\n", c.cfg.DBPath())
		fmt.Printf("Build mode:  %s (vector extension: %v)\n", storage.BuildMode, storage.VectorExtensionAvailable)
		if stats.ModelID == "" {
			fmt.Println("Index:       empty (run 'semindex index' first)")
			return nil
		}
		fmt.Printf("Model:       %s (dimension %d)\n", stats.ModelID, stats.Dimension)
		fmt.Printf("Files:       %d\n", stats.Files)
		fmt.Printf("Chunks:      %d\n", stats.Chunks)
		fmt.Printf("Embeddings:  %d\n", stats.Embeddings)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
