package cli

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/semindex/semindex/internal/mcp"
	"github.com/semindex/semindex/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the MCP protocol; everything else goes to stderr.
		log.SetOutput(os.Stderr)
		log.Printf("semindex MCP server starting (build mode %s, driver %s, vector extension %v)",
			storage.BuildMode, storage.DriverName, storage.VectorExtensionAvailable)

		root, err := resolveRoot()
		if err != nil {
			return err
		}

		srv, err := mcp.NewServer(root)
		if err != nil {
			return err
		}
		return srv.Serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
