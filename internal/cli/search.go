package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semindex/semindex/internal/searcher"
)

var (
	flagLimit   int
	flagOffset  int
	flagRefresh bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the indexed codebase with a natural language query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		c, err := openComponents()
		if err != nil {
			return err
		}
		defer c.close()

		srch := searcher.New(c.storage, c.emb, c.indexer)
		resp, err := srch.Search(cmd.Context(), searcher.Request{
			Query:   query,
			Limit:   flagLimit,
			Offset:  flagOffset,
			Refresh: flagRefresh,
		})
		if err != nil {
			return err
		}

		if len(resp.Results) == 0 {
			fmt.Printf("No results for %q\n", query)
			return nil
		}

		for i, r := range resp.Results {
			fmt.Printf("%d. %s:%d-%d (%.3f)\n", flagOffset+i+1, r.FilePath, r.StartLine, r.EndLine, r.Score)
			for _, line := range strings.Split(r.Content, "\n") {
				fmt.Printf("   %s\n", line)
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", searcher.DefaultLimit, "maximum results to return")
	searchCmd.Flags().IntVar(&flagOffset, "offset", 0, "ranked results to skip")
	searchCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "update the index before searching")
	rootCmd.AddCommand(searchCmd)
}
