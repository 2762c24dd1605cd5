package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatsCmd constructs the `catena stats` command, which reports the
// doublet edge file's live edge count and on-disk size.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print doublet graph store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := openGraphStore()
			if err != nil {
				return fmt.Errorf("stats: failed to open graph store: %w", err)
			}
			if graph == nil {
				return fmt.Errorf("stats: graph store is disabled")
			}
			edges := graph.Edges()
			defer edges.Close()

			fmt.Printf("live edges: %d\n", edges.Count())
			fmt.Printf("file bytes: %d\n", edges.SizeBytes())
			return nil
		},
	}
}
