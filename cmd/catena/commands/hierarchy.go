package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/catena-ai/catena-go/internal/pipeline"
)

// NewHierarchyCmd constructs the `catena hierarchy` command, which
// reconstructs and prints a stored resource tree.
func NewHierarchyCmd() *cobra.Command {
	var useGraph bool

	cmd := &cobra.Command{
		Use:   "hierarchy <resource-point-id>",
		Short: "Print a stored Resource → Block → Fragment tree",
		Long: `Reconstruct the hierarchy for a resource point identifier.

By default the tree is read from the SQLite record store, which preserves
block and fragment order. With --graph the tree is instead walked from the
doublet edge file; entities there are keyed by derived numeric identifiers
and order is not guaranteed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resourcePointID := args[0]
			if useGraph {
				return printGraphHierarchy(resourcePointID)
			}
			return printRecordHierarchy(cmd, resourcePointID)
		},
	}

	cmd.Flags().BoolVar(&useGraph, "graph", false, "Walk the doublet edge file instead of the record store")
	return cmd
}

func printRecordHierarchy(cmd *cobra.Command, resourcePointID string) error {
	records, err := openRecordStore()
	if err != nil {
		return fmt.Errorf("hierarchy: failed to open record store: %w", err)
	}
	if records == nil {
		return fmt.Errorf("hierarchy: record store is disabled — try --graph")
	}
	defer records.Close()

	h, err := records.Hierarchy(cmd.Context(), resourcePointID)
	if err != nil {
		return fmt.Errorf("hierarchy: %w", err)
	}
	if h == nil {
		return fmt.Errorf("hierarchy: resource %s not found", resourcePointID)
	}

	fmt.Printf("resource %s\n", h.ResourceID)
	for _, b := range h.Blocks {
		fmt.Printf("  block %s\n", b.BlockID)
		for _, f := range b.FragmentIDs {
			fmt.Printf("    fragment %s\n", f)
		}
	}
	return nil
}

func printGraphHierarchy(resourcePointID string) error {
	graph, err := openGraphStore()
	if err != nil {
		return fmt.Errorf("hierarchy: failed to open graph store: %w", err)
	}
	if graph == nil {
		return fmt.Errorf("hierarchy: graph store is disabled")
	}
	defer graph.Edges().Close()

	h, ok := graph.GetResourceHierarchy(pipeline.NumericID(resourcePointID))
	if !ok {
		return fmt.Errorf("hierarchy: resource %s not found in graph", resourcePointID)
	}

	fmt.Printf("resource %s (0x%x)\n", resourcePointID, h.ResourceID)
	for _, b := range h.Blocks {
		fmt.Printf("  block 0x%x\n", b.BlockID)
		for _, f := range b.FragmentIDs {
			fmt.Printf("    fragment 0x%x\n", f)
		}
	}
	return nil
}
