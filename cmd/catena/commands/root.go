// Package commands defines all Cobra CLI commands for the catena binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/catena-ai/catena-go/internal/audit"
	"github.com/catena-ai/catena-go/internal/config"
	"github.com/catena-ai/catena-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "catena",
		Short: "Catena — hierarchical content ingestion with context-blended embeddings",
		Long: `Catena ingests text resources into a three-level hierarchy:
resources are chunked into size-bounded blocks, blocks into fragments,
and every fragment embedding is blended with its block's embedding so
stored vectors carry local context.

Hierarchies are persisted to a Qdrant point store, a SQLite record
store, and an append-only doublet edge file.

Embedding backend is selected via the EMBEDDING_PROVIDER environment
variable or a YAML config file (~/.catena/config.yaml).
See 'catena --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.catena/config.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewHierarchyCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
