package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/catena-ai/catena-go/internal/embedding"
	"github.com/catena-ai/catena-go/internal/logging"
	"github.com/catena-ai/catena-go/internal/parser"
	"github.com/catena-ai/catena-go/internal/pipeline"
	"github.com/catena-ai/catena-go/internal/pointstore"
)

// NewIngestCmd constructs the `catena ingest` command, which runs the
// content pipeline over one or more files (or stdin) and persists the
// resulting hierarchy.
func NewIngestCmd() *cobra.Command {
	var contentType string
	var resourceID string
	var maxBlockSize int
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed, and persist resources into the hierarchy stores",
		Long: `Parse each input into blocks and fragments, embed them with context
blending, and persist points to Qdrant plus hierarchy rows to the local
SQLite record store and doublet edge file.

With no --file flags the payload is read from stdin and --id is required.
Content type is auto-detected per payload unless --type is given.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: catena-content)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Backend-specific overrides (see README)

Local persistence:
  CATENA_RECORDS_DB    SQLite record store path ("disabled" to skip)
  CATENA_GRAPH_PATH    Doublet edge file path ("disabled" to skip)

Examples:
  catena ingest --file docs/guide.md
  catena ingest --type json --file payloads/catalog.json --file payloads/users.json
  cat notes.txt | catena ingest --id notes --type text`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			ctx := logging.WithComponent(logging.WithLogger(cmd.Context(), log), "ingest")

			if len(files) == 0 && resourceID == "" {
				return fmt.Errorf("ingest: --id is required when reading from stdin")
			}

			if err := embedding.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			backend, err := embedding.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedding backend: %w", err)
			}
			log.Info("embedding backend initialised",
				slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")))

			qdrantHost := getEnvOrDefault("QDRANT_HOST", "localhost")
			qdrantPort := getEnvInt("QDRANT_PORT", 6334)
			collection := getEnvOrDefault("QDRANT_COLLECTION", "catena-content")
			embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")
			vectorSize := uint64(embedding.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

			points, err := pointstore.NewQdrantStore(ctx, &pointstore.QdrantConfig{
				Host:       qdrantHost,
				Port:       qdrantPort,
				Collection: collection,
				VectorSize: vectorSize,
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant at %s:%d: %w", qdrantHost, qdrantPort, err)
			}
			defer points.Close()
			log.Info("qdrant store ready",
				slog.String("host", qdrantHost), slog.Int("port", qdrantPort), slog.String("collection", collection))

			records, err := openRecordStore()
			if err != nil {
				return fmt.Errorf("ingest: failed to open record store: %w", err)
			}
			if records != nil {
				defer records.Close()
			}

			graph, err := openGraphStore()
			if err != nil {
				return fmt.Errorf("ingest: failed to open graph store: %w", err)
			}
			if graph != nil {
				defer graph.Edges().Close()
			}

			if !cmd.Flags().Changed("max-block-size") {
				maxBlockSize = getEnvInt("CATENA_MAX_BLOCK_SIZE", 0)
			}

			cfg := &pipeline.Config{
				MaxBlockSize: maxBlockSize,
				EmbeddingTTL: cacheTTL(),
				RefreshAhead: os.Getenv("CATENA_CACHE_REFRESH_AHEAD") == "true",
				Records:      records,
				Graph:        graph,
				Registerer:   prometheus.DefaultRegisterer,
			}
			pipe, err := pipeline.New(parser.NewRegistry(), backend, points, cfg)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			payloads, err := collectPayloads(files, resourceID)
			if err != nil {
				return err
			}

			log.Info("starting ingestion", slog.Int("resources", len(payloads)))
			for _, p := range payloads {
				result, err := pipe.Ingest(ctx, p.id, contentType, p.body)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", p.id, err)
				}
				log.Info("resource ingested",
					slog.String("resource_id", p.id),
					slog.String("resource_point", result.ResourcePointID),
					slog.String("parser", result.ParserType),
					slog.Int("blocks", len(result.BlockPointIDs)),
					slog.Int("fragments", len(result.FragmentPointIDs)),
				)
				fmt.Printf("%s\t%s\t%d blocks\t%d fragments\n",
					p.id, result.ResourcePointID, len(result.BlockPointIDs), len(result.FragmentPointIDs))
			}

			log.Info("ingestion complete", slog.Int("resources", len(payloads)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&contentType, "type", "t", "", "Content type tag (text, markdown, json); auto-detected when empty")
	cmd.Flags().StringVar(&resourceID, "id", "", "Resource identifier (defaults to the file name)")
	cmd.Flags().IntVar(&maxBlockSize, "max-block-size", 0, "Soft bound on block size in characters (default 1000)")
	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Input file to ingest (repeatable; stdin when omitted)")

	return cmd
}

// payload is one resource ready for ingestion.
type payload struct {
	id   string
	body string
}

// collectPayloads reads the input files, or stdin when none are given.
func collectPayloads(files []string, resourceID string) ([]payload, error) {
	if len(files) == 0 {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("ingest: failed to read stdin: %w", err)
		}
		return []payload{{id: resourceID, body: string(body)}}, nil
	}

	out := make([]payload, 0, len(files))
	for _, f := range files {
		body, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("ingest: failed to read %s: %w", f, err)
		}
		id := resourceID
		if id == "" || len(files) > 1 {
			id = filepath.Base(f)
		}
		out = append(out, payload{id: id, body: string(body)})
	}
	return out, nil
}
