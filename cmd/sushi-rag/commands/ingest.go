package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/sushi-rag/internal/app"
	"github.com/54b3r/sushi-rag/internal/embedder"
	"github.com/54b3r/sushi-rag/internal/ingestion"
	"github.com/54b3r/sushi-rag/internal/logging"
	"github.com/54b3r/sushi-rag/internal/rag"
)

// NewIngestCmd constructs the `sushi-rag ingest` command, which populates the
// vector store collection the server answers from.
func NewIngestCmd() *cobra.Command {
	var (
		paths        []string
		urls         []string
		title        string
		topic        string
		manifestPath string
		cfg          ingestion.Config
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest sushi documentation into the vector store",
		Long: `Load markdown or text documents from files, directories or URLs, split them
into chunks, embed them and upsert them into the Qdrant collection. The
collection is created on first use, sized to the embedding model.

Each chunk carries "source", "title" and "topic" metadata. The title comes
from the first "# " heading (or the page <title> for HTML), the topic from
the parent directory or URL path segment. --title and --topic override both.

A manifest (SUSHI_MANIFEST_DB, default ~/.sushi-rag/manifest.db) remembers the
content hash of every source so unchanged sources are skipped. Use --force to
re-ingest everything, or SUSHI_MANIFEST_DB=disabled to turn it off.

Examples:
  sushi-rag ingest --path ./docs
  sushi-rag ingest --path menu.md --topic menu
  sushi-rag ingest --url https://example.com/guides/sushi-rice --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			if len(paths) == 0 && len(urls) == 0 {
				return fmt.Errorf("ingest: at least one --path or --url is required")
			}

			embCfg := embedder.ConfigFromEnv()
			embedder.Preflight(log, embCfg)
			emb, err := embedder.New(embCfg)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			qcfg := app.QdrantFromEnv()
			vs, err := rag.NewQdrantStore(qcfg)
			if err != nil {
				return fmt.Errorf("ingest: failed to connect to Qdrant at %s:%d: %w", qcfg.Host, qcfg.Port, err)
			}
			defer vs.Close()

			manifest := openManifest(log, manifestPath)
			if manifest != nil {
				defer manifest.Close()
			}

			cfg.Collection = vs.Collection()
			if !cmd.Flags().Changed("chunk-size") {
				cfg.ChunkSize = getEnvInt("INGEST_CHUNK_SIZE", cfg.ChunkSize)
			}
			if !cmd.Flags().Changed("chunk-overlap") {
				cfg.ChunkOverlap = getEnvInt("INGEST_CHUNK_OVERLAP", cfg.ChunkOverlap)
			}
			pipeline, err := ingestion.NewPipeline(emb, vs, manifest, &cfg, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			var docs []ingestion.Document
			for _, p := range paths {
				loaded, err := ingestion.LoadPath(p)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, loaded...)
			}
			for _, u := range urls {
				log.Info("fetching", slog.String("url", u))
				doc, err := pipeline.FetchURL(ctx, u)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				docs = append(docs, doc)
			}
			for i := range docs {
				if title != "" {
					docs[i].Title = title
				}
				if topic != "" {
					docs[i].Topic = topic
				}
			}

			log.Info("starting ingestion",
				slog.Int("sources", len(docs)),
				slog.String("collection", cfg.Collection),
				slog.Int("chunk_size", cfg.ChunkSize),
				slog.Int("chunk_overlap", cfg.ChunkOverlap),
			)

			rep, err := pipeline.Ingest(ctx, docs)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed after %d sources: %w", rep.Ingested, err)
			}

			log.Info("ingestion complete",
				slog.Int("ingested", rep.Ingested),
				slog.Int("skipped", rep.Skipped),
				slog.Int("chunks", rep.Chunks),
				slog.Int("pruned", rep.Pruned),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d sources (%d chunks), skipped %d unchanged, pruned %d stale chunks\n",
				rep.Ingested, rep.Chunks, rep.Skipped, rep.Pruned)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&paths, "path", nil, "File or directory of .md/.markdown/.txt documents (repeatable)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "Document URL to fetch and ingest (repeatable)")
	cmd.Flags().StringVar(&title, "title", "", "Title stored on every chunk, overriding inference")
	cmd.Flags().StringVar(&topic, "topic", "", "Topic stored on every chunk, overriding inference")
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Manifest database path (default: SUSHI_MANIFEST_DB or ~/.sushi-rag/manifest.db)")
	cmd.Flags().BoolVar(&cfg.Force, "force", false, "Re-ingest sources even when unchanged")
	cmd.Flags().IntVar(&cfg.ChunkSize, "chunk-size", 1000, "Maximum characters per chunk")
	cmd.Flags().IntVar(&cfg.ChunkOverlap, "chunk-overlap", 200, "Characters shared by consecutive chunks")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 64, "Chunks embedded per request")

	return cmd
}
