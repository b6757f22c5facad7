// Package main provides the backfill-chroma entry point.
//
// backfill-chroma copies observations, session summaries and user prompts
// from the memory store into a Chroma collection, adding only the documents
// the collection does not already hold. Running it again is always safe.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/thebtf/chroma-backfill/internal/backfill"
	"github.com/thebtf/chroma-backfill/internal/collections"
	"github.com/thebtf/chroma-backfill/internal/config"
	"github.com/thebtf/chroma-backfill/internal/db"
	"github.com/thebtf/chroma-backfill/internal/embedding"
	"github.com/thebtf/chroma-backfill/internal/report"
	"github.com/thebtf/chroma-backfill/internal/vector/chroma"
)

// Version is set at build time via ldflags.
var Version = "dev"

type options struct {
	dbPath     string
	host       string
	collection string
	project    string
	tenant     string
	database   string
	apiKey     string
	embedURL   string
	embedModel string
	targets    string
	port       int
	batchSize  int
	pageSize   int
	ssl        bool
	dryRun     bool
	debug      bool

	collectionSet bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	opts := &options{}

	cmd := &cobra.Command{
		Use:   "backfill-chroma",
		Short: "Backfill the Chroma vector index from the memory store",
		Long: `Reads observations, session summaries and user prompts from the memory
store and adds every document missing from the Chroma collection.
Documents already in the collection are skipped, so the command can be
re-run at any time.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(stderr, opts.debug)

			opts.collectionSet = cmd.Flags().Changed("collection")

			if err := run(cmd.Context(), opts, stdout); err != nil {
				reportError(stderr, opts, err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dbPath, "db", cfg.DBPath, "Path to the memory store (SQLite file or postgres:// DSN)")
	flags.StringVar(&opts.host, "host", cfg.ChromaHost, "Chroma server host")
	flags.IntVar(&opts.port, "port", cfg.ChromaPort, "Chroma server port")
	flags.StringVar(&opts.collection, "collection", chroma.DefaultCollection, "Chroma collection name")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Show what would be added without writing")
	flags.StringVar(&opts.project, "project", "", "Only backfill this project (default: all projects)")
	flags.BoolVar(&opts.ssl, "ssl", cfg.ChromaSSL, "Connect to Chroma over https")
	flags.StringVar(&opts.tenant, "tenant", cfg.ChromaTenant, "Chroma tenant")
	flags.StringVar(&opts.database, "database", cfg.ChromaDatabase, "Chroma database")
	flags.StringVar(&opts.apiKey, "api-key", cfg.ChromaAPIKey, "Chroma API key")
	flags.IntVar(&opts.batchSize, "batch-size", backfill.DefaultBatchSize, "Documents per add request")
	flags.IntVar(&opts.pageSize, "page-size", backfill.DefaultPageSize, "Ids per page when reading the collection")
	flags.StringVar(&opts.embedURL, "embed-url", "", "OpenAI-compatible embeddings endpoint (default: local all-MiniLM-L6-v2)")
	flags.StringVar(&opts.embedModel, "embed-model", embedding.DefaultModel,
		"Embedding model used with --embed-url; must match the model the collection was written with")
	flags.StringVar(&opts.targets, "targets", "", "YAML file listing collections (and their projects) to backfill in one run")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	return cmd
}

func setupLogging(w io.Writer, debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: true})
}

// resolveTargets returns the collections to backfill: every entry of the
// --targets file, or the single collection named by the flags.
func resolveTargets(opts *options) ([]*collections.Collection, error) {
	if opts.targets == "" {
		name := ""
		if opts.collectionSet {
			name = opts.collection
		}
		return []*collections.Collection{{
			Name:    collections.ResolveName(name, opts.project),
			Project: opts.project,
		}}, nil
	}

	if opts.collectionSet || opts.project != "" {
		return nil, errors.New("--targets cannot be combined with --collection or --project")
	}
	registry, err := collections.Load(opts.targets)
	if err != nil {
		return nil, err
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no collections listed in %s", opts.targets)
	}
	log.Debug().Strs("collections", registry.Names()).Str("file", opts.targets).Msg("Loaded targets")
	return registry.All(), nil
}

func run(ctx context.Context, opts *options, out io.Writer) error {
	targets, err := resolveTargets(opts)
	if err != nil {
		return err
	}

	store, err := db.Open(ctx, db.Config{Path: opts.dbPath})
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	log.Debug().Str("dialect", string(store.Dialect())).Msg("Memory store opened")

	chromaCfg := chroma.Config{
		Host:     opts.host,
		Port:     opts.port,
		SSL:      opts.ssl,
		Tenant:   opts.tenant,
		Database: opts.database,
		APIKey:   opts.apiKey,
	}
	if opts.embedURL != "" {
		embedder, err := embedding.New(embedding.Config{BaseURL: opts.embedURL, Model: opts.embedModel})
		if err != nil {
			return err
		}
		chromaCfg.Embedder = embedder
		log.Info().Str("url", opts.embedURL).Str("model", embedder.Model()).Msg("Computing embeddings client-side")
	}
	client, err := chroma.NewClient(chromaCfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	fmt.Fprintf(out, "Connecting to ChromaDB at %s...\n", client.BaseURL())
	if err := client.Heartbeat(ctx); err != nil {
		return err
	}
	version, err := client.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected (version: %s)\n", version)

	for _, target := range targets {
		coll, err := client.GetOrCreateCollection(ctx, target.Name)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\nCollection '%s'", coll.Name())
		if target.Project != "" {
			fmt.Fprintf(out, " (project %s)", target.Project)
		}
		fmt.Fprintln(out)
		log.Info().Str("collection", coll.Name()).Str("id", coll.ID()).Msg("Using collection")

		backfiller := backfill.New(store, coll, backfill.Options{
			Project:   target.Project,
			BatchSize: opts.batchSize,
			PageSize:  opts.pageSize,
			DryRun:    opts.dryRun,
		})

		stats, err := backfiller.Run(ctx)
		if err != nil {
			return err
		}

		printSummary(out, coll.Name(), stats)
	}
	return nil
}

func printSummary(out io.Writer, collection string, stats *backfill.Stats) {
	r := report.NewRenderer(out)

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 50))
	if stats.DryRun {
		fmt.Fprintln(out, r.Notice("Dry run complete, no documents were written."))
	} else {
		fmt.Fprintln(out, r.Success("Backfill complete!"))
	}

	rows := make([][]string, 0, len(stats.Tables))
	for _, t := range stats.Tables {
		rows = append(rows, []string{
			t.Table,
			strconv.Itoa(t.Rows),
			strconv.Itoa(t.Documents),
			strconv.Itoa(t.SkippedExisting),
			strconv.Itoa(t.SkippedEmpty),
			strconv.Itoa(t.Pending),
			strconv.Itoa(t.Added),
		})
	}
	fmt.Fprint(out, r.RenderTable(report.Table{
		Headers: []string{"Table", "Rows", "Documents", "Existing", "Empty", "Pending", "Added"},
		Rows:    rows,
	}))

	if stats.DryRun {
		fmt.Fprintf(out, "  Documents to add: %d\n", stats.TotalPending())
	} else {
		fmt.Fprintf(out, "  Documents added: %d\n", stats.TotalAdded())
	}
	fmt.Fprintf(out, "  Collection %s total: %d\n", collection, stats.FinalCount)
}

func reportError(w io.Writer, opts *options, err error) {
	switch {
	case errors.Is(err, db.ErrStoreNotFound):
		fmt.Fprintf(w, "Error: Database not found at %s\n", opts.dbPath)
		fmt.Fprintln(w, "Set --db or CLAUDE_MEM_DATA_DIR environment variable.")
	case errors.Is(err, chroma.ErrUnreachable):
		fmt.Fprintf(w, "Error: Cannot connect to ChromaDB at %s:%d\n", opts.host, opts.port)
		fmt.Fprintln(w, "Make sure your Chroma server is running.")
		fmt.Fprintf(w, "  Detail: %v\n", err)
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(w, "Interrupted. Documents written so far are kept; re-run to continue.")
	default:
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}
