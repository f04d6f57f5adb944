package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/factgate/factgate/internal/canon"
	"github.com/factgate/factgate/internal/config"
	"github.com/factgate/factgate/internal/graph"
	"github.com/factgate/factgate/internal/mcp"
	"github.com/factgate/factgate/internal/pipeline"
	"github.com/factgate/factgate/internal/review"
	"github.com/factgate/factgate/internal/store"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		if err := runValidate(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "apply-reviews":
		if err := runApplyReviews(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "import":
		if err := runImport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "mcp":
		if err := runMCP(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Printf("factgate %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// resolve splits args into positionals and resolves configuration with
// the shared flags applied.
func resolve(args []string) ([]string, config.ResolvedConfig, map[string]string, error) {
	var positionals []string
	flags := map[string]string{}
	opts := config.ResolveOptions{}

	i := 0
	for i < len(args) {
		arg := args[i]
		value := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			return ""
		}
		switch {
		case arg == "--config":
			opts.ConfigPath = value()
		case arg == "--entities-db":
			opts.CLIEntitiesDB = value()
		case arg == "--out":
			opts.CLIOutputDir = value()
		case arg == "--audit-db":
			opts.CLIAuditDB = value()
		case arg == "--neo4j":
			opts.CLINeo4jURI = value()
		case arg == "--workers":
			flags["workers"] = value()
		case arg == "--execute":
			flags["execute"] = "true"
		case arg == "--reviewed":
			flags["reviewed"] = value()
		case strings.HasPrefix(arg, "-"):
			return nil, config.ResolvedConfig{}, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			positionals = append(positionals, arg)
		}
		i++
	}

	resolved, err := config.ResolveConfig(opts)
	if err != nil {
		return nil, config.ResolvedConfig{}, nil, err
	}
	return positionals, resolved, flags, nil
}

func loadIndex(resolved config.ResolvedConfig) (*canon.Index, error) {
	dbPath := resolved.EntitiesDB.Value
	if dbPath == "" {
		return nil, fmt.Errorf("no entities database configured (--entities-db, FACTGATE_ENTITIES_DB, or entities_db in config)")
	}
	ix := canon.NewIndex()
	n, err := ix.LoadFromDB(context.Background(), dbPath)
	if err != nil {
		return nil, fmt.Errorf("loading canonical index: %w", err)
	}
	fmt.Printf("Loaded %d canonical records from %s\n", n, dbPath)
	return ix, nil
}

func runValidate(args []string) error {
	positionals, resolved, flags, err := resolve(args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 {
		return fmt.Errorf("usage: factgate run <input.jsonl> [--entities-db path] [--out dir] [--workers n]")
	}
	input := positionals[0]

	outDir := resolved.OutputDir.Value
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	workers := 1
	if w := flags["workers"]; w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			workers = n
		}
	} else if w := resolved.Workers.Value; w != "" {
		if n, err := strconv.Atoi(w); err == nil && n > 0 {
			workers = n
		}
	}

	ix, err := loadIndex(resolved)
	if err != nil {
		return err
	}

	cfg := resolved.ValidationConfig()
	p, err := pipeline.New(cfg, ix, workers)
	if err != nil {
		return err
	}

	ctx := context.Background()
	res, err := p.RunFile(ctx, input)
	if err != nil {
		return err
	}

	paths := pipeline.ExportPaths{
		SafeRelations:   filepath.Join(outDir, "safe_relations.jsonl"),
		ReviewEntities:  filepath.Join(outDir, "review_entities.jsonl"),
		ReviewRelations: filepath.Join(outDir, "review_relations.jsonl"),
		Report:          filepath.Join(outDir, "run_report.json"),
	}
	report, err := pipeline.Export(res, cfg, paths)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", report.RunID)
	fmt.Printf("  sentences:        %d\n", report.Counters["total_sentences"])
	fmt.Printf("  safe relations:   %d\n", report.SafeRelations)
	fmt.Printf("  review entities:  %d\n", report.ReviewEntities)
	fmt.Printf("  review relations: %d\n", report.ReviewRelations)
	fmt.Printf("  report:           %s\n", paths.Report)

	if auditPath := resolved.AuditDB.Value; auditPath != "" {
		st, err := store.NewStore(auditPath)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer st.Close()
		err = st.RecordRun(ctx, &store.Run{
			RunID:           report.RunID,
			StartedAt:       report.GeneratedAt,
			ConfigJSON:      store.MarshalJSONField(report.Config),
			CountersJSON:    store.MarshalJSONField(report.Counters),
			SafeRelations:   report.SafeRelations,
			ReviewEntities:  report.ReviewEntities,
			ReviewRelations: report.ReviewRelations,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func runApplyReviews(args []string) error {
	positionals, resolved, _, err := resolve(args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 {
		return fmt.Errorf("usage: factgate apply-reviews <reviewed.jsonl> [--out dir]")
	}

	decisions, summary, err := review.Load(positionals[0])
	if err != nil {
		return err
	}
	approved := review.Apply(decisions, summary)

	outDir := resolved.OutputDir.Value
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	outPath := filepath.Join(outDir, "approved_entities.jsonl")

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	enc := json.NewEncoder(f)
	for _, ent := range approved {
		if err := enc.Encode(ent); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	fmt.Printf("Reviewed %d: %d approved (%d corrected), %d rejected, %d pending\n",
		summary.Total, summary.Approved, summary.Corrected, summary.Rejected, summary.Pending)
	fmt.Printf("Approved entities: %s\n", outPath)
	return nil
}

func runImport(args []string) error {
	positionals, resolved, flags, err := resolve(args)
	if err != nil {
		return err
	}
	if len(positionals) != 1 {
		return fmt.Errorf("usage: factgate import <safe_relations.jsonl> [--neo4j uri] [--execute]")
	}

	relations, skipped, err := graph.LoadSafeRelations(positionals[0])
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d malformed lines\n", skipped)
	}

	execute := flags["execute"] == "true"
	ctx := context.Background()

	var im *graph.Importer
	if execute {
		uri := resolved.Neo4jURI.Value
		if uri == "" {
			return fmt.Errorf("no Neo4j URI configured (--neo4j, FACTGATE_NEO4J_URI, or neo4j.uri in config)")
		}
		driver, err := neo4j.NewDriverWithContext(uri,
			neo4j.BasicAuth(resolved.Neo4jUser.Value, resolved.Neo4jPassword.Value, ""))
		if err != nil {
			return fmt.Errorf("connecting to neo4j: %w", err)
		}
		defer driver.Close(ctx)
		im = graph.NewImporter(driver)
	} else {
		im = &graph.Importer{DryRun: true}
		fmt.Println("Dry run (pass --execute to write to the graph)")
	}

	stats, err := im.Import(ctx, relations)
	if err != nil {
		return err
	}
	fmt.Printf("Import: %d total, %d created, %d already present, %d unmatched, %d errors\n",
		stats.Total, stats.Created, stats.SkippedExists, stats.SkippedNoMatch, stats.Errors)

	if auditPath := resolved.AuditDB.Value; auditPath != "" {
		st, err := store.NewStore(auditPath)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer st.Close()
		return st.RecordImport(ctx, &store.ImportRecord{
			DryRun:  !execute,
			Total:   stats.Total,
			Created: stats.Created,
			Skipped: stats.SkippedExists + stats.SkippedNoMatch,
			Errors:  stats.Errors,
		})
	}
	return nil
}

func runMCP(args []string) error {
	_, resolved, _, err := resolve(args)
	if err != nil {
		return err
	}

	ix, err := loadIndex(resolved)
	if err != nil {
		return err
	}

	cfg := mcp.ServerConfig{
		Index:   ix,
		Config:  resolved.ValidationConfig(),
		Version: version,
	}
	if auditPath := resolved.AuditDB.Value; auditPath != "" {
		st, err := store.NewStore(auditPath)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		defer st.Close()
		cfg.Store = st
	}

	srv := mcp.NewServer(cfg)
	return server.ServeStdio(srv)
}

func printUsage() {
	fmt.Println(`factgate - knowledge graph enrichment gatekeeper

Usage:
  factgate run <input.jsonl>            Validate annotated sentences and
                                        partition into safe/review outputs
  factgate apply-reviews <reviewed>     Apply human decisions to the
                                        review-entities queue
  factgate import <safe_relations>     Import safe relations into Neo4j
                                        (dry-run by default, --execute to write)
  factgate mcp                          Serve lookup/validation tools over MCP
  factgate version                      Print version

Common flags:
  --config <path>        Config file (default ~/.factgate/config.yaml)
  --entities-db <path>   Canonical entities SQLite database
  --out <dir>            Output directory
  --audit-db <path>      Audit trail SQLite database
  --neo4j <uri>          Neo4j bolt URI (import)
  --workers <n>          Parallel validation workers (run)
  --execute              Actually write to the graph (import)`)
}
