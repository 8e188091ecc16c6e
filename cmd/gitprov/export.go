package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/traceworks/gitprov/internal/encode"
	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/storage"
)

var exportRunID string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Assemble the graph and load it into Neo4j",
	Long: `Export assembles the graph from the latest staged run (or --run) and
merges it into the configured Neo4j instance for interactive querying.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportRunID, "run", "", "run id (default: latest complete run)")
	exportCmd.Flags().StringVar(&extractResolve, "resolve-agents", "", "double agent match policy")
	exportCmd.Flags().BoolVar(&extractPseudonym, "pseudonymize", false, "replace personal data with keyed digests")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	applyExtractFlags()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Output.Neo4jURI == "" {
		return gperrors.Config("output.neo4j_uri must be set for export")
	}

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.LocalPath, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	runID := exportRunID
	if runID == "" {
		project := cfg.Project.ClonePath
		if cfg.Project.URL != "" {
			project = cfg.Project.URL
		}
		run, err := store.LatestRun(ctx, project)
		if err != nil {
			return err
		}
		runID = run.ID
	}

	records, err := store.LoadRecords(ctx, runID)
	if err != nil {
		return err
	}

	graph, _, err := assembleGraph(ctx, records)
	if err != nil {
		return err
	}

	exporter, err := encode.NewNeo4jExporter(ctx, cfg.Output.Neo4jURI, cfg.Output.Neo4jUser, cfg.Output.Neo4jPassword)
	if err != nil {
		return err
	}
	defer exporter.Close(ctx)

	if err := exporter.Export(ctx, graph); err != nil {
		return err
	}

	logger.WithFields(map[string]any{
		"run":       runID,
		"nodes":     len(graph.Nodes),
		"relations": len(graph.Relations),
	}).Info("Exported graph to Neo4j")
	return nil
}
