package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/traceworks/gitprov/internal/cache"
	"github.com/traceworks/gitprov/internal/encode"
	"github.com/traceworks/gitprov/internal/mine"
	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/pipeline"
	"github.com/traceworks/gitprov/internal/prov"
	"github.com/traceworks/gitprov/internal/storage"
	"github.com/traceworks/gitprov/internal/submodel"
)

var (
	extractURL       string
	extractClone     string
	extractFormat    string
	extractOut       string
	extractResolve   string
	extractPseudonym bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Mine a repository and assemble its provenance graph",
	Long: `Extract mines the configured project, stages the raw records, runs the
assembly pipeline and writes the graph in the chosen format.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "project url (overrides config)")
	extractCmd.Flags().StringVar(&extractClone, "clone", "", "local clone path (overrides config)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "", "output format: prov-json, prov-n, dot, stats, stats-csv")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "output file (default stdout)")
	extractCmd.Flags().StringVar(&extractResolve, "resolve-agents", "", "double agent match policy")
	extractCmd.Flags().BoolVar(&extractPseudonym, "pseudonymize", false, "replace personal data with keyed digests")
	rootCmd.AddCommand(extractCmd)
}

func applyExtractFlags() {
	if extractURL != "" {
		cfg.Project.URL = extractURL
	}
	if extractClone != "" {
		cfg.Project.ClonePath = extractClone
	}
	if extractFormat != "" {
		cfg.Output.Format = extractFormat
	}
	if extractOut != "" {
		cfg.Output.File = extractOut
	}
	if extractResolve != "" {
		cfg.Pipeline.ResolvePolicy = extractResolve
	}
	if extractPseudonym {
		cfg.Pipeline.Pseudonymize = true
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	applyExtractFlags()

	if err := cfg.Validate(); err != nil {
		return err
	}

	records, project, err := mineProject(ctx)
	if err != nil {
		return err
	}

	graph, report, err := assembleGraph(ctx, records)
	if err != nil {
		return err
	}

	if skipped := report.SkippedRecords(); skipped > 0 {
		logger.WithField("skipped", skipped).Warn("Some records were malformed and skipped")
	}
	logger.WithFields(map[string]any{
		"project":   project,
		"nodes":     len(graph.Nodes),
		"relations": len(graph.Relations),
	}).Info("Assembled provenance graph")

	return writeGraph(graph)
}

// mineProject runs every configured miner and stages the results.
func mineProject(ctx context.Context) (models.RecordSet, string, error) {
	project := cfg.Project.ClonePath
	if cfg.Project.URL != "" {
		project = cfg.Project.URL
	}

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.LocalPath, cfg.Storage.PostgresDSN)
	if err != nil {
		return models.RecordSet{}, "", err
	}
	defer store.Close()

	miners, closers, err := buildMiners()
	if err != nil {
		return models.RecordSet{}, "", err
	}
	defer func() {
		for _, c := range closers {
			c()
		}
	}()

	run, err := store.CreateRun(ctx, project)
	if err != nil {
		return models.RecordSet{}, "", err
	}

	records, err := mine.All(ctx, miners...)
	if err != nil {
		store.FinishRun(ctx, run.ID, storage.RunStatusFailed)
		return models.RecordSet{}, "", err
	}

	if err := store.SaveRecords(ctx, run.ID, records); err != nil {
		store.FinishRun(ctx, run.ID, storage.RunStatusFailed)
		return models.RecordSet{}, "", err
	}
	if err := store.FinishRun(ctx, run.ID, storage.RunStatusComplete); err != nil {
		return models.RecordSet{}, "", err
	}

	logger.WithField("run", run.ID).Info("Staged mined records")
	return records, project, nil
}

func buildMiners() ([]mine.Miner, []func(), error) {
	var miners []mine.Miner
	var closers []func()

	if cfg.Project.ClonePath != "" {
		miners = append(miners, mine.NewGitMiner(cfg.Project.ClonePath))
	}

	if cfg.Project.URL != "" {
		u, err := url.Parse(cfg.Project.URL)
		if err != nil {
			return nil, nil, err
		}
		project := strings.Trim(u.Path, "/")

		if strings.EqualFold(u.Host, "github.com") {
			owner, repo, err := mine.SplitRepoPath(project)
			if err != nil {
				return nil, nil, err
			}
			miners = append(miners, mine.NewGitHubMiner(cfg.GitHub.Token, owner, repo, cfg.GitHub.RateLimit))
		} else {
			c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
			if err != nil {
				logger.WithError(err).Warn("Cache unavailable, continuing without it")
				c = nil
			} else {
				closers = append(closers, func() { c.Close() })
			}

			base := cfg.GitLab.BaseURL
			if base == "" {
				base = u.Scheme + "://" + u.Host
			}
			gl, err := mine.NewGitLabMiner(base, cfg.GitLab.Token, project, cfg.GitLab.RateLimit, c)
			if err != nil {
				return nil, nil, err
			}
			miners = append(miners, gl)
		}
	}

	return miners, closers, nil
}

func assembleGraph(ctx context.Context, records models.RecordSet) (*prov.Graph, *pipeline.Report, error) {
	builders := submodel.DefaultBuilders(records)
	return pipeline.Run(ctx, builders, pipeline.Options{
		ResolvePolicy: cfg.Pipeline.ResolvePolicy,
		Pseudonymize:  cfg.Pipeline.Pseudonymize,
		PseudonymKey:  []byte(cfg.Pipeline.PseudonymKey),
	})
}

func writeGraph(graph *prov.Graph) error {
	out := os.Stdout
	if cfg.Output.File != "" {
		f, err := os.Create(cfg.Output.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	format := cfg.Output.Format
	if format == "" {
		format = encode.FormatPROVJSON
	}
	return encode.Write(out, graph, format)
}
