package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/traceworks/gitprov/internal/storage"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List staged mining runs for the configured project",
	RunE:  runRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := storage.Open(cfg.Storage.Type, cfg.Storage.LocalPath, cfg.Storage.PostgresDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	project := cfg.Project.ClonePath
	if cfg.Project.URL != "" {
		project = cfg.Project.URL
	}

	runs, err := store.ListRuns(ctx, project)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs staged for", project)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTATUS\tSTARTED\tFINISHED")
	for _, r := range runs {
		finished := "-"
		if r.FinishedAt != nil {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished)
	}
	return tw.Flush()
}
