package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/tubescrape/internal/config"
	"github.com/FranksOps/tubescrape/internal/report"
	"github.com/FranksOps/tubescrape/internal/storage"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		format  string
		query   string
		outcome string
		since   time.Duration
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise the attempt audit log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Storage.Driver == config.DriverNone {
				return fmt.Errorf("report needs --storage-driver and --storage-dsn")
			}

			filter := storage.Filter{
				Query:   query,
				Outcome: storage.Outcome(outcome),
				Limit:   limit,
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			attempts, err := a.backend.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query attempts: %w", err)
			}

			summary := report.GenerateSummary(attempts)
			switch format {
			case "json":
				return report.WriteJSON(cmd.OutOrStdout(), summary)
			case "text":
				return report.WriteText(cmd.OutOrStdout(), summary)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	cmd.Flags().StringVar(&query, "query", "", "only attempts for this query")
	cmd.Flags().StringVar(&outcome, "outcome", "", "only attempts with this outcome: ok, empty, error")
	cmd.Flags().DurationVar(&since, "since", 0, "only attempts newer than this")
	cmd.Flags().IntVar(&limit, "limit", 0, "max attempts to summarise, newest first")
	return cmd
}
