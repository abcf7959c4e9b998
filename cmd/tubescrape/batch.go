package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/tubescrape/internal/pipeline"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		file   string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "batch [query]...",
		Short: "Run many searches concurrently, each with its own retry budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			queries := args
			if file != "" {
				fromFile, err := readQueries(file)
				if err != nil {
					return err
				}
				queries = append(queries, fromFile...)
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries given")
			}

			s, err := a.newScraper()
			if err != nil {
				return err
			}
			p := pipeline.Pipeline{
				Searcher:    s,
				Concurrency: a.cfg.Concurrency,
				Logger:      a.logger,
			}
			results, err := p.Run(cmd.Context(), queries)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%q\t%d videos\n", r.Query, len(r.Videos))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one query per line")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().Int("concurrency", 4, "searches in flight at once")
	_ = a.v.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))
	return cmd
}

// readQueries returns the non-blank lines of path. Lines starting with # are skipped.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return queries, nil
}
