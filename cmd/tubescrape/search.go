package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/FranksOps/tubescrape/internal/youtube"
)

func newSearchCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Print the videos on the first results page for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newScraper()
			if err != nil {
				return err
			}
			videos := s.GetVideos(cmd.Context(), strings.Join(args, " "))
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), videos)
			}
			return writeTable(cmd.OutOrStdout(), videos)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, videos []youtube.SearchResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEO ID\tTITLE\tTHUMBNAIL")
	for _, v := range videos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.VideoID, v.Title, v.ThumbnailURL)
	}
	return tw.Flush()
}
