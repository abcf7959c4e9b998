package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "watch <videoId>",
		Short: "Print the watch URL for a video id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newScraper()
			if err != nil {
				return err
			}
			video := s.Lookup(args[0])
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					VideoID  string `json:"videoId"`
					WatchURL string `json:"watchUrl"`
				}{video.VideoID, video.WatchURL()})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), video.WatchURL())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
