package main

import (
	"github.com/spf13/cobra"
)

var replayTimestamp string
var replayDryRun bool

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the graph by replaying journal entries up to a timestamp",
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, snap, err := shortLivedEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		result, err := snap.ReplayToTimestamp(cmd.Context(), replayTimestamp, replayDryRun)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayTimestamp, "to", "", "replay every change up to and including this timestamp")
	replayCmd.Flags().BoolVar(&replayDryRun, "dry-run", false, "report the replay plan without applying it")
	_ = replayCmd.MarkFlagRequired("to")
}
