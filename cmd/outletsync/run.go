package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"outlet-sync/internal/app/server"
	"outlet-sync/internal/engine"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync every campaign once and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := server.RunOnce(cmd.Context(), opts.cfg)
			if !quiet && rep.RunID != "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(rep); encErr != nil {
					return encErr
				}
			}
			if err != nil {
				return err
			}
			return failedCampaigns(rep)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the report")
	return cmd
}

// failedCampaigns turns aborted campaigns into a non-zero exit.
func failedCampaigns(rep engine.Report) error {
	n := 0
	for _, c := range rep.Campaigns {
		if c.Aborted != "" && c.Aborted != engine.AbortNoLocalStores {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d campaign(s) aborted", n)
	}
	return nil
}
