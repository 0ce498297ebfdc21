package main

import (
	"github.com/spf13/cobra"

	"outlet-sync/internal/app/server"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with scheduled and catalog-triggered syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return server.Serve(cmd.Context(), opts.cfg)
		},
	}
}
