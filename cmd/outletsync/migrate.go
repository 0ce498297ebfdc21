package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"outlet-sync/internal/storage"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := storage.Migrate(opts.cfg.DSN(), opts.cfg.Migrations.Path); err != nil {
				return err
			}
			log.Info().Str("path", opts.cfg.Migrations.Path).Msg("migrations applied")
			return nil
		},
	}
}
