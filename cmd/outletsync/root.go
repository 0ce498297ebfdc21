package main

import (
	"github.com/spf13/cobra"

	"outlet-sync/internal/config"
)

type rootOptions struct {
	configFile string
	logLevel   string
	cfg        config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "outletsync",
		Short: "Sync store catalog outlets to the partner marketplace",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.Server.LogLevel = opts.logLevel
			}
			config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogFormat)
			opts.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is configs/application.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(opts),
		newRunCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}
