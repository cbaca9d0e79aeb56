package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tourguard/safety-band/internal/config"
	"github.com/tourguard/safety-band/internal/logger"
	"github.com/tourguard/safety-band/internal/service/server"
	"github.com/tourguard/safety-band/internal/version"
)

func main() {
	opts := &server.Options{}
	logLevel := ""

	root := &cobra.Command{
		Use:   "safety-server",
		Short: "Tourist safety band monitoring backend.",
		Long: "Monitoring backend for tourist safety bands: registers visitors, tracks " +
			"band telemetry across safety zones, runs the two-level SOS escalation " +
			"state machine and archives resolved alerts to the incident log.",
		Version: version.Short(),
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if logLevel == "" {
				return
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				logger.Warnf(context.Background(), "Unknown log level %q, keeping %q", logLevel, logger.Level())

				return
			}

			logger.SetLevel(level)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return server.Run(ctx, opts)
		},
	}

	root.Flags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultConfigFilename,
		"path to the settings YAML file")
	root.Flags().StringVar(&opts.ListenAddress, "listen", "",
		"listen address override for the HTTP server")
	root.Flags().StringVar(&opts.IncidentDBPath, "incident-db", "",
		"incident database path override")
	root.Flags().StringVar(&opts.SnapshotFile, "snapshot-file", "",
		"registry snapshot path override")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn, error or fatal")

	version.AttachCobraVersionCommand(root)

	if err := root.Execute(); err != nil {
		logger.Fatalf(context.Background(), "safety-server failed: %v", err)
	}
}
