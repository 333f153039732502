package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuannm99/novaquery/server/novaquerywire"
)

func newServeCmd() *cobra.Command {
	var addr, metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wire protocol over TCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Server.MetricsAddr = metricsAddr
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			log := cfg.NewLogger().With("app", cfg.AppName)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return novaquerywire.Run(ctx, novaquerywire.ServerConfig{
				Addr:        cfg.Server.Addr,
				MetricsAddr: cfg.Server.MetricsAddr,
			}, db, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8866", "listen address")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address")
	return cmd
}
