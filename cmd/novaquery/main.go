package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuannm99/novaquery"
	"github.com/tuannm99/novaquery/internal"
)

type globalFlags struct {
	config string
	schema string
	data   string
	debug  bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "novaquery",
	Short:         "In-memory SQL query engine over typed tables",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "f", "", "config file (yaml)")
	pf.StringVar(&flags.schema, "schema", "", "schema file, overrides schema.path")
	pf.StringVar(&flags.data, "data", "", "JSON snapshot to preload, overrides data.path")
	pf.BoolVar(&flags.debug, "debug", false, "debug logging")

	rootCmd.AddCommand(newServeCmd(), newShellCmd(), newExecCmd())
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*internal.NovaQueryConfig, error) {
	cfg, err := internal.LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}
	if flags.schema != "" {
		cfg.Schema.Path = flags.schema
	}
	if flags.data != "" {
		cfg.Data.Path = flags.data
	}
	if flags.debug {
		cfg.Server.Debug = true
	}
	return cfg, nil
}

func openDB(cfg *internal.NovaQueryConfig) (*novaquery.DB, error) {
	db, err := novaquery.OpenConfig(cfg, cfg.NewLogger())
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
