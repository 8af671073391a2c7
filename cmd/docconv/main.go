package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/manekies/document-converter-app/internal/common"
	"github.com/manekies/document-converter-app/internal/pipeline"
)

var (
	Version   = "0.1.0"
	CommitSha = "unknown"
)

// app carries state shared by subcommands.
type app struct {
	configPath string
	logLevel   string

	cfg    *common.Config
	logger *slog.Logger
}

func (a *app) load(_ *cobra.Command, _ []string) error {
	if a.configPath != "" {
		if err := os.Setenv("DOCCONV_CONFIG", a.configPath); err != nil {
			return err
		}
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = common.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(a.logger)
	return nil
}

// runtime opens the database and wires the conversion stack.
func (a *app) runtime(ctx context.Context) (*pipeline.Runtime, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return pipeline.Open(ctx, a.cfg, a.logger)
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "docconv",
		Short:             "Convert scanned page images into structured documents",
		Version:           Version + "-" + CommitSha,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "TOML config file (overrides DOCCONV_CONFIG)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug|info|warn|error (overrides LOG_LEVEL)")

	root.AddCommand(
		newProcessCmd(a),
		newBatchCmd(a),
		newFingerprintCmd(a),
		newMatchCmd(a),
		newTemplatesCmd(a),
		newRunsCmd(a),
		newMigrateCmd(a),
	)
	return root
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the template and run tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", rt.DB.Dialect())
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
