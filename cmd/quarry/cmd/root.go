// Package cmd provides the CLI commands for quarry.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/engine"
	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/logging"
	"github.com/quarrylabs/quarry/internal/output"
	"github.com/quarrylabs/quarry/pkg/version"
)

var (
	configPath string
	debugMode  bool
	offline    bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Hybrid retrieval engine for RAG pipelines",
		Long: `Quarry indexes code, markdown, and notebook documents into named
indexes and answers queries with a fused vector + BM25 ranking,
curated into a token-bounded, citation-annotated context package.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("quarry version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.quarry/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the static embedder (no model server)")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newDestroyCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newCheckCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command and prints errors with their
// suggestion when one is attached.
func Execute() error {
	root := NewRootCmd()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		out := output.New(os.Stderr)
		out.Errorf("Error: %v", err)

		var qe *qerrors.QuarryError
		if errors.As(err, &qe) && qe.Suggestion != "" {
			out.Dimf("  hint: %s", qe.Suggestion)
		}
	}
	return err
}

// loadConfig reads the config file, applying the --config override.
// An unset path falls back to the default location, which may be
// absent.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// withEngine loads configuration, builds the engine, runs fn, and
// closes the engine afterwards.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, eng *engine.Engine, out *output.Writer) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, err := engine.New(cmd.Context(), cfg, slog.Default(), offline)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	return fn(cmd.Context(), eng, output.New(cmd.OutOrStdout()))
}
