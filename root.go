package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/YAtOff/s3rsync/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that handle config loading themselves.
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles resolved config, logger, and the output-mode flags a
// command needs, built once in PersistentPreRunE.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
	JSON   bool
	Quiet  bool
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// cliContextFrom extracts the CLIContext from the command's context. Returns
// nil if no config was loaded.
func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. Panics are always programmer errors — the command tree
// guarantees the context is populated by PersistentPreRunE before RunE runs.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not skip config loading (no skipConfigAnnotation)")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "s3rsync",
		Short:   "Continuous local-directory-to-S3 sync with version history",
		Long:    "A continuous sync client that mirrors a local directory to an S3 object store, keeping a full rsync-style delta version history of every file.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newClearLocalCmd())
	cmd.AddCommand(newClearRemoteCmd())
	cmd.AddCommand(newRebuildFullVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConflictsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the two-layer
// override chain and stores the result in the command's context for use by
// subcommands.
func loadConfig(cmd *cobra.Command) error {
	// Bootstrap logger derived from CLI flags only (config doesn't exist yet).
	logger := buildLogger(nil)

	cli := config.CLIOverrides{ConfigPath: flagConfigPath}
	env := config.ReadEnvOverrides()

	logger.Debug("resolving config",
		slog.String("cli_config_path", cli.ConfigPath),
		slog.String("env_config_path", env.ConfigPath),
	)

	cfg, err := config.Resolve(env, cli, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Build the final logger incorporating config-file log level and format.
	finalLogger := buildLogger(cfg)

	cc := &CLIContext{
		Cfg:    cfg,
		Logger: finalLogger,
		JSON:   flagJSON,
		Quiet:  flagQuiet,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Pass nil for pre-config bootstrap (no config-file log level).
// Config-file log level/format provide the baseline; --verbose, --debug, and
// --quiet override the level because CLI flags always win. The flags are
// mutually exclusive (enforced by Cobra).
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	format := "text"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		if cfg.LogFormat != "" {
			format = cfg.LogFormat
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
