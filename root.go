package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/agave-cli/agavecli/internal/agave"
	"github.com/agave-cli/agavecli/internal/auth"
	"github.com/agave-cli/agavecli/internal/config"
	"github.com/agave-cli/agavecli/internal/session"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagAgaveDB    string
	flagJSON       bool
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// httpClientTimeout is the default timeout for metadata HTTP requests.
const httpClientTimeout = 30 * time.Second

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Resolved

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "agavecli",
		Short:   "Agave science-gateway CLI",
		Long:    "Manage Agave tenants, API clients, tokens, systems, and files from the command line.",
		Version: version,
		// Silence Cobra's default error/usage printing; main prints errors.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}

			logger := buildLogger()
			slog.SetDefault(logger)

			cmd.SetContext(shutdownContext(cmd.Context(), logger))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVarP(&flagAgaveDB, "agavedb", "A", "", "directory holding agave.json (default: home directory)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show informational log output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "show debug log output including HTTP requests")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newTenantCmd())
	cmd.AddCommand(newClientCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newSystemCmd())
	cmd.AddCommand(newFilesCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer override
// chain and stores the result in resolvedCfg for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
	}

	// Only pass --agavedb to the resolver if the user explicitly set it.
	if cmd.Flags().Changed("agavedb") {
		cli.AgaveDB = &flagAgaveDB
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose, --debug
// and --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	switch {
	case flagDebug:
		level = slog.LevelDebug
	case flagVerbose:
		level = slog.LevelInfo
	case flagQuiet:
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// cfg returns the resolved configuration, falling back to defaults when a
// command runs without the root pre-run (direct calls in tests).
func cfg() *config.Resolved {
	if resolvedCfg != nil {
		return resolvedCfg
	}

	return &config.Resolved{
		AgaveDB:   config.ExpandHome("~"),
		HostURL:   config.DefaultConfig().HostURL,
		LogLevel:  "warn",
		Timeout:   httpClientTimeout,
		Endpoints: config.DefaultEndpoints(),
	}
}

// defaultHTTPClient returns an HTTP client for metadata calls, bounded by the
// configured timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: cfg().Timeout}
}

// transferHTTPClient returns an HTTP client with no overall timeout. File
// transfers can legitimately run for hours; cancellation comes from the
// command context.
func transferHTTPClient() *http.Client {
	return &http.Client{}
}

// tokenManager returns the token manager for the current agavedb.
func tokenManager(logger *slog.Logger) *auth.Manager {
	c := cfg()

	m := auth.NewManager(c.AgaveDB, c.Endpoints.Token, defaultHTTPClient(), logger)
	m.OnRefresh = func() { statusf("Refreshing token...\n") }

	return m
}

// bearerClient loads the current tenant, obtains a fresh access token, and
// returns a client that authorizes with it and requests pretty JSON.
func bearerClient(ctx context.Context, httpClient *http.Client, logger *slog.Logger) (*agave.Client, error) {
	token, err := tokenManager(logger).AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	s, err := session.Load(cfg().AgaveDB)
	if err != nil {
		return nil, err
	}

	return agave.NewClient(s.Current.BaseURL, httpClient, agave.BearerToken(token), logger).WithPrettyJSON(), nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}

	prefix := color.New(color.FgRed, color.Bold).Sprint("Error:")
	fmt.Fprintf(os.Stderr, "%s %v\n", prefix, err)
	os.Exit(1)
}
