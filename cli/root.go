package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/adythan1/Tax-Returns/config"
	"github.com/adythan1/Tax-Returns/pkg/logger"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	EnvFiles   []string
}

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "tax-returns",
		Short: "Client document portal and admin review API",
		Long: `Backend for the tax preparation client portal.

Clients submit their details and tax documents through the portal; staff are
emailed and review, download and re-status submissions from the admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to YAML config (optional)")
	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", []string{".env"}, ".env files to load before reading the environment")
	cmd.Flags().AddFlagSet(serve.Flags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewTestEmailCommand(opts))
	cmd.AddCommand(NewHashPasswordCommand())

	return cmd
}

// loadConfig reads .env files, the config file and the environment, then
// initializes logging from the result
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if err := config.LoadEnvFile(opts.EnvFiles...); err != nil {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	return cfg, nil
}

// Execute runs the CLI and returns the process exit code
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
