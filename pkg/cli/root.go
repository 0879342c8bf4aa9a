package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/kensaku/pkg/app"
	"github.com/platinummonkey/kensaku/pkg/config"
	"github.com/platinummonkey/kensaku/pkg/observability"
)

// AppFactory builds the wired components for a command
type AppFactory func(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app.App, error)

// Options customizes how commands load configuration and build the app
type Options struct {
	LoadConfig func() (*config.Config, error)
	NewApp     AppFactory
}

func defaultNewApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, nil)
}

type globalFlags struct {
	configFile string
	tokenizer  string
	verbose    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(Options{})
}

// NewRootCommandWithOptions creates the root command with injected
// configuration and app construction
func NewRootCommandWithOptions(opts Options) *cobra.Command {
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.LoadConfig
	}
	if opts.NewApp == nil {
		opts.NewApp = defaultNewApp
	}

	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "kensaku-cli",
		Short:         "Operate the kensaku Japanese full-text index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "YAML config file (overrides "+config.ConfigFileEnv+")")
	root.PersistentFlags().StringVar(&flags.tokenizer, "tokenizer", "", "tokenizer variant: dictionary or heuristic")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	env := &environment{opts: opts, flags: flags}
	root.AddCommand(
		newReindexCommand(env),
		newRepairCommand(env),
		newTokenizeCommand(env),
		newSearchCommand(env),
		newMigrateCommand(env),
	)
	return root
}

// environment resolves configuration and components for subcommands
type environment struct {
	opts  Options
	flags *globalFlags
}

func (e *environment) config() (*config.Config, error) {
	if e.flags.configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, e.flags.configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := e.opts.LoadConfig()
	if err != nil {
		return nil, err
	}
	if e.flags.tokenizer != "" {
		cfg.Tokenizer.Variant = e.flags.tokenizer
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (e *environment) logger(cmd *cobra.Command) *observability.Logger {
	level := observability.WarnLevel
	if e.flags.verbose {
		level = observability.DebugLevel
	}
	return observability.NewLogger(level, cmd.ErrOrStderr())
}

// app loads configuration and builds the components. Callers must Close it.
func (e *environment) app(cmd *cobra.Command) (*app.App, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	return e.opts.NewApp(cmd.Context(), cfg, e.logger(cmd))
}
