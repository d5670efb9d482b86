package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/patentscope/internal/config"
	logpkg "github.com/kailas-cloud/patentscope/internal/logger"
	"github.com/kailas-cloud/patentscope/internal/metrics"
	"github.com/kailas-cloud/patentscope/internal/version"
)

type rootOptions struct {
	env      string
	envFile  string
	logLevel string
}

// cliContext carries the loaded configuration and logger through the command tree.
type cliContext struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cc := &cliContext{}

	cmd := &cobra.Command{
		Use:   "patentscope",
		Short: "Natural-language patent search over BigQuery with a local similarity index",
		Long: `patentscope turns a free-text request into a structured filter with a language model,
compiles it into a BigQuery statement against the public patents dataset, and can embed
the returned abstracts into a flat L2 index for similarity queries and summaries.`,
		Version: version.String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return cc.init(opts)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if cc.logger != nil {
				_ = cc.logger.Sync()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.env, "env", "", "configuration environment (default: $ENV or local)")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	pf.StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(cc),
		newExtractCmd(cc),
		newSearchCmd(cc),
		newSimilarCmd(cc),
		newSummarizeCmd(cc),
		newChatCmd(cc),
		newVersionCmd(),
	)
	return cmd
}

func (cc *cliContext) init(opts *rootOptions) error {
	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", opts.envFile, err)
	}

	cc.env = opts.env
	if cc.env == "" {
		cc.env = config.GetEnv()
	}

	cfg, err := config.Load(cc.env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	cc.cfg = cfg

	cc.logger, err = logpkg.NewLogger(logpkg.Options{
		Env:    cc.env,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	metrics.Register()
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
