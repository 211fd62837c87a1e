package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pevans/confpapers/config"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// app carries global flags, the effective settings and the logger to every
// subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	configPath string
	logLevel   string
	logFormat  string
	ledgerPath string

	settings config.Settings
	logger   zerolog.Logger
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "confpapers",
		Short: "confpapers scrapes ICML, NeurIPS and ICLR paper listings into a CSV corpus.",
		Long: `confpapers scrapes ICML, NeurIPS and ICLR paper listings into a CSV corpus
with one row per (paper, author, affiliation).

Environment Variables:
  CONFPAPERS_OUTPUT        Corpus file (default: papers.csv)
  CONFPAPERS_LEDGER        Ledger database (default: ~/.confpapers/ledger.db)
  CONFPAPERS_PARALLEL      Conference years scraped at once (default: 4)
  CONFPAPERS_METRICS_FILE  Prometheus textfile written after a scrape
  CONFPAPERS_LOG_LEVEL     Log level (default: info)
  CONFPAPERS_LOG_FORMAT    console or json (default: console)
  CONFPAPERS_RATE_LIMIT    Requests per second across all fetches
  CONFPAPERS_TIMEOUT       Per-request timeout, e.g. 30s
  CONFPAPERS_USER_AGENT    User-Agent header`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.confpapers/config.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&a.ledgerPath, "ledger", "", "ledger database path")

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.AddCommand(
		a.scrapeCmd(),
		a.dedupeCmd(),
		a.formatsCmd(),
		a.statusCmd(),
	)
	return root
}

// setup resolves settings with precedence defaults < config file <
// environment < flags, then builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s := config.Defaults()

	var (
		fc  *config.FileConfig
		err error
	)
	if a.configPath != "" {
		fc, err = config.LoadConfigFileFrom(a.configPath)
	} else {
		fc, err = config.LoadConfigFile()
	}
	if err != nil {
		return configError(fmt.Errorf("failed to load config: %w", err))
	}
	s.ApplyFile(fc)

	if err := s.ApplyEnv(a.getenv); err != nil {
		return configError(err)
	}

	if cmd.Flags().Changed("log-level") {
		s.LogLevel = a.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		s.LogFormat = a.logFormat
	}
	if cmd.Flags().Changed("ledger") {
		s.Ledger = a.ledgerPath
	}

	if err := s.Validate(); err != nil {
		return configError(err)
	}

	logger, err := newLogger(s.LogLevel, s.LogFormat, a.stderr)
	if err != nil {
		return configError(err)
	}

	a.settings = s
	a.logger = logger
	return nil
}
