// Command listingctl reconciles token listing data from several sources into
// a reference price, valuation and canonical allocation breakdown.
//
// Usage:
//
//	listingctl analyze --fixtures jito-governance-token
//	listingctl analyze --bundle tokens.yaml --all --format csv
//	listingctl map-label "Core Contributors" "Seed Round"
//	listingctl parse-vesting "10% at TGE, 12 month cliff, then 24 months linear"
//	listingctl migrate --config config.yaml
//	listingctl serve-metrics
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"token-listing-lab/internal/config"
	"token-listing-lab/internal/logger"
)

func main() {
	// Load .env file if exists; existing env vars win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "listingctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "listingctl",
		Usage: "reconcile token listing prices, supply and allocations across data sources",
		Commands: []*cli.Command{
			analyzeCommand(),
			showCommand(),
			historyCommand(),
			mapLabelCommand(),
			parseVestingCommand(),
			migrateCommand(),
			serveMetricsCommand(),
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to YAML config (built-in defaults when empty)",
		Sources: cli.EnvVars("LISTINGCTL_CONFIG"),
	}
}

// setup loads and validates config and builds the logger.
func setup(cmd *cli.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadAndValidate(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// stdout is where command output goes.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// emit writes content to the --output file when given, else to stdout.
func emit(cmd *cli.Command, content string) error {
	if path := cmd.String("output"); path != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}
	_, err := io.WriteString(stdout(cmd), content)
	return err
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write output to this file instead of stdout",
	}
}
