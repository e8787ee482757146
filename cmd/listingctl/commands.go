package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"token-listing-lab/internal/allocation"
	"token-listing-lab/internal/config"
	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/observability"
	"token-listing-lab/internal/reporting"
	"token-listing-lab/internal/vesting"
)

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "render a stored analysis",
		ArgsUsage: "<analysis id>",
		Flags: []cli.Flag{
			configFlag(),
			outputFlag(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatMarkdown, Usage: "md, json or csv"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("show: exactly one analysis id is required")
			}
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			b, err := openStores(ctx, cfg.Storage, false, log)
			if err != nil {
				return err
			}
			defer b.Close()
			if b.Analyses == nil {
				return errors.New("show: no storage backend configured")
			}

			id := cmd.Args().First()
			var out string
			switch format := cmd.String("format"); format {
			case formatJSON:
				r, err := b.Analyses.GetByID(ctx, id)
				if err != nil {
					return fmt.Errorf("load analysis %s: %w", id, err)
				}
				data, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return err
				}
				out = string(data) + "\n"
			case formatMarkdown, formatCSV:
				rep, err := reporting.NewGenerator(b.Analyses).GenerateByID(ctx, id)
				if err != nil {
					return err
				}
				if format == formatCSV {
					if out, err = reporting.RenderCSV(rep); err != nil {
						return err
					}
				} else {
					out = reporting.RenderMarkdown(rep)
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return emit(cmd, out)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "list stored analyses of a token, newest first",
		ArgsUsage: "<token id|mint>",
		Flags: []cli.Flag{
			configFlag(),
			outputFlag(),
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: formatMarkdown, Usage: "md or csv"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("history: exactly one token is required")
			}
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			b, err := openStores(ctx, cfg.Storage, false, log)
			if err != nil {
				return err
			}
			defer b.Close()
			if b.Analyses == nil {
				return errors.New("history: no storage backend configured")
			}

			key := strings.ToLower(cmd.Args().First())
			rows, err := reporting.NewGenerator(b.Analyses).History(ctx, key)
			if err != nil {
				return err
			}

			var out string
			switch format := cmd.String("format"); format {
			case formatMarkdown:
				out = reporting.RenderComparisonMarkdown(rows)
			case formatCSV:
				if out, err = reporting.RenderComparisonCSV(rows); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return emit(cmd, out)
		},
	}
}

func mapLabelCommand() *cli.Command {
	return &cli.Command{
		Name:      "map-label",
		Usage:     "show which canonical bucket each label maps to",
		ArgsUsage: "<label>...",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Usage: "YAML rule file (built-in table when empty)"},
			&cli.StringFlag{Name: "source", Value: string(domain.SourceUnknown), Usage: "data source reporting the labels"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			labels := cmd.Args().Slice()
			if len(labels) == 0 {
				return errors.New("map-label: at least one label is required")
			}
			source := domain.DataSource(cmd.String("source"))
			if !source.IsValid() {
				return fmt.Errorf("map-label: unknown source %q", source)
			}

			var rules *allocation.RuleSet
			if path := cmd.String("rules"); path != "" {
				rs, err := allocation.LoadRuleSet(path, nil)
				if err != nil {
					return err
				}
				rules = rs
			}
			mapper := allocation.NewMapper(rules)

			tw := tabwriter.NewWriter(stdout(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tBUCKET\tRULE\tPRIORITY")
			for _, label := range labels {
				m := mapper.MapLabel(label, source)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", label, m.Bucket, m.Rule, m.Priority)
			}
			return tw.Flush()
		},
	}
}

func parseVestingCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse-vesting",
		Usage:     "parse a free-text vesting description",
		ArgsUsage: "<text>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			text := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("parse-vesting: text is required")
			}
			terms := vesting.Parse(text)
			data, err := json.MarshalIndent(terms, "", "  ")
			if err != nil {
				return err
			}
			w := stdout(cmd)
			fmt.Fprintf(w, "%s\n", data)
			fmt.Fprintf(w, "summary: %s\n", vesting.FormatSummary(terms))
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply schema migrations to the configured databases",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "postgres-dsn", Usage: "PostgreSQL DSN", Sources: cli.EnvVars("POSTGRES_DSN")},
			&cli.StringFlag{Name: "clickhouse-dsn", Usage: "ClickHouse DSN", Sources: cli.EnvVars("CLICKHOUSE_DSN")},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			if dsn := cmd.String("postgres-dsn"); dsn != "" {
				cfg.Storage.PostgresDSN = dsn
			}
			if dsn := cmd.String("clickhouse-dsn"); dsn != "" {
				cfg.Storage.ClickHouseDSN = dsn
			}
			if cfg.Storage.PostgresDSN == "" && cfg.Storage.ClickHouseDSN == "" {
				return errors.New("migrate: no database DSN configured")
			}

			// A database backend opens every configured DSN with migrations.
			storageCfg := cfg.Storage
			if storageCfg.PostgresDSN != "" {
				storageCfg.Backend = config.BackendPostgres
			} else {
				storageCfg.Backend = config.BackendClickHouse
			}
			b, err := openStores(ctx, storageCfg, true, log)
			if err != nil {
				return err
			}
			b.Close()
			log.Info("migrations applied")
			return nil
		},
	}
}

func serveMetricsCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve-metrics",
		Usage: "expose Prometheus metrics and a health endpoint",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides metrics.addr)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, log, err := setup(cmd)
			if err != nil {
				return err
			}
			addr := cfg.Metrics.Addr
			if cmd.IsSet("addr") {
				addr = cmd.String("addr")
			}

			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("OK"))
			})
			srv := &http.Server{
				Addr:              addr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", addr).Info("metrics server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("metrics server: %w", err)
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown metrics server: %w", err)
			}
			log.Info("metrics server stopped")
			return nil
		},
	}
}
