// Command loader bulk-loads tweet archives into a relational store inside a
// single transaction. main stays tiny and delegates to run; every side
// effect that a test would want to replace is injected through Deps.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"tweetloader/internal/config"
	"tweetloader/internal/db"
	"tweetloader/internal/loader"
	"tweetloader/internal/logging"
	"tweetloader/internal/metrics"
	"tweetloader/internal/metrics/datadog"
	"tweetloader/internal/metrics/prompush"
)

// job labels every metric this command emits.
const job = "tweetloader"

// Deps holds injectable dependencies so run is testable without a database
// or a metrics endpoint.
type Deps struct {
	Open        db.Opener
	NewPrompush func(job, gatewayURL string, grouping metrics.Labels) (metrics.Backend, error)
	NewDatadog  func(cfg datadog.Config) (metrics.Backend, error)
	NewRunID    func() string
	Stdout      io.Writer
}

func defaultDeps() Deps {
	return Deps{
		Open: db.Open,
		NewPrompush: func(job, gatewayURL string, grouping metrics.Labels) (metrics.Backend, error) {
			return prompush.NewBackend(job, gatewayURL, grouping)
		},
		NewDatadog: func(cfg datadog.Config) (metrics.Backend, error) {
			return datadog.NewBackend(cfg)
		},
		NewRunID: func() string { return uuid.NewString() },
		Stdout:   os.Stdout,
	}
}

// run validates cfg, opens the store, loads every input in one transaction
// and commits it. Any error, and -dry_run, rolls the transaction back.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger, deps Deps) error {
	issues := config.Validate(*cfg)
	for _, iss := range issues {
		if iss.Severity == config.SeverityWarning {
			log.Warn("config", "path", iss.Path, "msg", iss.Message)
		}
	}
	if err := config.Err(issues); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dialect, err := db.DialectFor(cfg.DBDriver)
	if err != nil {
		return err
	}

	runID := deps.NewRunID()
	log = log.With("run_id", runID)

	if err := setupMetrics(cfg, runID, deps); err != nil {
		return err
	}
	defer func() {
		if ferr := metrics.Flush(); ferr != nil {
			log.Warn("metrics flush failed", "err", ferr)
		}
	}()

	log.Info("starting load",
		"driver", dialect.Name,
		"dsn", cfg.Redacted(),
		"inputs", len(cfg.Inputs),
		"batch_size", cfg.BatchSize,
		"dry_run", cfg.DryRun,
	)

	conn, err := deps.Open(ctx, dialect, cfg.ConnString())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("close failed", "err", cerr)
		}
	}()

	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	l := loader.New(tx, dialect, loader.WithObserver(loader.Observers(
		logging.NewObserver(log),
		metrics.NewObserver(job),
	)))

	start := time.Now()
	st, err := l.LoadFiles(ctx, cfg.Inputs, cfg.BatchSize)
	metrics.RecordStep(job, "load", err, time.Since(start))
	if err != nil {
		if rerr := tx.Rollback(context.WithoutCancel(ctx)); rerr != nil {
			log.Error("rollback failed", "err", rerr)
		}
		return fmt.Errorf("load: %w", err)
	}

	if cfg.DryRun {
		if err := tx.Rollback(ctx); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
		summary(deps.Stdout, color.YellowString("DRY RUN"), st, time.Since(start))
		return nil
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	summary(deps.Stdout, color.GreenString("OK"), st, time.Since(start))
	return nil
}

func setupMetrics(cfg *config.Config, runID string, deps Deps) error {
	var (
		b   metrics.Backend
		err error
	)
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err = deps.NewPrompush(job, cfg.PushgatewayURL, metrics.Labels{"run_id": runID})
	case "datadog":
		b, err = deps.NewDatadog(datadog.Config{
			Addr:       cfg.StatsdAddr,
			Namespace:  job + ".",
			GlobalTags: []string{"run_id:" + runID},
		})
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	metrics.SetBackend(b)
	return nil
}

func summary(w io.Writer, status string, st loader.Stats, took time.Duration) {
	rows := 0
	for _, n := range st.Rows {
		rows += n
	}
	fmt.Fprintf(w, "%s %d files, %d members, %s records, %s rows in %s batches (%s statements) in %s\n",
		status, st.Files, st.Members,
		humanize.Comma(int64(st.Records)), humanize.Comma(int64(rows)),
		humanize.Comma(int64(st.Batches)), humanize.Comma(int64(st.Statements)),
		took.Truncate(time.Millisecond),
	)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, defaultDeps()); err != nil {
		log.Error("load failed", "err", err)
		fmt.Fprintln(os.Stderr, color.RedString("FAILED"), err)
		stop()
		os.Exit(1)
	}
}
