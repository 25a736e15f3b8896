package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"tweetloader/internal/config"
	"tweetloader/internal/db"
	"tweetloader/internal/metrics"
	"tweetloader/internal/metrics/datadog"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

//
// Test fakes (no I/O)
//

type fakeTx struct {
	execs      []string
	failOn     int // 1-based Exec call that fails; 0 never
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	if f.failOn == len(f.execs) {
		return errors.New("unique violation")
	}
	return nil
}

func (f *fakeTx) Commit(context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(context.Context) error { f.rolledBack = true; return nil }

type fakeDB struct {
	tx     *fakeTx
	closed bool
}

func (f *fakeDB) BeginTx(context.Context) (db.Tx, error) { return f.tx, nil }
func (f *fakeDB) Close(context.Context) error            { f.closed = true; return nil }

type fakeBackend struct{ flushed int }

func (*fakeBackend) IncCounter(string, float64, metrics.Labels)       {}
func (*fakeBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (f *fakeBackend) Flush() error                                   { f.flushed++; return nil }

const tweetLine = `{"id":%d,"created_at":"Wed Oct 10 20:19:24 +0000 2018","text":"hi",` +
	`"user":{"id":%d,"created_at":"Mon Jan 05 10:00:00 +0000 2009","screen_name":"u",` +
	`"protected":false,"verified":false,"friends_count":1,"listed_count":1,` +
	`"favourites_count":1,"statuses_count":1}}`

func writeInput(t *testing.T) string {
	t.Helper()
	var sb strings.Builder
	fmt.Fprintf(&sb, tweetLine+"\n", 101, 1)
	fmt.Fprintf(&sb, tweetLine+"\n", 102, 2)
	p := filepath.Join(t.TempDir(), "tweets.jsonl")
	if err := os.WriteFile(p, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// testCfg returns a valid config over one two-record input file.
func testCfg(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Inputs = []string{writeInput(t)}
	return &cfg
}

type harness struct {
	deps   Deps
	db     *fakeDB
	out    *bytes.Buffer
	opened []string
}

func newHarness() *harness {
	h := &harness{db: &fakeDB{tx: &fakeTx{}}, out: &bytes.Buffer{}}
	h.deps = Deps{
		Open: func(_ context.Context, d db.Dialect, dsn string) (db.DB, error) {
			h.opened = append(h.opened, d.Name+" "+dsn)
			return h.db, nil
		},
		NewPrompush: func(string, string, metrics.Labels) (metrics.Backend, error) {
			return nil, errors.New("unexpected pushgateway")
		},
		NewDatadog: func(datadog.Config) (metrics.Backend, error) {
			return nil, errors.New("unexpected datadog")
		},
		NewRunID: func() string { return "run-1" },
		Stdout:   h.out,
	}
	return h
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDefaultDeps_ProvidesProductionWiring(t *testing.T) {
	d := defaultDeps()
	if d.Open == nil || d.NewPrompush == nil || d.NewDatadog == nil || d.NewRunID == nil || d.Stdout == nil {
		t.Fatalf("defaultDeps has nil fields: %+v", d)
	}
	if a, b := d.NewRunID(), d.NewRunID(); a == "" || a == b {
		t.Fatalf("run ids %q, %q; want distinct non-empty", a, b)
	}
}

func TestRun_CommitsAndPrintsSummary(t *testing.T) {
	h := newHarness()
	cfg := testCfg(t)

	if err := run(context.Background(), cfg, quietLog(), h.deps); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(h.opened) != 1 || !strings.HasPrefix(h.opened[0], "postgres postgres://") {
		t.Fatalf("opened = %v", h.opened)
	}
	tx := h.db.tx
	if !tx.committed || tx.rolledBack {
		t.Fatalf("committed=%v rolledBack=%v; want commit only", tx.committed, tx.rolledBack)
	}
	// users and tweets; the other row-sets are empty and skipped.
	if len(tx.execs) != 2 {
		t.Fatalf("execs = %d, want 2", len(tx.execs))
	}
	if !h.db.closed {
		t.Fatal("db not closed")
	}
	got := h.out.String()
	if !strings.HasPrefix(got, "OK 1 files, 1 members, 2 records, 4 rows in 1 batches (2 statements)") {
		t.Fatalf("summary = %q", got)
	}
}

func TestRun_DryRunRollsBack(t *testing.T) {
	h := newHarness()
	cfg := testCfg(t)
	cfg.DryRun = true

	if err := run(context.Background(), cfg, quietLog(), h.deps); err != nil {
		t.Fatalf("run: %v", err)
	}
	if h.db.tx.committed || !h.db.tx.rolledBack {
		t.Fatal("dry run must roll back and never commit")
	}
	if !strings.HasPrefix(h.out.String(), "DRY RUN ") {
		t.Fatalf("summary = %q", h.out.String())
	}
}

func TestRun_LoadErrorRollsBack(t *testing.T) {
	h := newHarness()
	h.db.tx.failOn = 1
	cfg := testCfg(t)

	err := run(context.Background(), cfg, quietLog(), h.deps)
	if err == nil || !strings.Contains(err.Error(), "load:") || !strings.Contains(err.Error(), "unique violation") {
		t.Fatalf("run error = %v, want wrapped load error", err)
	}
	if h.db.tx.committed || !h.db.tx.rolledBack {
		t.Fatal("failed load must roll back and never commit")
	}
	if h.out.Len() != 0 {
		t.Fatalf("summary printed on failure: %q", h.out.String())
	}
}

func TestRun_InvalidConfigOpensNothing(t *testing.T) {
	h := newHarness()
	cfg := testCfg(t)
	cfg.Inputs = nil
	cfg.BatchSize = 0

	err := run(context.Background(), cfg, quietLog(), h.deps)
	if err == nil || !strings.Contains(err.Error(), "inputs") || !strings.Contains(err.Error(), "batch_size") {
		t.Fatalf("run error = %v, want inputs and batch_size issues", err)
	}
	if len(h.opened) != 0 {
		t.Fatalf("opened = %v, want none", h.opened)
	}
}

func TestRun_OpenError(t *testing.T) {
	h := newHarness()
	h.deps.Open = func(context.Context, db.Dialect, string) (db.DB, error) {
		return nil, errors.New("connection refused")
	}
	err := run(context.Background(), testCfg(t), quietLog(), h.deps)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("run error = %v", err)
	}
}

func TestRun_MetricsBackends(t *testing.T) {
	t.Cleanup(func() { metrics.SetBackend(&fakeBackend{}) })

	t.Run("pushgateway", func(t *testing.T) {
		h := newHarness()
		fb := &fakeBackend{}
		var grouping metrics.Labels
		h.deps.NewPrompush = func(job, url string, g metrics.Labels) (metrics.Backend, error) {
			if job != "tweetloader" || url != "http://localhost:9091" {
				t.Errorf("NewPrompush(%q, %q)", job, url)
			}
			grouping = g
			return fb, nil
		}
		cfg := testCfg(t)
		cfg.MetricsBackend = "pushgateway"

		if err := run(context.Background(), cfg, quietLog(), h.deps); err != nil {
			t.Fatalf("run: %v", err)
		}
		if grouping["run_id"] != "run-1" {
			t.Fatalf("grouping = %v, want run_id=run-1", grouping)
		}
		if fb.flushed != 1 {
			t.Fatalf("flushed = %d, want 1", fb.flushed)
		}
	})

	t.Run("datadog", func(t *testing.T) {
		h := newHarness()
		fb := &fakeBackend{}
		var got datadog.Config
		h.deps.NewDatadog = func(c datadog.Config) (metrics.Backend, error) {
			got = c
			return fb, nil
		}
		cfg := testCfg(t)
		cfg.MetricsBackend = "datadog"

		if err := run(context.Background(), cfg, quietLog(), h.deps); err != nil {
			t.Fatalf("run: %v", err)
		}
		if got.Addr != "127.0.0.1:8125" || len(got.GlobalTags) != 1 || got.GlobalTags[0] != "run_id:run-1" {
			t.Fatalf("datadog config = %+v", got)
		}
		if fb.flushed != 1 {
			t.Fatalf("flushed = %d, want 1", fb.flushed)
		}
	})

	t.Run("backend error", func(t *testing.T) {
		h := newHarness()
		h.deps.NewDatadog = func(datadog.Config) (metrics.Backend, error) {
			return nil, errors.New("no agent")
		}
		cfg := testCfg(t)
		cfg.MetricsBackend = "datadog"

		err := run(context.Background(), cfg, quietLog(), h.deps)
		if err == nil || !strings.Contains(err.Error(), "metrics: no agent") {
			t.Fatalf("run error = %v", err)
		}
		if len(h.opened) != 0 {
			t.Fatal("db opened despite metrics failure")
		}
	})
}
