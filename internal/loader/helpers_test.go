package loader

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tweetloader/internal/domain"
)

const testCreatedAt = "Wed Oct 10 20:19:24 +0000 2018"

// record returns a minimal valid source record for post id by author user.
func record(id, user int64, mutate func(m map[string]any)) map[string]any {
	m := map[string]any{
		"id":         id,
		"created_at": testCreatedAt,
		"text":       fmt.Sprintf("post %d", id),
		"user": map[string]any{
			"id":               user,
			"created_at":       "Mon Jan 05 10:00:00 +0000 2009",
			"screen_name":      fmt.Sprintf("user%d", user),
			"name":             fmt.Sprintf("User %d", user),
			"protected":        false,
			"verified":         false,
			"friends_count":    1,
			"listed_count":     2,
			"favourites_count": 3,
			"statuses_count":   4,
		},
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

func mention(id int64, screenName string) map[string]any {
	return map[string]any{"id": id, "name": screenName, "screen_name": screenName}
}

func withEntities(e map[string]any) func(m map[string]any) {
	return func(m map[string]any) { m["entities"] = e }
}

func tweets(t *testing.T, recs ...map[string]any) []domain.Tweet {
	t.Helper()
	out := make([]domain.Tweet, 0, len(recs))
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var tw domain.Tweet
		if err := json.Unmarshal(b, &tw); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, tw)
	}
	return out
}

func jsonl(t *testing.T, recs ...map[string]any) string {
	t.Helper()
	var sb strings.Builder
	for _, r := range recs {
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		sb.Write(b)
		sb.WriteByte('\n')
	}
	return sb.String()
}

type member struct{ name, body string }

func writeZip(t *testing.T, dir, name string, members ...member) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(m.body)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

// fakeExec records every statement; it fails the failOn-th call (1-based).
type fakeExec struct {
	stmts  []statement
	failOn int
	err    error
}

func (f *fakeExec) Exec(ctx context.Context, q string, args ...any) error {
	f.stmts = append(f.stmts, statement{sql: q, args: args})
	if f.failOn > 0 && len(f.stmts) == f.failOn {
		return f.err
	}
	return nil
}

// tables returns the target table of each recorded statement.
func (f *fakeExec) tables() []string {
	out := make([]string, len(f.stmts))
	for i, s := range f.stmts {
		out[i] = tableOf(s.sql)
	}
	return out
}

func (f *fakeExec) forTable(name string) []statement {
	var out []statement
	for _, s := range f.stmts {
		if tableOf(s.sql) == name {
			out = append(out, s)
		}
	}
	return out
}

func tableOf(q string) string {
	fields := strings.Fields(q)
	for i, w := range fields {
		if w == "INTO" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// recordingObserver keeps a flat event log.
type recordingObserver struct {
	events  []string
	batches []BatchStats
	files   []FileStats
}

func (o *recordingObserver) FileStarted(path string) {
	o.events = append(o.events, "file "+filepath.Base(path))
}
func (o *recordingObserver) MemberStarted(path, member string) {
	o.events = append(o.events, "member "+member)
}
func (o *recordingObserver) BatchLoaded(s BatchStats) {
	o.events = append(o.events, fmt.Sprintf("batch %d", s.Batch))
	o.batches = append(o.batches, s)
}
func (o *recordingObserver) FileFinished(s FileStats) {
	o.events = append(o.events, "done "+filepath.Base(s.Path))
	o.files = append(o.files, s)
}
