// Package loader drives a load: it batches source records, normalizes each
// batch into per-table row-sets and writes them with conflict-ignoring bulk
// inserts on a transaction the caller owns.
//
// Ordering is part of the contract. Input paths and archive members are
// processed in reverse lexicographic order, and within a batch authors are
// written hydrated first, then reply-target placeholders, then mention
// placeholders. Because inserts never overwrite, the first row written for a
// key is the one that persists.
package loader

import (
	"context"
	"fmt"
	"iter"
	"time"

	"tweetloader/internal/archive"
	"tweetloader/internal/batch"
	"tweetloader/internal/db"
	"tweetloader/internal/domain"
	"tweetloader/internal/normalize"
)

// DefaultBatchSize is the number of records per batch when none is configured.
const DefaultBatchSize = 1000

// Stats accumulates over a whole run.
type Stats struct {
	Files      int
	Members    int
	// Lines counts source lines read, blank ones included.
	Lines      int
	Records    int
	Batches    int
	Statements int
	// Rows counts rows submitted per table (see BatchStats.Rows).
	Rows map[string]int
}

func (s *Stats) add(b BatchStats) {
	s.Records += b.Records
	s.Batches++
	s.Statements += b.Statements
	if s.Rows == nil {
		s.Rows = make(map[string]int, len(b.Rows))
	}
	for t, n := range b.Rows {
		s.Rows[t] += n
	}
}

// Loader writes batches through one Execer. It never begins, commits or
// rolls back; a returned error leaves the transaction for the caller to
// abort. Not safe for concurrent use.
type Loader struct {
	tx      Execer
	dialect db.Dialect
	obs     Observer
}

type Option func(*Loader)

// WithObserver installs o for progress callbacks.
func WithObserver(o Observer) Option {
	return func(l *Loader) {
		if o != nil {
			l.obs = o
		}
	}
}

func New(tx Execer, d db.Dialect, opts ...Option) *Loader {
	l := &Loader{tx: tx, dialect: d, obs: NopObserver{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadRecords loads an in-memory or streamed record sequence. Errors name
// the batch and the 1-based position of the offending record.
func (l *Loader) LoadRecords(ctx context.Context, records iter.Seq[domain.Tweet], batchSize int) (Stats, error) {
	var st Stats
	n := 0
	numbered := func(yield func(archive.Record) bool) {
		for t := range records {
			n++
			if !yield(archive.Record{Line: n, Tweet: t}) {
				return
			}
		}
	}
	err := l.load(ctx, "", "", numbered, nil, batchSize, &st)
	return st, err
}

// LoadFiles loads every path, newest-named first. Zip archives contribute
// each member, again newest-named first; any other file is one member.
func (l *Loader) LoadFiles(ctx context.Context, paths []string, batchSize int) (Stats, error) {
	var st Stats
	if batchSize <= 0 {
		return st, batch.ErrInvalidSize
	}
	for _, p := range archive.SortPaths(paths) {
		if err := l.loadFile(ctx, p, batchSize, &st); err != nil {
			return st, err
		}
	}
	return st, nil
}

func (l *Loader) loadFile(ctx context.Context, path string, batchSize int, st *Stats) error {
	start := time.Now()
	l.obs.FileStarted(path)

	a, err := archive.Open(ctx, path)
	if err != nil {
		return err
	}
	defer a.Close()

	before := *st
	for _, m := range a.Members() {
		l.obs.MemberStarted(path, m.Name)
		if err := l.loadMember(ctx, path, m, batchSize, st); err != nil {
			return err
		}
	}
	st.Files++
	l.obs.FileFinished(FileStats{
		Path:     path,
		Members:  st.Members - before.Members,
		Lines:    st.Lines - before.Lines,
		Records:  st.Records - before.Records,
		Batches:  st.Batches - before.Batches,
		Duration: time.Since(start),
	})
	return nil
}

func (l *Loader) loadMember(ctx context.Context, path string, m archive.Member, batchSize int, st *Stats) error {
	rc, err := m.Open()
	if err != nil {
		return fmt.Errorf("%s: open: %w", where(path, m.Name), err)
	}
	defer rc.Close()

	dec := archive.NewDecoder(rc)
	if err := l.load(ctx, path, m.Name, dec.Records(), dec.Err, batchSize, st); err != nil {
		return err
	}
	st.Lines += dec.Line()
	st.Members++
	return nil
}

// load batches recs and writes each batch. srcErr, when set, reports a
// source error that ended recs early; it is checked before every write so a
// truncated batch is never loaded.
func (l *Loader) load(
	ctx context.Context,
	path, member string,
	recs iter.Seq[archive.Record],
	srcErr func() error,
	batchSize int,
	st *Stats,
) error {
	chunks, err := batch.Seq(recs, batchSize)
	if err != nil {
		return err
	}
	check := func() error {
		if srcErr == nil {
			return nil
		}
		if err := srcErr(); err != nil {
			return fmt.Errorf("%s: %w", where(path, member), err)
		}
		return nil
	}

	n := 0
	for chunk := range chunks {
		n++
		if err := check(); err != nil {
			return err
		}
		bs, err := l.loadBatch(ctx, chunk)
		if err != nil {
			return fmt.Errorf("%s: batch %d: %w", where(path, member), n, err)
		}
		bs.File, bs.Member, bs.Batch = path, member, n
		st.add(bs)
		l.obs.BatchLoaded(bs)
	}
	return check()
}

// rowSets is one batch's worth of rows, per table.
type rowSets struct {
	hydrated, replies, mentioned []domain.Author
	posts                        []domain.Post
	mentions                     []domain.Mention
	tags                         []domain.Tag
	media                        []domain.Media
	urls                         []domain.URL
}

func (s *rowSets) add(r normalize.Rows) {
	h, reply, mentioned := r.Origins()
	s.hydrated = append(s.hydrated, h)
	s.replies = append(s.replies, reply...)
	s.mentioned = append(s.mentioned, mentioned...)
	s.posts = append(s.posts, r.Post)
	s.mentions = append(s.mentions, r.Mentions...)
	s.tags = append(s.tags, r.Tags...)
	s.media = append(s.media, r.Media...)
	s.urls = append(s.urls, r.URLs...)
}

func (l *Loader) loadBatch(ctx context.Context, recs []archive.Record) (BatchStats, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return BatchStats{}, err
	}

	var sets rowSets
	for _, r := range recs {
		rows, err := normalize.Record(r.Tweet)
		if err != nil {
			return BatchStats{}, fmt.Errorf("line %d: %w", r.Line, err)
		}
		sets.add(rows)
	}

	authors := make([]domain.Author, 0, len(sets.hydrated)+len(sets.replies)+len(sets.mentioned))
	authors = append(authors, sets.hydrated...)
	authors = append(authors, sets.replies...)
	authors = append(authors, sets.mentioned...)

	bs := BatchStats{Records: len(recs), Rows: make(map[string]int, 6)}
	steps := []func() error{
		func() error { return run(ctx, l, &bs, authorsTable, dedupe(authors)) },
		func() error { return run(ctx, l, &bs, mentionsTable, dedupe(sets.mentions)) },
		func() error { return run(ctx, l, &bs, tagsTable, dedupe(sets.tags)) },
		func() error { return run(ctx, l, &bs, mediaTable, dedupe(sets.media)) },
		func() error { return run(ctx, l, &bs, urlsTable, dedupe(sets.urls)) },
		func() error { return run(ctx, l, &bs, postsTable, dedupe(sets.posts)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return BatchStats{}, err
		}
	}
	bs.Duration = time.Since(start)
	return bs, nil
}

func run[R Row](ctx context.Context, l *Loader, bs *BatchStats, t table, rows []R) error {
	if len(rows) == 0 {
		return nil
	}
	n, err := insert(ctx, l.tx, l.dialect, t, rows)
	bs.Statements += n
	if err != nil {
		return err
	}
	bs.Rows[t.name] = len(rows)
	return nil
}

func where(path, member string) string {
	switch {
	case path == "":
		return "records"
	case member == "" || member == path:
		return path
	}
	return path + ": " + member
}

// Tables lists the target tables in write order.
func Tables() []string {
	return []string{
		authorsTable.name, mentionsTable.name, tagsTable.name,
		mediaTable.name, urlsTable.name, postsTable.name,
	}
}
