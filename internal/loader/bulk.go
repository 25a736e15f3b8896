package loader

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/zeebo/xxh3"

	"tweetloader/internal/batch"
	"tweetloader/internal/db"
	"tweetloader/internal/domain"
)

// ErrRowShape is returned when a row's value tuple does not match its
// table's column list. Nothing is executed for that row-set.
var ErrRowShape = errors.New("row shape does not match column list")

// Row is a typed row of one target relation.
type Row interface {
	// Values returns one value per column, in column-list order.
	Values() []any
	// AppendKey appends the row's primary or composite key bytes to dst.
	AppendKey(dst []byte) []byte
}

// Execer runs one statement. db.Tx satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) error
}

// table describes one target relation for the statement builder.
type table struct {
	name    string
	columns []string
	// geo is the index of the geometry column, or -1.
	geo int
}

var (
	authorsTable  = table{domain.TableAuthors, domain.AuthorColumns, -1}
	mentionsTable = table{domain.TableMentions, domain.MentionColumns, -1}
	tagsTable     = table{domain.TableTags, domain.TagColumns, -1}
	mediaTable    = table{domain.TableMedia, domain.MediaColumns, -1}
	urlsTable     = table{domain.TableURLs, domain.URLColumns, -1}
	postsTable    = table{domain.TablePosts, domain.PostColumns, domain.PostGeoColumn}
)

// paramsPerRow counts bind parameters per row; the geometry expression binds
// two values for its one column.
func (t table) paramsPerRow() int {
	n := len(t.columns)
	if t.geo >= 0 {
		n += db.PointParams - 1
	}
	return n
}

// dedupe keeps the first row per key, preserving order. Duplicate keys
// within one statement would be dropped by the store anyway; removing them
// here keeps statements smaller.
func dedupe[R Row](rows []R) []R {
	if len(rows) < 2 {
		return rows
	}
	seen := make(map[xxh3.Uint128]struct{}, len(rows))
	out := make([]R, 0, len(rows))
	var key []byte
	for _, r := range rows {
		key = r.AppendKey(key[:0])
		h := xxh3.Hash128(key)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, r)
	}
	return out
}

// statement is one rendered INSERT.
type statement struct {
	sql  string
	args []any
}

// build renders the conflict-ignoring INSERT statements for rows, split so
// none exceeds the dialect's bind-parameter limit. The shape of every row is
// checked before anything is rendered.
func build[R Row](d db.Dialect, t table, rows []R) ([]statement, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		v := r.Values()
		if len(v) != len(t.columns) {
			return nil, fmt.Errorf("%w: %s row %d has %d values for %d columns",
				ErrRowShape, t.name, i, len(v), len(t.columns))
		}
		values[i] = v
	}

	per := d.RowsPerStatement(t.paramsPerRow())
	chunks, err := batch.Slice(values, per)
	if err != nil {
		return nil, err
	}
	out := make([]statement, 0, batch.Count(len(values), per))
	for chunk := range chunks {
		ib := sq.StatementBuilder.PlaceholderFormat(d.Placeholder).
			Insert(t.name).
			Options(d.InsertOptions...).
			Columns(t.columns...)
		for _, v := range chunk {
			bound, err := bind(d, t, v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.name, err)
			}
			ib = ib.Values(bound...)
		}
		if d.ConflictSuffix != "" {
			ib = ib.Suffix(d.ConflictSuffix)
		}
		q, args, err := ib.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build %s insert: %w", t.name, err)
		}
		out = append(out, statement{sql: q, args: args})
	}
	return out, nil
}

// bind converts domain values the drivers cannot take directly: text lists
// and the geometry column.
func bind(d db.Dialect, t table, v []any) ([]any, error) {
	out := make([]any, len(v))
	for i, x := range v {
		if i == t.geo {
			out[i] = geometry(d, x)
			continue
		}
		l, ok := x.(domain.List)
		if !ok {
			out[i] = x
			continue
		}
		b, err := d.List(l)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", t.columns[i], err)
		}
		out[i] = b
	}
	return out, nil
}

func geometry(d db.Dialect, v any) sq.Sqlizer {
	if p, ok := v.(domain.Point); ok {
		return d.Point(p.Tag, p.Coords)
	}
	return d.Point(nil, nil)
}

// insert builds and executes the statements for one row-set and reports how
// many statements ran.
func insert[R Row](ctx context.Context, tx Execer, d db.Dialect, t table, rows []R) (int, error) {
	stmts, err := build(d, t, rows)
	if err != nil {
		return 0, err
	}
	for i, s := range stmts {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := tx.Exec(ctx, s.sql, s.args...); err != nil {
			return i, fmt.Errorf("insert %s: %w", t.name, err)
		}
	}
	return len(stmts), nil
}
