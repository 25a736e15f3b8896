package db

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"tweetloader/internal/domain"
)

// Dialect captures everything the bulk loader needs to know about a target
// engine to emit a conflict-ignoring multi-row INSERT.
type Dialect struct {
	// Name is the configuration value selecting this dialect.
	Name string
	// DriverName is the database/sql driver name; empty for the pgx adapter.
	DriverName string
	// Placeholder renders squirrel's "?" markers as the engine expects.
	Placeholder sq.PlaceholderFormat
	// MaxParams is the engine's bind-parameter limit per statement.
	MaxParams int
	// MaxRows caps the row value expressions in one VALUES list; 0 means no
	// cap beyond MaxParams.
	MaxRows int
	// InsertOptions go between INSERT and INTO (MySQL "IGNORE").
	InsertOptions []string
	// ConflictSuffix is appended to every INSERT ("ON CONFLICT DO NOTHING").
	// Empty for engines whose unique indexes ignore duplicates on their own.
	ConflictSuffix string
	// Point builds the geometry expression from a tag and a coordinate text.
	// Both arguments are nil when the post has no geometry; the expression
	// must then evaluate to NULL. It always binds exactly two parameters.
	Point func(tag, coords any) sq.Sqlizer
	// List converts a text list into a bindable value.
	List func(domain.List) (any, error)
}

// PointParams is the number of parameters a Point expression binds.
const PointParams = 2

// RowsPerStatement reports how many rows of paramsPerRow values fit in one
// statement under the dialect's bind-parameter and row limits (at least one).
func (d Dialect) RowsPerStatement(paramsPerRow int) int {
	n := 0
	if paramsPerRow > 0 && d.MaxParams > 0 {
		n = max(1, d.MaxParams/paramsPerRow)
	}
	if d.MaxRows > 0 && (n == 0 || n > d.MaxRows) {
		n = d.MaxRows
	}
	return max(1, n)
}

func (d Dialect) String() string { return d.Name }

// pgPoint concatenates server-side; the casts stop Postgres from rejecting
// unknown || unknown.
func pgPoint(tag, coords any) sq.Sqlizer {
	return sq.Expr("ST_GeomFromText(CAST(? AS text) || '(' || CAST(? AS text) || ')')", tag, coords)
}

func nativeList(l domain.List) (any, error) {
	if l == nil {
		return nil, nil
	}
	return []string(l), nil
}

func pqList(l domain.List) (any, error) {
	if l == nil {
		return nil, nil
	}
	return pq.Array([]string(l)), nil
}

func jsonList(l domain.List) (any, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

var dialects = map[string]Dialect{
	"postgres": {
		Name:           "postgres",
		Placeholder:    sq.Dollar,
		MaxParams:      65535,
		ConflictSuffix: "ON CONFLICT DO NOTHING",
		Point:          pgPoint,
		List:           nativeList,
	},
	"pq": {
		Name:           "pq",
		DriverName:     "postgres",
		Placeholder:    sq.Dollar,
		MaxParams:      65535,
		ConflictSuffix: "ON CONFLICT DO NOTHING",
		Point:          pgPoint,
		List:           pqList,
	},
	"sqlite": {
		Name:           "sqlite",
		DriverName:     "sqlite",
		Placeholder:    sq.Question,
		MaxParams:      32766,
		ConflictSuffix: "ON CONFLICT DO NOTHING",
		// No spatial extension: the WKT text itself is stored.
		Point: func(tag, coords any) sq.Sqlizer {
			return sq.Expr("(? || '(' || ? || ')')", tag, coords)
		},
		List: jsonList,
	},
	"mssql": {
		Name:        "mssql",
		DriverName:  "sqlserver",
		Placeholder: sq.AtP,
		MaxParams:   2100,
		// Msg 10738: at most 1000 row value expressions per INSERT.
		MaxRows: 1000,
		// Keys are declared WITH (IGNORE_DUP_KEY = ON); NULL + text is NULL
		// and STGeomFromText(NULL) is NULL.
		Point: func(tag, coords any) sq.Sqlizer {
			return sq.Expr("geometry::STGeomFromText(? + '(' + ? + ')', 0)", tag, coords)
		},
		List: jsonList,
	},
	"mysql": {
		Name:          "mysql",
		DriverName:    "mysql",
		Placeholder:   sq.Question,
		MaxParams:     65535,
		InsertOptions: []string{"IGNORE"},
		Point: func(tag, coords any) sq.Sqlizer {
			return sq.Expr("ST_GeomFromText(CONCAT(?, '(', ?, ')'))", tag, coords)
		},
		List: jsonList,
	},
}

// DialectFor returns the dialect registered under name (case-insensitive).
func DialectFor(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown db driver %q (want one of %s)", name, strings.Join(Dialects(), ", "))
	}
	return d, nil
}

// Dialects lists the registered dialect names, sorted.
func Dialects() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
