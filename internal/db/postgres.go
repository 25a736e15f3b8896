package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgPoolLike is the subset of *pgxpool.Pool the adapter uses.
type pgPoolLike interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

type pgDB struct{ pool pgPoolLike }

// NewPgDB opens a pgx pool and pings it. Callers close it via Close().
func NewPgDB(ctx context.Context, dsn string) (DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// One run holds one transaction; a second connection is never needed.
	cfg.MaxConns = 1
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", describe(err))
	}
	return &pgDB{pool: pool}, nil
}

func (p *pgDB) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, describe(err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *pgDB) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}

// pgTx wraps pgx.Tx; the command tag is discarded since conflict-ignored
// rows make the affected count meaningless.
type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Exec(ctx context.Context, q string, args ...any) error {
	_, err := t.tx.Exec(ctx, q, args...)
	return describe(err)
}

func (t *pgTx) Commit(ctx context.Context) error   { return describe(t.tx.Commit(ctx)) }
func (t *pgTx) Rollback(ctx context.Context) error { return describe(t.tx.Rollback(ctx)) }
