// Package postgres implements the warehouse repository for PostgreSQL
// using pgx connection pooling.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"salesdw/internal/storage"
)

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a new Postgres-backed Repo and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// ExecScript runs a DDL script in a single transaction.
func (r *Repo) ExecScript(ctx context.Context, script string) error {
	stmts := storage.SplitStatements(script)
	if len(stmts) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: exec schema statement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit schema tx: %w", err)
	}
	return nil
}

// InsertBatch inserts rows into table and commits them as one transaction.
//
// Postgres allows 65535 bind parameters per statement; sub-statements are
// sized well below that.
func (r *Repo) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if table == "" {
		return 0, fmt.Errorf("InsertBatch: table is empty")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("InsertBatch: columns is empty")
	}

	maxRows := 60000 / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertBatch: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		q, args := buildInsertSQL(table, columns, part)
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("InsertBatch: insert %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return total, fmt.Errorf("InsertBatch: commit: %w", err)
	}
	return total, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Pure and deterministic so placeholder numbering and identifier quoting can
// be unit tested without a database.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// ident returns a double-quoted identifier, escaping embedded quotes.
func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableIdent quotes each part of a schema-qualified name.
func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = ident(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

var _ storage.Repository = (*Repo)(nil)
