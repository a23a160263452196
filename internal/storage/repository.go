package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
)

// SQLiteRepository implements the ledger, household and user stores on a
// single SQLite database.
type SQLiteRepository struct {
	db *sql.DB
	sb squirrel.StatementBuilderType
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps every
	// statement of a request on the transaction stored in its context.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// q returns the transaction carried by ctx, or the pool.
func (r *SQLiteRepository) q(ctx context.Context) querier {
	if st := txFromContext(ctx); st != nil {
		return st.tx
	}
	return r.db
}

func (r *SQLiteRepository) exec(ctx context.Context, b squirrel.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.q(ctx).ExecContext(ctx, query, args...)
}

func (r *SQLiteRepository) queryRow(ctx context.Context, b squirrel.SelectBuilder) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.q(ctx).QueryRowContext(ctx, query, args...), nil
}

// queryAll runs b and scans every row with scan before returning, so the
// connection is free for the next statement.
func queryAll[T any](ctx context.Context, r *SQLiteRepository, b squirrel.SelectBuilder, scan func(scanner) (T, error)) ([]T, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// rowsAffected reports whether a write touched at least one row.
func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// mapConstraint turns SQLite constraint failures into domain errors.
// Unique and primary key violations become conflict, foreign key
// violations become notFound.
func mapConstraint(err, conflict, notFound error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		if conflict == nil {
			conflict = core.ErrConflict
		}
		return fmt.Errorf("%w: %v", conflict, se)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		if notFound == nil {
			notFound = core.ErrNotFound
		}
		return fmt.Errorf("%w: %v", notFound, se)
	}
	return err
}
