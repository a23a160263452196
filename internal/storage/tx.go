package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type txKey struct{}

type txState struct {
	tx    *sql.Tx
	depth int
}

func txFromContext(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// RunInTx executes fn within a database transaction carried by the context
// passed to fn. Every repository call made with that context joins it.
//
// A RunInTx nested inside another becomes a savepoint: its failure rolls
// back only its own work and the outer transaction continues.
//
// On error from fn: rolls back and returns the error unchanged.
// On panic from fn: rolls back and re-panics.
func (r *SQLiteRepository) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if st := txFromContext(ctx); st != nil {
		return r.runInSavepoint(ctx, st, fn)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) runInSavepoint(ctx context.Context, parent *txState, fn func(ctx context.Context) error) error {
	st := &txState{tx: parent.tx, depth: parent.depth + 1}
	name := fmt.Sprintf("sp_%d", st.depth)

	if _, err := st.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}

	rollback := func() error {
		if _, err := st.tx.ExecContext(ctx, "ROLLBACK TO "+name); err != nil {
			return err
		}
		_, err := st.tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		if rbErr := rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Savepoint rollback failed", "savepoint", name, "error", rbErr, "cause", err)
		}
		return err
	}

	if _, err := st.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
