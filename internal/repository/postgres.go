package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"fieldops/internal/apperr"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements Repository on top of either the pool or a transaction.
type queries struct {
	q querier
}

type PostgresStore struct {
	*queries
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{queries: &queries{q: db}, db: db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(r Repository) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&queries{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// where collects numbered filter clauses the way every List query builds them.
type where struct {
	filters []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.filters = append(w.filters, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.filters) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.filters, " AND ")
}

func (w *where) next() int {
	return len(w.args) + 1
}

func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// constraintError turns constraint violations into validation errors and wraps everything else.
func constraintError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation", "foreign_key_violation", "check_violation":
			return apperr.Validation("%s: %s", op, pqErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
