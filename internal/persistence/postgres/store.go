// Package postgres implements the persistence.Store contract over pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"example.com/fitingest/internal/persistence"
)

const defaultMaxRetries = 3

// Store provides Postgres-backed persistence for one store grouping.
type Store struct {
	pool       *pgxpool.Pool
	logger     *slog.Logger
	maxRetries uint64
}

// Option configures optional behaviour for the Store.
type Option func(*Store)

// WithLogger overrides the logger used to report retried conflicts.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithMaxRetries sets the per-upsert retry budget for transient conflicts.
func WithMaxRetries(n uint64) Option {
	return func(s *Store) { s.maxRetries = n }
}

// New constructs a Store over the provided pool.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: slog.Default(), maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin opens a transaction scope. The caller owns Commit/Rollback; the
// underlying connection is released on either path.
func (s *Store) Begin(ctx context.Context) (persistence.Session, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &session{tx: tx, logger: s.logger, maxRetries: s.maxRetries}, nil
}

type session struct {
	tx         pgx.Tx
	logger     *slog.Logger
	maxRetries uint64
}

func (se *session) Exists(ctx context.Context, t persistence.Table, key persistence.Record) (bool, error) {
	where, args, err := keyClause(t, key, 1)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE %s`, t.Name, where)

	var one int
	if err := se.tx.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (se *session) GetByID(ctx context.Context, t persistence.Table, key persistence.Record) (persistence.Record, error) {
	where, args, err := keyClause(t, key, 1)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, strings.Join(t.Columns, ", "), t.Name, where)

	rows, err := se.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	values, err := rows.Values()
	if err != nil {
		return nil, err
	}
	rec := make(persistence.Record, len(t.Columns))
	for i, col := range t.Columns {
		rec[col] = values[i]
	}
	return rec, rows.Err()
}

// Upsert issues an INSERT ... ON CONFLICT DO UPDATE restricted to the columns
// rec carries, so existing values outside rec are never touched. The single
// statement runs inside a savepoint and is retried on transient conflicts
// (serialization failure, deadlock) up to the session's budget.
func (se *session) Upsert(ctx context.Context, t persistence.Table, rec persistence.Record) error {
	query, args, err := buildUpsert(t, rec)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(se.maxRetries, retry.NewExponential(25*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		sp, err := se.tx.Begin(ctx) // savepoint
		if err != nil {
			return err
		}
		if _, err := sp.Exec(ctx, query, args...); err != nil {
			_ = sp.Rollback(ctx)
			if isTransientConflict(err) {
				se.logger.Warn("retrying conflicted upsert", "table", t.Name, "error", err)
				return retry.RetryableError(fmt.Errorf("%w: %w", persistence.ErrConflict, err))
			}
			return err
		}
		return sp.Commit(ctx)
	})
	return err
}

func (se *session) Commit(ctx context.Context) error {
	return se.tx.Commit(ctx)
}

func (se *session) Rollback(ctx context.Context) error {
	err := se.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func buildUpsert(t persistence.Table, rec persistence.Record) (string, []any, error) {
	cols := make([]string, 0, len(rec))
	args := make([]any, 0, len(rec))
	placeholders := make([]string, 0, len(rec))
	assignments := make([]string, 0, len(rec))

	// Iterate the declared column order so generated SQL is deterministic.
	for _, col := range t.Columns {
		v, ok := rec[col]
		if !ok {
			continue
		}
		cols = append(cols, col)
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		if !t.IsKey(col) {
			assignments = append(assignments, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	for _, k := range t.Key {
		if _, ok := rec[k]; !ok {
			return "", nil, fmt.Errorf("table %s: missing key column %q", t.Name, k)
		}
	}

	conflict := "DO NOTHING"
	if len(assignments) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(assignments, ", ")
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s`,
		t.Name,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(t.Key, ", "),
		conflict,
	)
	return query, args, nil
}

func keyClause(t persistence.Table, key persistence.Record, firstArg int) (string, []any, error) {
	clauses := make([]string, 0, len(t.Key))
	args := make([]any, 0, len(t.Key))
	for i, col := range t.Key {
		v, ok := key[col]
		if !ok || v == nil {
			return "", nil, fmt.Errorf("table %s: missing key column %q", t.Name, col)
		}
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, firstArg+i))
		args = append(args, v)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func isTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
