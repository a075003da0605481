package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"example.com/fitingest/internal/persistence"
)

var upsertTable = persistence.Table{
	Name:    "activities",
	Key:     []string{"activity_id"},
	Columns: []string{"activity_id", "name", "distance", "calories", "sport"},
}

func TestBuildUpsertRestrictsToPresentColumns(t *testing.T) {
	query, args, err := buildUpsert(upsertTable, persistence.Record{
		"activity_id": "a1",
		"distance":    8200.0,
		"sport":       "running",
	})
	require.NoError(t, err)
	require.Equal(t,
		`INSERT INTO activities (activity_id, distance, sport) VALUES ($1, $2, $3) ON CONFLICT (activity_id) DO UPDATE SET distance = EXCLUDED.distance, sport = EXCLUDED.sport`,
		query)
	require.Equal(t, []any{"a1", 8200.0, "running"}, args)
}

func TestBuildUpsertKeyOnlyRecordInsertsWithoutUpdate(t *testing.T) {
	query, args, err := buildUpsert(upsertTable, persistence.Record{"activity_id": "a1"})
	require.NoError(t, err)
	require.Equal(t,
		`INSERT INTO activities (activity_id) VALUES ($1) ON CONFLICT (activity_id) DO NOTHING`,
		query)
	require.Equal(t, []any{"a1"}, args)
}

func TestBuildUpsertRequiresKeyColumns(t *testing.T) {
	_, _, err := buildUpsert(upsertTable, persistence.Record{"distance": 1.0})
	require.ErrorContains(t, err, "missing key column")
}

func TestKeyClauseUsesEveryKeyColumn(t *testing.T) {
	tbl := persistence.Table{
		Name:    "activity_laps",
		Key:     []string{"activity_id", "lap"},
		Columns: []string{"activity_id", "lap", "distance"},
	}

	where, args, err := keyClause(tbl, persistence.Record{"activity_id": "a1", "lap": int64(0)}, 1)
	require.NoError(t, err)
	require.Equal(t, "activity_id = $1 AND lap = $2", where)
	require.Equal(t, []any{"a1", int64(0)}, args)

	_, _, err = keyClause(tbl, persistence.Record{"activity_id": "a1"}, 1)
	require.ErrorContains(t, err, "missing key column")
}

func TestIsTransientConflict(t *testing.T) {
	require.True(t, isTransientConflict(&pgconn.PgError{Code: "40001"}))
	require.True(t, isTransientConflict(&pgconn.PgError{Code: "40P01"}))
	require.True(t, isTransientConflict(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40001"})))
	require.False(t, isTransientConflict(&pgconn.PgError{Code: "23505"}))
	require.False(t, isTransientConflict(errors.New("connection reset")))
}

func TestUpsertRecoversFromTransientConflict(t *testing.T) {
	tx := &fakeTx{failures: 1}
	se := quietSession(tx, 3)

	err := se.Upsert(context.Background(), upsertTable, persistence.Record{
		"activity_id": "a1",
		"distance":    8200.0,
	})
	require.NoError(t, err)
	require.Equal(t, 2, tx.execCalls)
	require.Equal(t, 1, tx.rollbacks)
	require.Equal(t, 1, tx.commits)
}

func TestUpsertSurfacesConflictAfterRetryBudget(t *testing.T) {
	tx := &fakeTx{failures: 100}
	se := quietSession(tx, 2)

	err := se.Upsert(context.Background(), upsertTable, persistence.Record{
		"activity_id": "a1",
		"distance":    8200.0,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, persistence.ErrConflict)

	// Initial attempt plus the bounded retries, each rolled back.
	require.Equal(t, int(se.maxRetries)+1, tx.execCalls)
	require.Equal(t, tx.execCalls, tx.rollbacks)
	require.Zero(t, tx.commits)
}

func TestUpsertDoesNotRetryPermanentErrors(t *testing.T) {
	tx := &fakeTx{failures: 100, failureCode: "23505"} // unique_violation
	se := quietSession(tx, 3)

	err := se.Upsert(context.Background(), upsertTable, persistence.Record{
		"activity_id": "a1",
		"distance":    8200.0,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, persistence.ErrConflict)
	require.Equal(t, 1, tx.execCalls)
}

func quietSession(tx pgx.Tx, maxRetries uint64) *session {
	return &session{
		tx:         tx,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRetries: maxRetries,
	}
}

// fakeTx fails the first `failures` Exec calls with a conflict, then
// succeeds. Begin returns the same tx, standing in for a savepoint.
type fakeTx struct {
	failures    int
	failureCode string

	execCalls int
	rollbacks int
	commits   int
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }
func (f *fakeTx) Commit(context.Context) error          { f.commits++; return nil }
func (f *fakeTx) Rollback(context.Context) error        { f.rollbacks++; return nil }

func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	f.execCalls++
	if f.execCalls <= f.failures {
		code := f.failureCode
		if code == "" {
			code = "40001" // serialization_failure
		}
		return pgconn.CommandTag{}, &pgconn.PgError{Code: code}
	}
	return pgconn.CommandTag{}, nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (f *fakeTx) Conn() *pgx.Conn                                  { return nil }
