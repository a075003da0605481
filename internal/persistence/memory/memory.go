// Package memory provides an in-memory persistence.Store with the same merge
// semantics as the Postgres backend. It backs the unit tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"example.com/fitingest/internal/persistence"
)

// Store keeps committed rows per table, keyed by the table's key columns.
type Store struct {
	mu     sync.Mutex
	tables map[string]map[string]persistence.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]map[string]persistence.Record)}
}

// Begin opens a buffered session. Writes stay session-local until Commit.
func (s *Store) Begin(ctx context.Context) (persistence.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{store: s, staged: make(map[string]map[string]persistence.Record)}, nil
}

// Rows returns a copy of the committed rows of a table, for tests and tooling.
func (s *Store) Rows(t persistence.Table) []persistence.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]persistence.Record, 0, len(s.tables[t.Name]))
	for _, rec := range s.tables[t.Name] {
		rows = append(rows, rec.Clone())
	}
	return rows
}

type session struct {
	store  *Store
	staged map[string]map[string]persistence.Record
	done   bool
}

func (se *session) Exists(ctx context.Context, t persistence.Table, key persistence.Record) (bool, error) {
	rec, err := se.GetByID(ctx, t, key)
	return rec != nil, err
}

func (se *session) GetByID(ctx context.Context, t persistence.Table, key persistence.Record) (persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := rowKey(t, key)
	if err != nil {
		return nil, err
	}
	if rec, ok := se.staged[t.Name][k]; ok {
		return rec.Clone(), nil
	}
	se.store.mu.Lock()
	defer se.store.mu.Unlock()
	if rec, ok := se.store.tables[t.Name][k]; ok {
		return rec.Clone(), nil
	}
	return nil, nil
}

func (se *session) Upsert(ctx context.Context, t persistence.Table, rec persistence.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := rowKey(t, rec)
	if err != nil {
		return err
	}
	current, err := se.GetByID(ctx, t, rec)
	if err != nil {
		return err
	}
	if current == nil {
		current = persistence.Record{}
	}
	for col, v := range rec {
		current[col] = v
	}
	if se.staged[t.Name] == nil {
		se.staged[t.Name] = make(map[string]persistence.Record)
	}
	se.staged[t.Name][k] = current
	return nil
}

func (se *session) Commit(ctx context.Context) error {
	if se.done {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	se.store.mu.Lock()
	defer se.store.mu.Unlock()
	for table, rows := range se.staged {
		if se.store.tables[table] == nil {
			se.store.tables[table] = make(map[string]persistence.Record)
		}
		for k, rec := range rows {
			se.store.tables[table][k] = rec
		}
	}
	se.staged = nil
	se.done = true
	return nil
}

func (se *session) Rollback(context.Context) error {
	if se.done {
		return nil
	}
	se.staged = nil
	se.done = true
	return nil
}

func rowKey(t persistence.Table, rec persistence.Record) (string, error) {
	parts := make([]string, 0, len(t.Key))
	for _, col := range t.Key {
		v, ok := rec[col]
		if !ok || v == nil {
			return "", fmt.Errorf("table %s: missing key column %q", t.Name, col)
		}
		parts = append(parts, fmt.Sprint(v))
	}
	return strings.Join(parts, "\x1f"), nil
}
