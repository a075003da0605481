// Package persistence defines the coalescing merge semantics shared by every
// store backend: which fields of a candidate record may be written over an
// existing row, and the transactional session contract backends implement.
package persistence

import (
	"context"
	"errors"

	"example.com/fitingest/internal/fields"
)

// ErrConflict signals transient write contention. Backends translate their
// native conflict errors into this sentinel so callers can retry a single
// upsert without caring about the engine underneath.
var ErrConflict = errors.New("transient store write conflict")

// Record is one flat candidate row: column name to value. A nil value means
// the source knows nothing about that column and must not blank it out.
type Record map[string]any

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// UpsertOptions controls which candidate values count as information.
type UpsertOptions struct {
	// IgnoreNone drops nil values from the write set. Callers always want
	// this; it is what stops a sparse source from clearing known fields.
	IgnoreNone bool
	// IgnoreZero additionally drops numeric zeroes. Opt-in per metric group:
	// zero is a real elevation but never a real heart rate.
	IgnoreZero bool
}

// Intersection filters a candidate down to the subset that should be written
// for the given table: known columns only, minus values the options rule out.
// Key columns always survive. Pure; no store access.
func Intersection(t Table, rec Record, opts UpsertOptions) Record {
	out := make(Record, len(rec))
	for _, col := range t.Columns {
		v, ok := rec[col]
		if !ok {
			continue
		}
		if !t.IsKey(col) {
			if opts.IgnoreNone && v == nil {
				continue
			}
			if opts.IgnoreZero && isNumericZero(v) {
				continue
			}
		}
		out[col] = v
	}
	return out
}

// Upsert filters rec against t and merges the surviving fields into the
// store. A candidate whose intersection carries nothing beyond its identity
// is skipped outright; such a message must not cost a DB round trip.
func Upsert(ctx context.Context, s Session, t Table, rec Record, opts UpsertOptions) error {
	filtered := Intersection(t, rec, opts)
	if len(filtered) <= len(t.Key) {
		return nil
	}
	return s.Upsert(ctx, t, filtered)
}

func isNumericZero(v any) bool {
	f, ok := fields.AsFloat(v)
	return ok && f == 0
}
