package persistence

import "context"

// Store is one durable grouping (activities, monitoring, shared device/file
// metadata). All writes run inside a Session so a file either lands whole or
// not at all.
type Store interface {
	Begin(ctx context.Context) (Session, error)
}

// Session is a transactional scope over one Store. Implementations must
// release the underlying connection on every exit path; Rollback after a
// successful Commit is a no-op.
type Session interface {
	// Exists reports whether a row with the given key columns is present.
	Exists(ctx context.Context, t Table, key Record) (bool, error)

	// Upsert inserts rec as a new row when its key is absent, defaulting the
	// columns rec does not carry. When the key exists it updates only the
	// columns present in rec and leaves every other column untouched. rec is
	// expected to be pre-filtered (see Intersection); Upsert itself never
	// drops values. A transient conflict surfaces as an error wrapping
	// ErrConflict after the backend's retry budget is exhausted.
	Upsert(ctx context.Context, t Table, rec Record) error

	// GetByID returns the full row for the given key columns, or nil when absent.
	GetByID(ctx context.Context, t Table, key Record) (Record, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
