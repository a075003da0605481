package ingest

import (
	"errors"
	"fmt"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/fields"
)

// TaxonomyError reports a message type that cannot logically appear in the
// file type carrying it, e.g. a respiration message outside a monitoring file.
// The message is skipped; the file continues.
type TaxonomyError struct {
	Message  decoder.MessageType
	FileType decoder.FileType
}

func (e *TaxonomyError) Error() string {
	return fmt.Sprintf("message %q not valid in file type %q", e.Message, e.FileType)
}

// ListLengthMismatchError reports parallel list fields of unequal length in a
// multi-context message. The message is skipped; the file continues.
type ListLengthMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *ListLengthMismatchError) Error() string {
	return fmt.Sprintf("list field %q has %d entries, want %d", e.Field, e.Got, e.Want)
}

// FatalFileError aborts a whole file's ingestion after rollback. Re-ingesting
// the file later is safe; all writes are idempotent upserts.
type FatalFileError struct {
	FileID string
	Err    error
}

func (e *FatalFileError) Error() string {
	return fmt.Sprintf("file %s: ingestion aborted: %v", e.FileID, e.Err)
}

func (e *FatalFileError) Unwrap() error { return e.Err }

// warningKind labels a warning for metrics.
func warningKind(err error) string {
	var (
		mismatch *fields.TypeMismatchError
		taxonomy *TaxonomyError
		lists    *ListLengthMismatchError
	)
	switch {
	case errors.As(err, &mismatch):
		return "type_mismatch"
	case errors.As(err, &taxonomy):
		return "taxonomy"
	case errors.As(err, &lists):
		return "list_mismatch"
	default:
		return "other"
	}
}
