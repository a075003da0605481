// Package ingest turns decoded device files into durable rows. Each file is
// processed inside its own transactional scope so re-ingesting the same file
// is safe, and partially written files never become visible.
package ingest

import (
	"context"
	"log/slog"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/domain"
	"example.com/fitingest/internal/observability"
	"example.com/fitingest/internal/persistence"
)

// Ingestor routes decoded files into the activity and monitoring stores.
// Construct with NewIngestor; the zero value is not usable.
type Ingestor struct {
	activities persistence.Store
	monitoring persistence.Store
	device     persistence.Store

	plugins []Plugin
	logger  *slog.Logger
	policy  Policy
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets the logger used for per-file progress and skipped messages.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Ingestor) {
		i.logger = logger
	}
}

// WithPlugins registers metadata plugins consulted for every matching file.
// Later plugins win when two contribute the same column.
func WithPlugins(plugins ...Plugin) Option {
	return func(i *Ingestor) {
		i.plugins = append(i.plugins, plugins...)
	}
}

// WithPolicy overrides the default edge-case policy.
func WithPolicy(policy Policy) Option {
	return func(i *Ingestor) {
		i.policy = policy
	}
}

// NewIngestor wires an ingestor over the three store groupings. activities
// receives session/lap/record rows, monitoring the wellness series, and
// device the shared file registry. The same Store may back all three.
func NewIngestor(activities, monitoring, device persistence.Store, opts ...Option) *Ingestor {
	i := &Ingestor{
		activities: activities,
		monitoring: monitoring,
		device:     device,
		logger:     slog.Default(),
		policy:     DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Result summarises one ingested file.
type Result struct {
	FileID     string
	ActivityID string
	Messages   int
	Warnings   []error
}

// IngestFile processes one decoded file. Messages with reportable per-message
// problems are skipped and surfaced in Result.Warnings; a store failure or
// cancelled context aborts the whole file, rolls back every scope, and
// returns a FatalFileError.
func (i *Ingestor) IngestFile(ctx context.Context, file *decoder.File) (*Result, error) {
	run := &fileRun{
		ing:    i,
		file:   file,
		id:     domain.ActivityID(file.Name),
		bridge: newBridge(file, i.plugins),
	}

	device, err := i.device.Begin(ctx)
	if err != nil {
		return nil, i.fatal(ctx, run, nil, err)
	}
	var data persistence.Session
	if file.Type.Monitoring() {
		data, err = i.monitoring.Begin(ctx)
	} else {
		data, err = i.activities.Begin(ctx)
	}
	if err != nil {
		device.Rollback(ctx)
		return nil, i.fatal(ctx, run, nil, err)
	}
	run.device = device
	run.activity = data
	run.monitoring = data

	rollback := func() {
		data.Rollback(ctx)
		device.Rollback(ctx)
	}

	if err := device.Upsert(ctx, persistence.Files, persistence.Record{
		"id":            file.ID,
		"name":          file.Name,
		"type":          string(file.Type),
		"serial_number": file.Serial,
	}); err != nil {
		return nil, i.fatal(ctx, run, rollback, err)
	}

	for _, msg := range file.Messages {
		if err := ctx.Err(); err != nil {
			return nil, i.fatal(ctx, run, rollback, err)
		}
		if err := run.route(ctx, msg); err != nil {
			return nil, i.fatal(ctx, run, rollback, err)
		}
	}

	if err := data.Commit(ctx); err != nil {
		return nil, i.fatal(ctx, run, rollback, err)
	}
	if err := device.Commit(ctx); err != nil {
		device.Rollback(ctx)
		return nil, i.fatal(ctx, run, nil, err)
	}

	recordFileResult(true)
	observability.ObserveFileIngested()
	i.logger.Info("file ingested",
		"file", file.Name,
		"type", file.Type,
		"activity_id", run.id,
		"messages", len(file.Messages),
		"warnings", len(run.warnings))
	return &Result{
		FileID:     file.ID,
		ActivityID: run.id,
		Messages:   len(file.Messages),
		Warnings:   run.warnings,
	}, nil
}

func (i *Ingestor) fatal(_ context.Context, run *fileRun, rollback func(), err error) error {
	if rollback != nil {
		rollback()
	}
	recordFileResult(false)
	i.logger.Error("file ingestion failed", "file", run.file.Name, "error", err)
	return &FatalFileError{FileID: run.file.ID, Err: err}
}
