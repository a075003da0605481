package consumer

import (
	"context"
	"log/slog"

	"example.com/fitingest/internal/ingest"
)

// IngestHandler feeds consumed envelopes into the ingestion core.
type IngestHandler struct {
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

// NewIngestHandler constructs a handler backed by the provided ingestor.
func NewIngestHandler(ingestor *ingest.Ingestor, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{ingestor: ingestor, logger: logger}
}

// Handle ingests one decoded file. A returned error means nothing was
// committed for the file and the envelope should be redelivered.
func (h *IngestHandler) Handle(ctx context.Context, msg Message) error {
	res, err := h.ingestor.IngestFile(ctx, msg.File)
	if err != nil {
		return err
	}
	for _, warning := range res.Warnings {
		h.logger.Warn("message skipped during ingest", "file", msg.File.Name, "warning", warning)
	}
	return nil
}
