// Package consumer pulls decoded file envelopes off Kafka and feeds them to
// the ingestion core. Upstream decoders publish one envelope per device file.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/fitingest/internal/decoder"
	"example.com/fitingest/internal/fields"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded file envelopes.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is one decoded envelope with its Kafka position.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	File      *decoder.File
}

// fileEnvelope is the wire shape of one decoded device file.
type fileEnvelope struct {
	FileID       string            `json:"file_id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	SerialNumber int64             `json:"serial_number"`
	Messages     []envelopeMessage `json:"messages"`
}

type envelopeMessage struct {
	Type   string         `json:"type"`
	Fields map[string]any `json:"fields"`
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *slog.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context
// is cancelled. Handler failures leave the offset uncommitted so the envelope
// is redelivered; ingestion is idempotent, so redelivery is safe.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Error("fetch error", "error", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Error("decode error",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit error after decode failure", "error", commitErr)
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Error("handler error",
				"file", event.File.Name, "file_type", event.File.Type, "error", handleErr)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit error", "error", commitErr)
		} else {
			recordProcessed(event)
		}
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	var env fileEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return Message{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Name == "" {
		return Message{}, errors.New("envelope missing file name")
	}
	fileType := decoder.FileType(env.Type)
	switch fileType {
	case decoder.FileTypeActivity, decoder.FileTypeMonitoringA, decoder.FileTypeMonitoringB:
	default:
		return Message{}, fmt.Errorf("unknown file type %q", env.Type)
	}

	file := &decoder.File{
		ID:     env.FileID,
		Name:   env.Name,
		Type:   fileType,
		Serial: env.SerialNumber,
	}
	if file.ID == "" {
		file.ID = env.Name
	}
	for _, m := range env.Messages {
		file.Messages = append(file.Messages, decoder.Message{
			Type:   decoder.MessageType(m.Type),
			Fields: fields.Map(m.Fields),
		})
	}

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		File:      file,
	}, nil
}
