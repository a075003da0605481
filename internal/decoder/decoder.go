// Package decoder defines the contract between binary file decoders and the
// ingestion core: a decoded file is an ordered sequence of typed messages
// with named fields. Decoding itself lives in adapters (see fitfile) or
// upstream services; the core never touches device binary formats.
package decoder

import "example.com/fitingest/internal/fields"

// FileType classifies the source file. Some message types are only legal in
// specific file types.
type FileType string

const (
	FileTypeUnknown     FileType = ""
	FileTypeActivity    FileType = "activity"
	FileTypeMonitoringA FileType = "monitoring_a"
	FileTypeMonitoringB FileType = "monitoring_b"
)

// Monitoring reports whether the file carries background monitoring data.
func (t FileType) Monitoring() bool {
	return t == FileTypeMonitoringA || t == FileTypeMonitoringB
}

// MessageType names one decoded message kind.
type MessageType string

const (
	MessageSession        MessageType = "session"
	MessageLap            MessageType = "lap"
	MessageRecord         MessageType = "record"
	MessageMonitoringInfo MessageType = "monitoring_info"
	MessageMonitoring     MessageType = "monitoring"
	MessageRespiration    MessageType = "respiration"
	MessagePulseOx        MessageType = "pulse_ox"
)

// Message is one decoded message in file order.
type Message struct {
	Type   MessageType
	Fields fields.Map
}

// File is one fully decoded source file. Messages are grouped by type in the
// decoder-declared type order, and keep arrival order within a type; the
// ingestion core relies on that ordering for lap/record sequence numbers.
// ID is the file's stable identity, unchanged across re-imports.
type File struct {
	ID       string
	Name     string
	Type     FileType
	Serial   int64
	Messages []Message
}
