package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	filesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitingest",
		Subsystem: "ingest",
		Name:      "files_total",
		Help:      "Number of file ingestions by outcome.",
	}, []string{"result"})

	messagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitingest",
		Subsystem: "ingest",
		Name:      "messages_total",
		Help:      "Number of messages routed, by message type.",
	}, []string{"type"})

	warningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitingest",
		Subsystem: "ingest",
		Name:      "message_warnings_total",
		Help:      "Number of per-message warnings, by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(filesTotal, messagesTotal, warningsTotal)
}

func recordFileResult(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	filesTotal.WithLabelValues(result).Inc()
}

func recordMessage(messageType string) {
	messagesTotal.WithLabelValues(messageType).Inc()
}

func recordWarning(kind string) {
	warningsTotal.WithLabelValues(kind).Inc()
}
