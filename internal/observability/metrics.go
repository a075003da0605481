package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var fileIngestedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "fitingest",
	Subsystem: "ingest",
	Name:      "last_file_ingested_timestamp_seconds",
	Help:      "Unix timestamp of the most recently ingested file.",
})

func init() {
	prometheus.MustRegister(fileIngestedGauge)
}

// ObserveFileIngested moves the ingestion watermark to now.
func ObserveFileIngested() {
	fileIngestedGauge.Set(float64(time.Now().Unix()))
}
