package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedesk",
			Name:      "uploads_total",
			Help:      "Total document uploads by detected kind and result",
		},
		[]string{"kind", "result"},
	)

	uploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagedesk",
			Name:      "upload_size_bytes",
			Help:      "Uploaded document sizes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	thumbnailsRendered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pagedesk",
			Name:      "thumbnails_rendered_total",
			Help:      "Total page thumbnails rendered",
		},
	)

	thumbnailJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pagedesk",
			Name:      "thumbnail_job_duration_seconds",
			Help:      "Duration of whole-document thumbnail generation",
			Buckets:   prometheus.DefBuckets,
		},
	)

	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedesk",
			Name:      "mutations_total",
			Help:      "Total page mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	mutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pagedesk",
			Name:      "mutation_duration_seconds",
			Help:      "Duration of page mutations by operation",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pagedesk",
			Name:      "saves_total",
			Help:      "Total save actions by destination and result",
		},
		[]string{"destination", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		uploadsTotal,
		uploadBytes,
		thumbnailsRendered,
		thumbnailJobDuration,
		mutationsTotal,
		mutationDuration,
		savesTotal,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler { return promhttp.Handler() }

func RecordUpload(kind, result string, size int) {
	uploadsTotal.WithLabelValues(kind, result).Inc()
	if size > 0 {
		uploadBytes.Observe(float64(size))
	}
}

func RecordThumbnail() { thumbnailsRendered.Inc() }

func RecordThumbnailJob(d time.Duration) { thumbnailJobDuration.Observe(d.Seconds()) }

func RecordMutation(op, result string, d time.Duration) {
	mutationsTotal.WithLabelValues(op, result).Inc()
	mutationDuration.WithLabelValues(op).Observe(d.Seconds())
}

func RecordSave(destination, result string) {
	savesTotal.WithLabelValues(destination, result).Inc()
}
