package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics owns a private Prometheus registry so tests and multiple servers
// never collide on the default one.
type metrics struct {
	reg *prometheus.Registry

	reqDuration *prometheus.HistogramVec
	reqTotal    *prometheus.CounterVec

	imported     prometheus.Counter
	skipped      prometheus.Counter
	importErrors prometheus.Counter
	exports      prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		reg: prometheus.NewRegistry(),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "status"},
		),
		reqTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smn_imported_notes_total",
			Help: "Notes written by uploaded archives",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smn_skipped_notes_total",
			Help: "Archive notes skipped because their id already existed",
		}),
		importErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smn_import_errors_total",
			Help: "Archive entries that failed to decode",
		}),
		exports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smn_exports_total",
			Help: "Archives downloaded",
		}),
	}
	m.reg.MustRegister(m.reqDuration, m.reqTotal, m.imported, m.skipped, m.importErrors, m.exports)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// instrument times next and labels it with the route pattern rather than
// the raw path, which keeps label cardinality bounded.
func (m *metrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		status := normalizeStatus(rec.status)
		m.reqDuration.WithLabelValues(route, status).Observe(time.Since(start).Seconds())
		m.reqTotal.WithLabelValues(route, status).Inc()
	})
}

// normalizeStatus collapses a status code into its class: 2xx, 3xx, 4xx, 5xx.
func normalizeStatus(status int) string {
	if status >= 200 && status < 600 {
		return strconv.Itoa(status/100) + "xx"
	}
	return strconv.Itoa(status)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
