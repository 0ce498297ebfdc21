package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_http_requests_total",
			Help: "Total admin API requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outletsync_http_request_duration_seconds",
		Help:    "Admin API latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outletsync_http_in_flight",
		Help: "In-flight admin API requests",
	})

	PartnerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_partner_requests_total",
			Help: "Partner API calls by operation and status code",
		}, []string{"op", "code"},
	)
	PartnerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outletsync_partner_request_duration_seconds",
		Help:    "Partner API latency seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	PartnerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_partner_retries_total",
			Help: "Partner API retries by method",
		}, []string{"method"},
	)

	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_runs_total",
			Help: "Sync runs by trigger and result",
		}, []string{"trigger", "result"},
	)
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outletsync_run_duration_seconds",
		Help:    "Sync run duration seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
	})
	LastSyncTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outletsync_last_run_timestamp_seconds",
		Help: "Unix time the last sync run finished",
	})
	OutletOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_outlet_operations_total",
			Help: "Outlet mutations by operation and result",
		}, []string{"op", "result"},
	)
	RegionLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_region_lookups_total",
			Help: "Region resolutions by outcome",
		}, []string{"outcome"},
	)
	RequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outletsync_errors_total",
			Help: "Total errors by type",
		}, []string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal, Latency, InFlight,
		PartnerRequests, PartnerLatency, PartnerRetries,
		SyncRuns, SyncDuration, LastSyncTimestamp, OutletOps, RegionLookups,
		RequestErrors,
	)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}

// ObservePartner records one partner call. code is "error" when no response arrived.
func ObservePartner(op string, code string, started time.Time) {
	PartnerRequests.WithLabelValues(op, code).Inc()
	PartnerLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
