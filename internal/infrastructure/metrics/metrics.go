package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpsertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partytonight_upserts_total",
		Help: "Total party upserts by result (created, updated, already_rated, error)",
	}, []string{"result"})
	SearchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partytonight_searches_total",
		Help: "Total proximity searches",
	})
	SearchRounds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partytonight_search_rounds",
		Help:    "Resolution rounds used by a proximity search",
		Buckets: []float64{1, 2, 3, 4, 6, 8, 13},
	})
	SearchResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partytonight_search_results",
		Help:    "Parties returned by a proximity search",
		Buckets: []float64{0, 1, 5, 10, 20, 40, 100},
	})
	SearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partytonight_search_duration_ms",
		Help:    "Proximity search duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	LockWaitMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partytonight_lock_wait_ms",
		Help:    "Time spent waiting for a coordinate lock in milliseconds",
		Buckets: []float64{0.1, 1, 5, 10, 50, 100, 500, 1000},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partytonight_http_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partytonight_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(UpsertsTotal)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchRounds)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(SearchDurationMs)
	prometheus.MustRegister(LockWaitMs)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
}

// Handler /metrics に登録済みの指標を公開するハンドラー
func Handler() http.Handler { return promhttp.Handler() }
