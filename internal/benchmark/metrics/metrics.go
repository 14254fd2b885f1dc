package metrics

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/pkg/bitpack"
)

type DBOperation string

const (
	DBOperationInsert  DBOperation = "insert"
	DBOperationUpdate  DBOperation = "update"
	DBOperationSelect  DBOperation = "select"
	DBOperationExtract DBOperation = "extract"
	DBOperationTxn     DBOperation = "txn_mixed"
	DBOperationDelete  DBOperation = "delete"
)

const MetricsPrefix = "chronobench_"

type Metrics struct {
	ops             prometheus.Counter
	dbRetrieval     prometheus.Histogram
	processing      prometheus.Histogram
	dbErrors        *prometheus.CounterVec
	conflictRetries prometheus.Counter
	abandonedUnits  *prometheus.CounterVec
	codecFallbacks  prometheus.CounterFunc
}

var m *Metrics
var once sync.Once

func Get() *Metrics {
	once.Do(func() {
		m = newMetrics(MetricsPrefix)
	})
	return m
}

func newMetrics(prefix string) *Metrics {
	return &Metrics{
		ops: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "ops_total",
			Help: "Total operations",
		}),
		dbRetrieval: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "db_retrieval_seconds",
			Help:    "DB retrieval latency seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		processing: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    prefix + "processing_seconds",
			Help:    "Processing latency seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		dbErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "db_errors",
			Help: "Number of database errors grouped by database operation",
		}, []string{"operation"}),
		conflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: prefix + "conflict_retries_total",
			Help: "Number of transactions retried after a transient conflict",
		}),
		abandonedUnits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "abandoned_units_total",
			Help: "Units of work abandoned after exhausting retries or hitting a non-retryable error",
		}, []string{"operation"}),
		codecFallbacks: promauto.NewCounterFunc(prometheus.CounterOpts{
			Name: prefix + "codec_fallbacks_total",
			Help: "Packed datetimes that could not be decoded and fell back to the sentinel",
		}, func() float64 { return float64(bitpack.Fallbacks()) }),
	}
}

func (m *Metrics) RecordOps(n int) {
	m.ops.Add(float64(n))
}

func (m *Metrics) ObserveDBRetrieval(seconds float64) {
	m.dbRetrieval.Observe(seconds)
}

func (m *Metrics) ObserveProcessing(seconds float64) {
	m.processing.Observe(seconds)
}

func (m *Metrics) RecordDBError(operation DBOperation) {
	m.dbErrors.With(map[string]string{"operation": string(operation)}).Inc()
}

func (m *Metrics) RecordConflictRetry() {
	m.conflictRetries.Inc()
}

func (m *Metrics) RecordAbandonedUnit(operation DBOperation) {
	m.abandonedUnits.With(map[string]string{"operation": string(operation)}).Inc()
}

// StartServer exposes the Prometheus endpoint on the requested port. If the
// port is taken (e.g. another model's run is still up), the next free port up
// to port+99 is used. Returns the port actually bound.
func StartServer(port int) (int, error) {
	for p := port; p < port+100; p++ {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			continue
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.Serve(listener, mux); err != nil {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		if p != port {
			log.Infof("port %d was in use, started Prometheus metrics server on port %d instead", port, p)
		} else {
			log.Infof("started Prometheus metrics server on port %d", p)
		}
		return p, nil
	}
	return 0, fmt.Errorf("could not find an available port in [%d, %d]", port, port+99)
}
