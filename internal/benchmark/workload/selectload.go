package workload

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/queries"
	"github.com/chronobench/chronobench/internal/benchmark/recorder"
	"github.com/chronobench/chronobench/internal/common/util"
	"github.com/chronobench/chronobench/pkg/bitpack"
)

// SelectRunner measures reads in two independent phases and reports them as
// two results:
//
//   - retrieval: query submission to result-set-ready, a database latency.
//   - processing: decoding every fetched row back to a datetime, a CPU-only
//     latency. Its database time is zero and throughput is not applicable.
//
// Per-row processing cost is below the millisecond floor, so the phase is
// timed as a whole and its per-row average is recorded once per row.
type SelectRunner struct {
	source  ConnSource
	metrics *metrics.Metrics
	cfg     Config
	rnd     *rand.Rand
}

func NewSelectRunner(source ConnSource, m *metrics.Metrics, cfg Config) *SelectRunner {
	return &SelectRunner{
		source:  source,
		metrics: m,
		cfg:     cfg,
		rnd:     util.NewThreadsafeRand(time.Now().UnixNano()),
	}
}

func (r *SelectRunner) Name() string {
	return "select"
}

func (r *SelectRunner) Run(ctx context.Context) ([]*Result, error) {
	retrieval := NewResult("select", "retrieval", r.cfg.Model, true)
	processing := NewResult("select", "processing", r.cfg.Model, false)
	shares := partition(r.cfg.SelectIterations, r.cfg.Workers)

	// Elapsed time per phase is the summed phase durations, not the shared
	// wall clock: the two phases interleave on the same workers.
	var retrievalNanos, processingNanos atomic.Int64

	err := runWorkers(len(shares), func(w int) error {
		return r.runWorker(ctx, shares[w], retrieval, processing, &retrievalNanos, &processingNanos)
	})
	retrieval.Elapsed = time.Duration(retrievalNanos.Load())
	processing.Elapsed = time.Duration(processingNanos.Load())

	log.Infof("select/%s finished: %d queries, %d rows processed, %d queries skipped",
		r.cfg.Model, retrieval.Operations(), processing.Operations(), retrieval.Skipped())
	return []*Result{retrieval, processing}, err
}

func (r *SelectRunner) runWorker(
	ctx context.Context,
	iterations int,
	retrieval, processing *Result,
	retrievalNanos, processingNanos *atomic.Int64,
) error {
	conn, err := r.source.Acquire(ctx)
	if err != nil {
		return errors.WithMessage(err, "acquiring connection")
	}
	defer conn.Release()

	selectSQL := queries.SelectRange(r.cfg.Model.Table())
	low, high := r.cfg.tenantLow(), r.cfg.tenantHigh()

	for i := 0; i < iterations; i++ {
		procStart := time.Now()
		args := []any{low + r.rnd.Int63n(suffixSpace), high, r.cfg.BatchSize}
		procEnd := time.Now()
		retrieval.ProcTime.RecordDuration(procEnd.Sub(procStart))

		dbStart := time.Now()
		rows, err := conn.Query(ctx, selectSQL, args...)
		dbEnd := time.Now()
		if err != nil {
			retrieval.AddSkipped(1)
			r.metrics.RecordDBError(metrics.DBOperationSelect)
			r.metrics.RecordAbandonedUnit(metrics.DBOperationSelect)
			log.WithError(err).Warn("select query abandoned, continuing")
			continue
		}

		dbDur := dbEnd.Sub(dbStart)
		retrievalNanos.Add(int64(dbDur))
		retrieval.DBTime.RecordDuration(dbDur)
		retrieval.Total.Record(recorder.MillisRoundedUp(dbEnd.Sub(procStart)))
		retrieval.AddOperations(1)
		r.metrics.ObserveDBRetrieval(dbDur.Seconds())

		r.processRows(rows, processing, processingNanos)
	}
	return nil
}

// processRows walks the result set and converts every cf3 value back to a
// wall-clock datetime, which is the work an application would do with these
// rows.
func (r *SelectRunner) processRows(rows rowIterator, processing *Result, processingNanos *atomic.Int64) {
	start := time.Now()
	processed := int64(0)
	skipped := int64(0)
	for rows.Next() {
		var (
			id      int64
			cf3     int64
			varchar *string
		)
		if err := rows.Scan(&id, &cf3, &varchar); err != nil {
			skipped++
			log.WithError(err).Warn("row scan failed, skipping row")
			continue
		}
		var ts time.Time
		if r.cfg.Model.Bitpack() {
			ts = bitpack.Unpack(uint64(cf3))
		} else {
			ts = time.UnixMilli(cf3).UTC()
		}
		// Touch the decoded value so the conversion cannot be elided.
		_ = ts.Year()
		processed++
	}
	if err := rows.Err(); err != nil {
		skipped++
		log.WithError(err).Warn("result set terminated early")
	}
	rows.Close()
	dur := time.Since(start)
	processingNanos.Add(int64(dur))

	if processed > 0 {
		avg := recorder.MillisRoundedUp(dur / time.Duration(processed))
		processing.Total.RecordN(avg, processed)
		processing.ProcTime.RecordN(avg, processed)
		processing.AddOperations(processed)
		r.metrics.RecordOps(int(processed))
		r.metrics.ObserveProcessing(dur.Seconds())
	}
	processing.AddSkipped(skipped)
}

// rowIterator is the slice of pgx.Rows the processing phase touches; tests
// substitute in-memory result sets.
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}
