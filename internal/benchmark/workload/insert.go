package workload

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/executor"
	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/queries"
	"github.com/chronobench/chronobench/internal/benchmark/recorder"
	"github.com/chronobench/chronobench/internal/common/util"
)

// InsertRunner loads the target table in batches. Each batch is built
// client-side (processing time), then inserted inside a single retried
// transaction (database time); the batch latency is recorded once per row so
// percentiles stay per-row comparable across batch sizes.
type InsertRunner struct {
	source  ConnSource
	exec    *executor.Executor
	metrics *metrics.Metrics
	clock   util.Clock
	cfg     Config
	gen     *rowGenerator
}

func NewInsertRunner(source ConnSource, exec *executor.Executor, m *metrics.Metrics, cfg Config) *InsertRunner {
	return &InsertRunner{
		source:  source,
		exec:    exec,
		metrics: m,
		clock:   &util.DefaultClock{},
		cfg:     cfg,
		gen:     newRowGenerator(cfg.Model, cfg.TenantPrefix, time.Now().UnixNano()),
	}
}

func (r *InsertRunner) Name() string {
	return "insert"
}

func (r *InsertRunner) Run(ctx context.Context) ([]*Result, error) {
	res := NewResult("insert", "all", r.cfg.Model, true)
	shares := partition(r.cfg.Rows, r.cfg.Workers)

	start := r.clock.Now()
	err := runWorkers(len(shares), func(w int) error {
		return r.runWorker(ctx, w, len(shares), shares[w], res)
	})
	res.Elapsed = r.clock.Now().Sub(start)

	log.Infof("insert/%s finished: %d rows inserted, %d skipped in %s",
		r.cfg.Model, res.Operations(), res.Skipped(), res.Elapsed.Round(time.Millisecond))
	return []*Result{res}, err
}

func (r *InsertRunner) runWorker(ctx context.Context, w, workers, rows int, res *Result) error {
	conn, err := r.source.Acquire(ctx)
	if err != nil {
		return errors.WithMessage(err, "acquiring connection")
	}
	defer conn.Release()

	insertSQL := queries.Insert(r.cfg.Model.Table())
	suffixLow, suffixSpan := suffixRange(w, workers)

	for inserted := 0; inserted < rows; {
		batch := r.cfg.BatchSize
		if remaining := rows - inserted; batch > remaining {
			batch = remaining
		}
		inserted += batch

		procStart := time.Now()
		b := &pgx.Batch{}
		for i := 0; i < batch; i++ {
			b.Queue(insertSQL, r.gen.row(suffixLow, suffixSpan)...)
		}
		procEnd := time.Now()
		res.ProcTime.RecordDuration(procEnd.Sub(procStart))

		dbStart := time.Now()
		err := r.exec.Execute(ctx, conn, func(tx executor.Tx) error {
			return drainBatch(ctx, tx, b, batch)
		})
		dbEnd := time.Now()
		if err != nil {
			res.AddSkipped(int64(batch))
			r.metrics.RecordDBError(metrics.DBOperationInsert)
			r.metrics.RecordAbandonedUnit(metrics.DBOperationInsert)
			log.WithError(err).Warnf("insert batch of %d rows abandoned, continuing", batch)
			continue
		}

		res.DBTime.RecordDuration(dbEnd.Sub(dbStart))
		// The batch is one database round trip but batch-size rows of work:
		// weight the end-to-end latency by the row count.
		res.Total.RecordN(recorder.MillisRoundedUp(dbEnd.Sub(procStart)), int64(batch))
		res.AddOperations(int64(batch))
		r.metrics.RecordOps(batch)
	}
	return nil
}
