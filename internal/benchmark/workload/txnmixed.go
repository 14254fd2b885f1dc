package workload

import (
	"context"
	"fmt"
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

// Updates target ids drawn from [1, updateIDSpace], a hot set small enough to
// force write-write conflicts between workers.
const updateIDSpace = 1000

// TxnMixedRunner interleaves inserts and point updates inside single
// transactions. Latency is recorded once per transaction; the hot update ids
// make this the workload that actually exercises the conflict retry path
// under concurrency.
type TxnMixedRunner struct {
	source  ConnSource
	exec    *executor.Executor
	metrics *metrics.Metrics
	clock   util.Clock
	cfg     Config
	gen     *rowGenerator
}

func NewTxnMixedRunner(source ConnSource, exec *executor.Executor, m *metrics.Metrics, cfg Config) *TxnMixedRunner {
	return &TxnMixedRunner{
		source:  source,
		exec:    exec,
		metrics: m,
		clock:   &util.DefaultClock{},
		cfg:     cfg,
		gen:     newRowGenerator(cfg.Model, cfg.TenantPrefix, time.Now().UnixNano()),
	}
}

func (r *TxnMixedRunner) Name() string {
	return "txn_mixed"
}

func (r *TxnMixedRunner) Run(ctx context.Context) ([]*Result, error) {
	res := NewResult("txn_mixed", "all", r.cfg.Model, true)
	shares := partition(r.cfg.TxnCount, r.cfg.Workers)

	start := r.clock.Now()
	err := runWorkers(len(shares), func(w int) error {
		return r.runWorker(ctx, w, len(shares), shares[w], res)
	})
	res.Elapsed = r.clock.Now().Sub(start)

	log.Infof("txn_mixed/%s finished: %d transactions committed, %d abandoned in %s",
		r.cfg.Model, res.Operations(), res.Skipped(), res.Elapsed.Round(time.Millisecond))
	return []*Result{res}, err
}

func (r *TxnMixedRunner) runWorker(ctx context.Context, w, workers, txns int, res *Result) error {
	conn, err := r.source.Acquire(ctx)
	if err != nil {
		return errors.WithMessage(err, "acquiring connection")
	}
	defer conn.Release()

	insertSQL := queries.Insert(r.cfg.Model.Table())
	updateSQL := queries.UpdateVarcharByID(r.cfg.Model.Table())
	suffixLow, suffixSpan := suffixRange(w, workers)

	for i := 0; i < txns; i++ {
		procStart := time.Now()
		b := &pgx.Batch{}
		statements := 0
		for op := 0; op < r.cfg.OpsPerTxn; op++ {
			b.Queue(insertSQL, r.gen.row(suffixLow, suffixSpan)...)
			statements++
			// Every other operation also touches the hot id set.
			if op%2 == 0 {
				id := r.gen.rnd.Int63n(updateIDSpace) + 1
				b.Queue(updateSQL, fmt.Sprintf("txn-%d-%d", w, i), id)
				statements++
			}
		}
		procEnd := time.Now()
		res.ProcTime.RecordDuration(procEnd.Sub(procStart))

		dbStart := time.Now()
		err := r.exec.Execute(ctx, conn, func(tx executor.Tx) error {
			return drainBatch(ctx, tx, b, statements)
		})
		dbEnd := time.Now()
		if err != nil {
			res.AddSkipped(1)
			r.metrics.RecordDBError(metrics.DBOperationTxn)
			r.metrics.RecordAbandonedUnit(metrics.DBOperationTxn)
			log.WithError(err).Warn("mixed transaction abandoned, continuing")
			continue
		}

		res.DBTime.RecordDuration(dbEnd.Sub(dbStart))
		res.Total.Record(recorder.MillisRoundedUp(dbEnd.Sub(procStart)))
		res.AddOperations(1)
		r.metrics.RecordOps(1)
	}
	return nil
}
