package workload

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/executor"
	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/queries"
	"github.com/chronobench/chronobench/internal/benchmark/recorder"
	"github.com/chronobench/chronobench/internal/common/util"
)

// DeleteRunner removes bounded slices of the tenant range until a target
// number of rows is gone or the range is empty. All workers sweep the same
// full range: the resulting lock contention is intentional and is absorbed by
// the conflict-retrying executor.
type DeleteRunner struct {
	source  ConnSource
	exec    *executor.Executor
	metrics *metrics.Metrics
	clock   util.Clock
	cfg     Config
}

func NewDeleteRunner(source ConnSource, exec *executor.Executor, m *metrics.Metrics, cfg Config) *DeleteRunner {
	return &DeleteRunner{source: source, exec: exec, metrics: m, clock: &util.DefaultClock{}, cfg: cfg}
}

func (r *DeleteRunner) Name() string {
	return "delete"
}

func (r *DeleteRunner) Run(ctx context.Context) ([]*Result, error) {
	res := NewResult("delete", "range", r.cfg.Model, true)

	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	target := r.cfg.DeleteTargetRows / int64(workers)
	if target < 1 {
		target = 1
	}

	start := r.clock.Now()
	err := runWorkers(workers, func(w int) error {
		return r.runWorker(ctx, target, res)
	})
	res.Elapsed = r.clock.Now().Sub(start)

	log.Infof("delete/%s finished: %d rows deleted in %d statements, %d statements skipped",
		r.cfg.Model, res.Operations(), res.Total.Count(), res.Skipped())
	return []*Result{res}, err
}

func (r *DeleteRunner) runWorker(ctx context.Context, target int64, res *Result) error {
	conn, err := r.source.Acquire(ctx)
	if err != nil {
		return errors.WithMessage(err, "acquiring connection")
	}
	defer conn.Release()

	deleteSQL := queries.DeleteRange(r.cfg.Model.Table())
	low, high := r.cfg.tenantLow(), r.cfg.tenantHigh()

	// Enough statements to hit the target twice over, so skipped statements
	// cannot spin the loop forever.
	maxStatements := 2*int(target/int64(r.cfg.BatchSize)) + 100

	var deleted int64
	for statements := 0; deleted < target && statements < maxStatements; statements++ {
		procStart := time.Now()
		args := []any{low, high, r.cfg.BatchSize}
		procEnd := time.Now()
		res.ProcTime.RecordDuration(procEnd.Sub(procStart))

		var affected int64
		dbStart := time.Now()
		err := r.exec.Execute(ctx, conn, func(tx executor.Tx) error {
			tag, err := tx.Exec(ctx, deleteSQL, args...)
			if err != nil {
				return err
			}
			affected = tag.RowsAffected()
			return nil
		})
		dbEnd := time.Now()
		if err != nil {
			res.AddSkipped(1)
			r.metrics.RecordDBError(metrics.DBOperationDelete)
			r.metrics.RecordAbandonedUnit(metrics.DBOperationDelete)
			log.WithError(err).Warn("delete statement abandoned, continuing")
			continue
		}

		res.DBTime.RecordDuration(dbEnd.Sub(dbStart))
		res.Total.Record(recorder.MillisRoundedUp(dbEnd.Sub(procStart)))
		if affected == 0 {
			// Nothing left in range.
			break
		}
		deleted += affected
		res.AddOperations(affected)
		r.metrics.RecordOps(int(affected))
	}
	return nil
}
