// Package benchmark wires the workload runners into a full run: open the
// pool, prepare the tables, execute every workload in order and aggregate the
// results.
package benchmark

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/configuration"
	"github.com/chronobench/chronobench/internal/benchmark/executor"
	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/setup"
	"github.com/chronobench/chronobench/internal/benchmark/summary"
	"github.com/chronobench/chronobench/internal/benchmark/workload"
	"github.com/chronobench/chronobench/internal/common/database"
)

// Run executes every workload once against the configured model, in a fixed
// order: later workloads read and delete the rows earlier ones wrote, so the
// sequence is part of the benchmark's semantics and never parallelized.
//
// A failing workload is logged and skipped; the remaining workloads still
// run. The collected error (if any) is returned alongside the summaries of
// everything that did complete.
func Run(ctx context.Context, config configuration.BenchmarkConfiguration) (*summary.RunSummary, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	model := workload.Model(config.Model)

	pool, err := database.OpenPgxPool(config.Postgres, config.Workers)
	if err != nil {
		return nil, errors.WithMessage(err, "opening connection pool")
	}
	defer pool.Close()

	if err := setup.CreateTables(ctx, pool); err != nil {
		return nil, err
	}
	if err := setup.TruncateTables(ctx, pool); err != nil {
		return nil, err
	}

	cfg := workload.Config{
		Model:               model,
		TenantPrefix:        config.TenantPrefix,
		Rows:                config.Rows,
		BatchSize:           config.BatchSize,
		Workers:             config.Workers,
		SelectIterations:    config.SelectIterations,
		TxnCount:            config.TxnCount,
		OpsPerTxn:           config.OpsPerTxn,
		UpdateTargetRows:    config.UpdateTargetRows,
		UpdateMaxIterations: config.UpdateMaxIterations,
		DeleteTargetRows:    config.DeleteTargetRows,
	}
	source := workload.NewPgxConnSource(pool)
	m := metrics.Get()
	exec := executor.NewWithOptions(
		executor.DefaultMaxAttempts,
		executor.DefaultRetryDelay,
		func(attempt int, err error) { m.RecordConflictRetry() },
	)

	runners := []workload.Runner{
		workload.NewInsertRunner(source, exec, m, cfg),
		workload.NewUpdateRunner(source, exec, m, cfg),
		workload.NewSelectRunner(source, m, cfg),
		workload.NewExtractRunner(source, m, cfg),
		workload.NewTxnMixedRunner(source, exec, m, cfg),
		workload.NewDeleteRunner(source, exec, m, cfg),
	}

	rs := summary.NewRunSummary(model)
	var runErrs *multierror.Error
	for _, runner := range runners {
		log.Infof("running %s workload against %s", runner.Name(), model.Table())
		start := time.Now()
		results, err := runner.Run(ctx)
		if err != nil {
			runErrs = multierror.Append(runErrs, errors.WithMessagef(err, "%s workload", runner.Name()))
			log.WithError(err).Errorf("%s workload failed, continuing with remaining workloads", runner.Name())
		}
		rs.Add(results)
		log.Infof("%s workload done in %s", runner.Name(), time.Since(start).Round(time.Millisecond))
	}
	return rs, runErrs.ErrorOrNil()
}
