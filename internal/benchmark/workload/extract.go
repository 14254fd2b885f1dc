package workload

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/metrics"
	"github.com/chronobench/chronobench/internal/benchmark/queries"
	"github.com/chronobench/chronobench/internal/benchmark/recorder"
	"github.com/chronobench/chronobench/internal/common/util"
)

// ExtractRunner runs the year-grouping aggregation once: a single
// whole-table GROUP BY over the year encoded in cf3. The interesting
// comparison is the extraction expression itself, bit shifting versus
// to_timestamp, so one query per run is the whole workload.
type ExtractRunner struct {
	source  ConnSource
	metrics *metrics.Metrics
	clock   util.Clock
	cfg     Config
}

func NewExtractRunner(source ConnSource, m *metrics.Metrics, cfg Config) *ExtractRunner {
	return &ExtractRunner{source: source, metrics: m, clock: &util.DefaultClock{}, cfg: cfg}
}

func (r *ExtractRunner) Name() string {
	return "extract"
}

func (r *ExtractRunner) Run(ctx context.Context) ([]*Result, error) {
	res := NewResult("extract", "group_by_year", r.cfg.Model, true)

	conn, err := r.source.Acquire(ctx)
	if err != nil {
		return []*Result{res}, errors.WithMessage(err, "acquiring connection")
	}
	defer conn.Release()

	extractSQL := queries.ExtractYears(r.cfg.Model.Table(), r.cfg.Model.Bitpack())

	start := r.clock.Now()
	totalStart := time.Now()

	dbStart := time.Now()
	rows, err := conn.Query(ctx, extractSQL)
	dbEnd := time.Now()
	if err != nil {
		res.AddSkipped(1)
		r.metrics.RecordDBError(metrics.DBOperationExtract)
		r.metrics.RecordAbandonedUnit(metrics.DBOperationExtract)
		res.Elapsed = r.clock.Now().Sub(start)
		return []*Result{res}, errors.WithMessage(err, "extract query failed")
	}
	res.DBTime.RecordDuration(dbEnd.Sub(dbStart))
	r.metrics.ObserveDBRetrieval(dbEnd.Sub(dbStart).Seconds())

	procStart := time.Now()
	groups := 0
	for rows.Next() {
		var year, count int64
		if err := rows.Scan(&year, &count); err != nil {
			log.WithError(err).Warn("year group scan failed, skipping group")
			continue
		}
		log.Debugf("extract/%s: year %d has %d rows", r.cfg.Model, year, count)
		groups++
	}
	scanErr := rows.Err()
	rows.Close()
	procEnd := time.Now()
	res.ProcTime.RecordDuration(procEnd.Sub(procStart))
	r.metrics.ObserveProcessing(procEnd.Sub(procStart).Seconds())

	res.Total.Record(recorder.MillisRoundedUp(procEnd.Sub(totalStart)))
	res.AddOperations(1)
	r.metrics.RecordOps(1)
	res.Elapsed = r.clock.Now().Sub(start)

	if scanErr != nil {
		return []*Result{res}, errors.WithMessage(scanErr, "reading year groups")
	}
	log.Infof("extract/%s finished: %d year groups in %s", r.cfg.Model, groups, res.Elapsed.Round(time.Millisecond))
	return []*Result{res}, nil
}
