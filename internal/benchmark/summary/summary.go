// Package summary turns raw workload results into the per-workload summary
// records the reports are built from: percentiles of end-to-end latency, mean
// db and processing time, and a throughput figure whose basis depends on the
// workload's semantics.
package summary

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/workload"
	"github.com/chronobench/chronobench/internal/common/util"
)

// Tolerated gap in ms between the measured end-to-end mean and the sum of the
// db and processing means. The three intervals are measured independently, so
// scheduling noise and rounding produce small drift; anything larger points
// at a timing bug.
const driftToleranceMs = 2.0

// Summary is one reporting row. All durations are mean milliseconds except
// the percentiles, which are read from the end-to-end histogram.
type Summary struct {
	Model     workload.Model
	Workload  string
	Operation string

	P50 float64
	P90 float64
	P99 float64

	// Rows (or queries, or transactions) per second over summed database
	// time. Exactly 0 for CPU-only phases.
	Throughput float64
	// Carried through from the workload so reporting can distinguish "no
	// throughput by policy" from a measured zero.
	ThroughputApplicable bool

	DBTime         float64
	ProcessingTime float64
	TotalTime      float64

	Operations int64
	Skipped    int64
	Elapsed    time.Duration
}

// RunSummary collects the summaries of one full benchmark run over one model.
type RunSummary struct {
	RunID     string
	Model     workload.Model
	StartedAt time.Time
	Summaries []*Summary
}

func NewRunSummary(model workload.Model) *RunSummary {
	return &RunSummary{
		RunID:     util.NewULID(),
		Model:     model,
		StartedAt: time.Now().UTC(),
	}
}

func (rs *RunSummary) Add(results []*workload.Result) {
	for _, res := range results {
		rs.Summaries = append(rs.Summaries, FromResult(res))
	}
}

// FromResult computes a summary from a finished workload result.
//
// Total time is reported as the sum of the db and processing means rather
// than the end-to-end mean, so the column decomposes exactly into its two
// parts. The independently measured end-to-end mean is used to cross-check
// that sum.
func FromResult(res *workload.Result) *Summary {
	s := &Summary{
		Model:                res.Model,
		Workload:             res.Workload,
		Operation:            res.Operation,
		ThroughputApplicable: res.ThroughputApplicable,
		P50:            res.Total.Percentile(50),
		P90:            res.Total.Percentile(90),
		P99:            res.Total.Percentile(99),
		DBTime:         res.DBTime.Mean(),
		ProcessingTime: res.ProcTime.Mean(),
		Operations:     res.Operations(),
		Skipped:        res.Skipped(),
		Elapsed:        res.Elapsed,
	}
	s.TotalTime = s.DBTime + s.ProcessingTime
	s.Throughput = throughput(res)

	if measured := res.Total.Mean(); measured > 0 && s.TotalTime > 0 {
		if drift := math.Abs(measured - s.TotalTime); drift > driftToleranceMs {
			log.Warnf("%s/%s/%s: end-to-end mean %.2fms differs from db+processing %.2fms by %.2fms",
				res.Model, res.Workload, res.Operation, measured, s.TotalTime, drift)
		}
	}
	return s
}

// throughput derives units per second from summed database time: mean db
// latency times sample count. Wall-clock elapsed time is the fallback basis
// when no db time was recorded. CPU-only workloads report 0 by policy, never
// by inference from their (zero) db time.
func throughput(res *workload.Result) float64 {
	if !res.ThroughputApplicable {
		return 0
	}
	count := res.Total.Count()
	dbMean := res.DBTime.Mean()
	if dbMean > 0 && count > 0 {
		totalDBSeconds := dbMean * float64(count) / 1000.0
		return float64(count) / totalDBSeconds
	}
	if res.Elapsed > 0 && res.Operations() > 0 {
		return float64(res.Operations()) / res.Elapsed.Seconds()
	}
	return 0
}
