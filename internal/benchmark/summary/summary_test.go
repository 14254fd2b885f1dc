package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronobench/chronobench/internal/benchmark/workload"
)

func TestFromResultComposesTotalTime(t *testing.T) {
	res := workload.NewResult("insert", "all", workload.ModelEpoch, true)
	for i := 0; i < 10; i++ {
		res.Total.Record(12)
		res.DBTime.Record(10)
		res.ProcTime.Record(2)
	}
	res.AddOperations(10)
	res.Elapsed = time.Second

	s := FromResult(res)

	assert.Equal(t, "insert", s.Workload)
	assert.Equal(t, workload.ModelEpoch, s.Model)
	assert.InDelta(t, 12.0, s.P50, 0.1)
	assert.InDelta(t, 10.0, s.DBTime, 0.1)
	assert.InDelta(t, 2.0, s.ProcessingTime, 0.1)
	assert.InDelta(t, 12.0, s.TotalTime, 0.2)
	assert.Equal(t, int64(10), s.Operations)
}

func TestThroughputFromDBTime(t *testing.T) {
	res := workload.NewResult("update", "cf3", workload.ModelEpoch, true)
	// 100 samples at 10ms of db time each: one second of db time in total,
	// so 100 units/second.
	for i := 0; i < 100; i++ {
		res.Total.Record(11)
		res.DBTime.Record(10)
	}
	res.AddOperations(100)

	s := FromResult(res)
	assert.InDelta(t, 100.0, s.Throughput, 1.0)
}

func TestThroughputZeroWhenNotApplicable(t *testing.T) {
	res := workload.NewResult("select", "processing", workload.ModelBitpack, false)
	// Nonzero db time and counts: the flag alone must force zero.
	for i := 0; i < 50; i++ {
		res.Total.Record(5)
		res.DBTime.Record(5)
	}
	res.AddOperations(50)
	res.Elapsed = time.Second

	s := FromResult(res)
	assert.Equal(t, 0.0, s.Throughput)
}

func TestThroughputFallsBackToElapsed(t *testing.T) {
	res := workload.NewResult("extract", "group_by_year", workload.ModelEpoch, true)
	// Latency recorded but no db samples at all.
	res.Total.Record(20)
	res.AddOperations(40)
	res.Elapsed = 2 * time.Second

	s := FromResult(res)
	assert.InDelta(t, 20.0, s.Throughput, 0.1)
}

func TestThroughputZeroOnEmptyResult(t *testing.T) {
	res := workload.NewResult("delete", "range", workload.ModelEpoch, true)
	s := FromResult(res)
	assert.Equal(t, 0.0, s.Throughput)
	assert.Equal(t, 0.0, s.P50)
	assert.Equal(t, 0.0, s.TotalTime)
}

func TestRunSummaryCollectsResults(t *testing.T) {
	rs := NewRunSummary(workload.ModelBitpack)
	require.NotEmpty(t, rs.RunID)
	assert.Equal(t, workload.ModelBitpack, rs.Model)

	first := workload.NewResult("select", "retrieval", workload.ModelBitpack, true)
	second := workload.NewResult("select", "processing", workload.ModelBitpack, false)
	rs.Add([]*workload.Result{first, second})

	require.Len(t, rs.Summaries, 2)
	assert.Equal(t, "retrieval", rs.Summaries[0].Operation)
	assert.Equal(t, "processing", rs.Summaries[1].Operation)
}
