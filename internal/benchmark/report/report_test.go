package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronobench/chronobench/internal/benchmark/summary"
	"github.com/chronobench/chronobench/internal/benchmark/workload"
)

func sampleRun(model workload.Model) *summary.RunSummary {
	rs := summary.NewRunSummary(model)
	rs.Summaries = []*summary.Summary{
		{
			Model:                model,
			Workload:             "insert",
			Operation:            "all",
			P50:                  10.5,
			P90:                  20.25,
			P99:                  31,
			Throughput:           1234.5678,
			ThroughputApplicable: true,
			DBTime:               9.1,
			ProcessingTime:       1.4,
			TotalTime:            10.5,
		},
		{
			Model:          model,
			Workload:       "select",
			Operation:      "processing",
			P50:            1,
			ProcessingTime: 1,
			TotalTime:      1,
		},
	}
	return rs
}

func TestWriteCreatesPerWorkloadFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.Write(sampleRun(workload.ModelEpoch)))

	data, err := os.ReadFile(filepath.Join(dir, "insert-epoch-summary.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "workload,operation,p50,p90,p99,throughput,db_time,processing_time,total_time", lines[0])
	assert.Equal(t, "insert,all,10.50,20.25,31.00,1234.57,9.10,1.40,10.50", lines[1])
}

func TestWriteAppendsCombinedSummaryAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.Write(sampleRun(workload.ModelEpoch)))
	require.NoError(t, w.Write(sampleRun(workload.ModelBitpack)))

	data, err := os.ReadFile(filepath.Join(dir, "summary.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	// One header plus two rows per run.
	require.Len(t, lines, 5)
	assert.Equal(t, "model,workload,operation,p50,p90,p99,throughput,db_time,processing_time,total_time", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "epoch,insert,all,"))
	assert.True(t, strings.HasPrefix(lines[3], "bitpack,insert,all,"))
	// Header is written once only.
	assert.Equal(t, 1, strings.Count(string(data), "model,workload"))
}

func TestWriteZeroThroughputRow(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.Write(sampleRun(workload.ModelBitpack)))

	data, err := os.ReadFile(filepath.Join(dir, "select-bitpack-summary.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "select,processing,1.00,0.00,0.00,0.00,0.00,1.00,1.00")
}

func TestWriteCreatesResultsDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	w := NewWriter(dir)

	require.NoError(t, w.Write(sampleRun(workload.ModelEpoch)))
	_, err := os.Stat(dir)
	assert.NoError(t, err)
}
