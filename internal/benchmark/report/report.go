// Package report writes benchmark summaries to CSV files and the console.
// Each workload gets its own small CSV, and every run appends its rows to a
// combined summary.csv so successive runs (epoch, then bitpack) end up side
// by side in one file.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/chronobench/chronobench/internal/benchmark/summary"
)

const (
	combinedFile   = "summary.csv"
	combinedHeader = "model,workload,operation,p50,p90,p99,throughput,db_time,processing_time,total_time"
	workloadHeader = "workload,operation,p50,p90,p99,throughput,db_time,processing_time,total_time"
)

// Writer persists run summaries under a results directory, creating it on
// first use.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write emits one CSV per workload summary, appends all rows to the combined
// summary file and logs a console line per summary.
func (w *Writer) Write(rs *summary.RunSummary) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.WithMessagef(err, "creating results directory %s", w.dir)
	}
	for _, s := range rs.Summaries {
		if err := w.writeWorkloadFile(s); err != nil {
			return err
		}
		logSummary(s)
	}
	return w.appendCombined(rs)
}

func (w *Writer) writeWorkloadFile(s *summary.Summary) error {
	name := fmt.Sprintf("%s-%s-summary.csv", s.Workload, s.Model)
	path := filepath.Join(w.dir, name)
	content := workloadHeader + "\n" + workloadRow(s) + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.WithMessagef(err, "writing %s", path)
	}
	return nil
}

func (w *Writer) appendCombined(rs *summary.RunSummary) error {
	path := filepath.Join(w.dir, combinedFile)
	_, statErr := os.Stat(path)
	newFile := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.WithMessagef(err, "opening %s", path)
	}
	defer f.Close()

	var b strings.Builder
	if newFile {
		b.WriteString(combinedHeader + "\n")
	}
	for _, s := range rs.Summaries {
		b.WriteString(combinedRow(s) + "\n")
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return errors.WithMessagef(err, "appending to %s", path)
	}
	log.Infof("run %s: wrote %d summaries to %s", rs.RunID, len(rs.Summaries), path)
	return nil
}

func workloadRow(s *summary.Summary) string {
	return fmt.Sprintf("%s,%s,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f,%.2f",
		s.Workload, s.Operation, s.P50, s.P90, s.P99, s.Throughput,
		s.DBTime, s.ProcessingTime, s.TotalTime)
}

func combinedRow(s *summary.Summary) string {
	return fmt.Sprintf("%s,%s", s.Model, workloadRow(s))
}

func logSummary(s *summary.Summary) {
	throughput := fmt.Sprintf("%.2f rows/s", s.Throughput)
	if !s.ThroughputApplicable {
		throughput = "N/A (CPU-only)"
	}
	log.Infof("[%s] %s/%s p50=%.2fms p90=%.2fms p99=%.2fms throughput=%s db=%.2fms proc=%.2fms total=%.2fms",
		s.Model, s.Workload, s.Operation, s.P50, s.P90, s.P99, throughput,
		s.DBTime, s.ProcessingTime, s.TotalTime)
}
