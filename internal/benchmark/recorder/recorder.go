// Package recorder wraps HdrHistogram with the recording rules the benchmark
// relies on: millisecond units, a floor of one unit so sub-millisecond
// latencies never collapse to zero, and safe concurrent use from multiple
// workers.
package recorder

import (
	"math"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
)

const (
	// Smallest recordable latency, one millisecond.
	minValueMs = 1
	// Largest recordable latency, one hour. Matches the dynamic range the
	// workloads produce, from CPU-bound conversions to lock-bound deletes.
	maxValueMs = 3600000

	sigFigs = 3
)

// Recorder is a thread-safe latency histogram in milliseconds.
type Recorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func New() *Recorder {
	return &Recorder{
		hist: hdrhistogram.New(minValueMs, maxValueMs, sigFigs),
	}
}

// Record stores a single latency value. Values below the minimum unit are
// raised to it: a zero would corrupt the percentile distribution and hide
// real latency. Values above the trackable maximum saturate at it.
func (r *Recorder) Record(ms int64) {
	r.RecordN(ms, 1)
}

// RecordN stores the same latency value n times. Used by workloads that
// weight a batch latency by the number of rows in the batch.
func (r *Recorder) RecordN(ms int64, n int64) {
	if n <= 0 {
		return
	}
	if ms < minValueMs {
		ms = minValueMs
	}
	if ms > maxValueMs {
		ms = maxValueMs
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Bounds are clamped above, RecordValues cannot fail.
	_ = r.hist.RecordValues(ms, n)
}

// RecordDuration records d rounded to whole milliseconds. Durations under a
// millisecond round up to one; anything longer rounds half-up.
func (r *Recorder) RecordDuration(d time.Duration) {
	r.Record(MillisRoundedUp(d))
}

// MillisRoundedUp converts a duration to milliseconds with the benchmark's
// rounding rule: positive sub-millisecond values become 1, everything else
// rounds half-up.
func MillisRoundedUp(d time.Duration) int64 {
	if d < time.Millisecond {
		return 1
	}
	return int64(math.Round(float64(d) / float64(time.Millisecond)))
}

// Percentile returns the latency value at percentile p (e.g. 50, 90, 99).
// An empty recorder returns 0.
func (r *Recorder) Percentile(p float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return 0
	}
	return float64(r.hist.ValueAtQuantile(p))
}

// Mean returns the arithmetic mean of all recorded values, or 0 if nothing
// has been recorded.
func (r *Recorder) Mean() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return 0
	}
	return r.hist.Mean()
}

// Count returns the number of recorded values.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hist.TotalCount()
}

// Max returns the largest recorded value, or 0 if empty.
func (r *Recorder) Max() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return 0
	}
	return r.hist.Max()
}
