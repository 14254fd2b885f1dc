// Package workload contains the benchmark workload runners. Each runner
// drives one operation type (insert, update, select, extract, delete, mixed
// transactions) against the storage model under test, decomposing every unit
// of work into database time, client-side processing time and end-to-end
// time.
//
// A runner owns its Result exclusively. It may fan work out across several
// workers, each holding its own pooled connection; workers synchronize only
// on the recorders, which are thread-safe.
package workload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/chronobench/chronobench/internal/benchmark/executor"
	"github.com/chronobench/chronobench/internal/benchmark/recorder"
)

// Model selects which storage representation of cf3 a workload runs against.
type Model string

const (
	ModelEpoch   Model = "epoch"
	ModelBitpack Model = "bitpack"
)

func (m Model) Table() string {
	return "bench_common_" + string(m)
}

func (m Model) Bitpack() bool {
	return m == ModelBitpack
}

// Each tenant owns the keyspace [prefix*tenantSpan, prefix*tenantSpan+tenantSpanWidth]
// of the tenant_module_range column. The span keeps the default tenant prefix
// well inside int64 range.
const (
	tenantSpan      = int64(10000000000)
	tenantSpanWidth = int64(9999999999999)
	// Random suffix space for generated tenant_module_range values. Workers
	// partition this space so each owns a disjoint ID range.
	suffixSpace = int64(1000000)
)

type Config struct {
	Model               Model
	TenantPrefix        int64
	Rows                int
	BatchSize           int
	Workers             int
	SelectIterations    int
	TxnCount            int
	OpsPerTxn           int
	UpdateTargetRows    int64
	UpdateMaxIterations int
	DeleteTargetRows    int64
}

func (c Config) tenantLow() int64 {
	return c.TenantPrefix * tenantSpan
}

func (c Config) tenantHigh() int64 {
	return c.tenantLow() + tenantSpanWidth
}

// Result is the per-workload aggregate: three latency recorders plus the
// counters the aggregator needs. Written only by the owning runner's workers
// while the workload runs, read-only afterwards.
type Result struct {
	Workload  string
	Operation string
	Model     Model

	// End-to-end latency; the percentile basis.
	Total *recorder.Recorder
	// Database call latency only.
	DBTime *recorder.Recorder
	// Client-side processing latency only, recorded from its own start/end
	// pair rather than by subtraction.
	ProcTime *recorder.Recorder

	// False for CPU-only phases, where reporting a rate would misrepresent
	// I/O capacity.
	ThroughputApplicable bool

	// Wall-clock span of the whole workload, first unit start to last unit
	// completion.
	Elapsed time.Duration

	operations atomic.Int64
	skipped    atomic.Int64
}

func NewResult(workload, operation string, model Model, throughputApplicable bool) *Result {
	return &Result{
		Workload:             workload,
		Operation:            operation,
		Model:                model,
		Total:                recorder.New(),
		DBTime:               recorder.New(),
		ProcTime:             recorder.New(),
		ThroughputApplicable: throughputApplicable,
	}
}

func (r *Result) AddOperations(n int64) { r.operations.Add(n) }

// Operations is the workload-specific operation count: rows for inserts,
// affected rows for updates and deletes, queries for retrieval, transactions
// for the mixed workload.
func (r *Result) Operations() int64 { return r.operations.Load() }

func (r *Result) AddSkipped(n int64) { r.skipped.Add(n) }

// Skipped counts abandoned units of work.
func (r *Result) Skipped() int64 { return r.skipped.Load() }

// Runner is a single benchmark workload. Run blocks until every submitted
// unit has completed and returns one Result per reported sub-metric.
type Runner interface {
	Name() string
	Run(ctx context.Context) ([]*Result, error)
}

// Conn is the per-worker database handle: it begins transactions for the
// retrying executor and runs plain queries for the read paths.
type Conn interface {
	executor.Beginner
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Release()
}

// ConnSource hands a dedicated connection to each worker. Connections are
// never shared between concurrent workers.
type ConnSource interface {
	Acquire(ctx context.Context) (Conn, error)
}

type pgxConnSource struct {
	pool *pgxpool.Pool
}

func NewPgxConnSource(pool *pgxpool.Pool) ConnSource {
	return pgxConnSource{pool: pool}
}

func (s pgxConnSource) Acquire(ctx context.Context) (Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "acquiring connection")
	}
	return pgxConn{conn: conn}, nil
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c pgxConn) Begin(ctx context.Context) (executor.Tx, error) {
	return c.conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
}

func (c pgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c pgxConn) Release() {
	c.conn.Release()
}

// partition splits total units across workers as evenly as possible. Workers
// that would receive zero units are dropped.
func partition(total, workers int) []int {
	if workers < 1 {
		workers = 1
	}
	if workers > total {
		workers = total
	}
	shares := make([]int, 0, workers)
	base := total / workers
	remainder := total % workers
	for i := 0; i < workers; i++ {
		share := base
		if i < remainder {
			share++
		}
		if share > 0 {
			shares = append(shares, share)
		}
	}
	return shares
}

// suffixRange returns the slice of the random suffix space owned by worker w,
// so concurrent workers generate rows in disjoint ID ranges.
func suffixRange(w, workers int) (low, span int64) {
	if workers < 1 {
		workers = 1
	}
	span = suffixSpace / int64(workers)
	if span < 1 {
		span = 1
	}
	return int64(w) * span, span
}

// runWorkers runs fn once per worker concurrently and waits for all of them.
// Worker errors are workload-level failures and are collected into a
// multierror.
func runWorkers(workers int, fn func(worker int) error) error {
	wg := sync.WaitGroup{}
	wg.Add(workers)
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			if err := fn(w); err != nil {
				errs <- errors.WithMessagef(err, "worker %d", w)
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	var result *multierror.Error
	for err := range errs {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// drainBatch sends a queued batch over tx and surfaces the first statement
// error. n must be the number of queued statements.
func drainBatch(ctx context.Context, tx executor.Tx, b *pgx.Batch, n int) error {
	br := tx.SendBatch(ctx, b)
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}
