package workload

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chronobench/chronobench/internal/benchmark/executor"
)

// fakeConnSource hands out a single scripted connection to every worker.
type fakeConnSource struct {
	conn *fakeConn
}

func (s *fakeConnSource) Acquire(ctx context.Context) (Conn, error) {
	return s.conn, nil
}

type fakeConn struct {
	exec      func(sql string, args ...any) (pgconn.CommandTag, error)
	sendBatch func(b *pgx.Batch) error
	query     func(sql string, args ...any) (pgx.Rows, error)

	mu       sync.Mutex
	begins   int
	commits  int
	releases int
}

func (c *fakeConn) Begin(ctx context.Context) (executor.Tx, error) {
	c.mu.Lock()
	c.begins++
	c.mu.Unlock()
	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.query(sql, args...)
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	c.releases++
	c.mu.Unlock()
}

type fakeTx struct {
	conn *fakeConn
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.conn.exec(sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.conn.query(sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return &fakeBatchResults{err: t.conn.sendBatch(b), n: b.Len()}
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.conn.mu.Lock()
	t.conn.commits++
	t.conn.mu.Unlock()
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	return nil
}

type fakeBatchResults struct {
	err error
	n   int
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 1"), r.err
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) {
	return nil, r.err
}

func (r *fakeBatchResults) QueryRow() pgx.Row {
	return nil
}

func (r *fakeBatchResults) Close() error {
	return nil
}

// fakeRows is an in-memory pgx.Rows over pre-built value rows. Supported scan
// targets are *int64 and **string, which is all the workloads read.
type fakeRows struct {
	rows      [][]any
	idx       int
	scanErrAt int
	scanErr   error
	rowsErr   error
	closed    bool
}

func newFakeRows(rows [][]any) *fakeRows {
	return &fakeRows{rows: rows, scanErrAt: -1}
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.idx-1 == r.scanErrAt {
		return r.scanErr
	}
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case **string:
			s := row[i].(string)
			*v = &s
		}
	}
	return nil
}

func (r *fakeRows) Err() error {
	return r.rowsErr
}

func (r *fakeRows) Close() {
	r.closed = true
}

func (r *fakeRows) CommandTag() pgconn.CommandTag {
	return pgconn.CommandTag{}
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return nil, nil
}

func (r *fakeRows) RawValues() [][]byte {
	return nil
}

func (r *fakeRows) Conn() *pgx.Conn {
	return nil
}
