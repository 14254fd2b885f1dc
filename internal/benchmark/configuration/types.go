package configuration

import (
	"github.com/pkg/errors"

	"github.com/chronobench/chronobench/internal/common/bencherrors"
)

type PostgresConfig struct {
	// libpq key/value connection parameters, e.g. host, port, user, password,
	// dbname, sslmode.
	Connection map[string]string
}

type BenchmarkConfiguration struct {
	Postgres PostgresConfig
	// Storage model under test: "epoch" or "bitpack".
	Model string
	// Number of concurrent workers per workload. The connection pool is sized
	// Workers plus a small headroom so no worker ever blocks on acquisition.
	Workers int
	// Total rows inserted by the insert workload.
	Rows int
	// Rows per batch / statement LIMIT.
	BatchSize int
	// Tenant prefix embedded in packed values and in the tenant_module_range
	// keyspace.
	TenantPrefix int64
	// Query iterations for the select workload. Zero means max(100, Rows/BatchSize).
	SelectIterations int
	// Transactions executed by the mixed workload.
	TxnCount int
	// Insert operations per mixed transaction.
	OpsPerTxn int
	// The update workload stops once this many rows have been touched.
	UpdateTargetRows int64
	// Safety cap on update iterations.
	UpdateMaxIterations int
	// The delete workload stops once this many rows are gone.
	DeleteTargetRows int64
	// Port for the Prometheus exposition endpoint. If taken, the next free
	// port up to MetricsPort+99 is used.
	MetricsPort int
	// Directory the CSV summaries are written to.
	ResultsDir string
}

func (c *BenchmarkConfiguration) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "epoch"
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.Rows <= 0 {
		c.Rows = 200000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.TenantPrefix <= 0 {
		c.TenantPrefix = 1111111
	}
	if c.SelectIterations <= 0 {
		c.SelectIterations = max(100, c.Rows/c.BatchSize)
	}
	if c.TxnCount <= 0 {
		c.TxnCount = 1000
	}
	if c.OpsPerTxn <= 0 {
		c.OpsPerTxn = 200
	}
	if c.UpdateTargetRows <= 0 {
		c.UpdateTargetRows = 10000
	}
	if c.UpdateMaxIterations <= 0 {
		c.UpdateMaxIterations = 1000
	}
	if c.DeleteTargetRows <= 0 {
		c.DeleteTargetRows = 100000
	}
	if c.MetricsPort <= 0 {
		if c.Model == "bitpack" {
			c.MetricsPort = 9101
		} else {
			c.MetricsPort = 9100
		}
	}
	if c.ResultsDir == "" {
		c.ResultsDir = "results"
	}
}

// Validate checks the handful of fields defaults cannot repair.
func (c *BenchmarkConfiguration) Validate() error {
	if c.Model != "epoch" && c.Model != "bitpack" {
		return errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "model",
			Value:   c.Model,
			Message: "must be epoch or bitpack",
		})
	}
	if c.BatchSize > c.Rows {
		return errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "batchSize",
			Value:   c.BatchSize,
			Message: "cannot exceed rows",
		})
	}
	if len(c.Postgres.Connection) == 0 {
		return errors.WithStack(&bencherrors.ErrInvalidArgument{
			Name:    "postgres.connection",
			Value:   c.Postgres.Connection,
			Message: "connection parameters are required",
		})
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
