package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/chronobench/chronobench/internal/benchmark/configuration"
)

// Headroom added on top of the worker count when sizing the pool, so every
// worker can hold a dedicated connection without ever blocking on acquisition.
const PoolHeadroom = 4

func CreateConnectionString(values map[string]string) string {
	// https://www.postgresql.org/docs/10/libpq-connect.html#id-1.7.3.8.3.5
	result := ""
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	for k, v := range values {
		result += k + "='" + replacer.Replace(v) + "' "
	}
	return strings.TrimSpace(result)
}

// OpenPgxPool opens a pgx connection pool sized for the given worker count
// and verifies connectivity with a ping.
func OpenPgxPool(config configuration.PostgresConfig, workers int) (*pgxpool.Pool, error) {
	pgxConfig, err := pgxpool.ParseConfig(CreateConnectionString(config.Connection))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	pgxConfig.MaxConns = int32(workers + PoolHeadroom)

	db, err := pgxpool.NewWithConfig(context.Background(), pgxConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Ping(context.Background()); err != nil {
		db.Close()
		return nil, errors.WithStack(err)
	}
	return db, nil
}
