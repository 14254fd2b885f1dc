// Package setup creates and resets the benchmark tables. One table per
// storage model, identical shapes; only the meaning of cf3 differs (epoch
// milliseconds vs. packed datetime).
package setup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var Tables = []string{"bench_common_epoch", "bench_common_bitpack"}

const tableSchema = `CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	cf3 BIGINT NOT NULL,
	tenant_module_range BIGINT NOT NULL,
	other_bigint BIGINT,
	other_decimal DECIMAL(18,4),
	other_varchar VARCHAR(255),
	other_blob BYTEA,
	created_at BIGINT,
	updated_at BIGINT,
	flag_tiny SMALLINT
)`

func CreateTables(ctx context.Context, db *pgxpool.Pool) error {
	for _, table := range Tables {
		if _, err := db.Exec(ctx, fmt.Sprintf(tableSchema, table)); err != nil {
			return errors.WithMessagef(err, "creating table %s", table)
		}
	}
	return nil
}

func TruncateTables(ctx context.Context, db *pgxpool.Pool) error {
	for _, table := range Tables {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return errors.WithMessagef(err, "truncating table %s", table)
		}
		log.Debugf("truncated %s", table)
	}
	return nil
}
