// Package queries holds the Postgres statements the workloads execute. The
// logical operations are fixed; only the target table (one per storage
// model) and the year-extraction expression vary.
package queries

import "fmt"

const columns = "cf3, tenant_module_range, other_bigint, other_decimal, other_varchar, other_blob, created_at, updated_at, flag_tiny"

func Insert(table string) string {
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)",
		table, columns,
	)
}

// UpdateRange shifts cf3 for a bounded slice of a tenant range. Postgres has
// no LIMIT on UPDATE, hence the id subquery.
func UpdateRange(table string) string {
	return fmt.Sprintf(
		"UPDATE %[1]s SET cf3 = cf3 + 1000 WHERE id IN (SELECT id FROM %[1]s WHERE tenant_module_range BETWEEN $1 AND $2 LIMIT $3)",
		table,
	)
}

func UpdateVarcharByID(table string) string {
	return fmt.Sprintf("UPDATE %s SET other_varchar = $1 WHERE id = $2", table)
}

func SelectRange(table string) string {
	return fmt.Sprintf(
		"SELECT id, cf3, other_varchar FROM %s WHERE tenant_module_range BETWEEN $1 AND $2 LIMIT $3",
		table,
	)
}

// DeleteRange deletes a bounded slice of a tenant range, via the same id
// subquery trick as UpdateRange.
func DeleteRange(table string) string {
	return fmt.Sprintf(
		"DELETE FROM %[1]s WHERE id IN (SELECT id FROM %[1]s WHERE tenant_module_range BETWEEN $1 AND $2 LIMIT $3)",
		table,
	)
}

// ExtractYears groups rows by the year encoded in cf3. For the bitpack model
// the year is a bit-field extraction the database can evaluate without any
// datetime function; for the epoch model it falls back to
// EXTRACT(YEAR FROM to_timestamp(..)).
func ExtractYears(table string, bitpack bool) string {
	// ::bigint so both models return the year in the same wire type.
	expr := "EXTRACT(YEAR FROM to_timestamp(cf3::numeric / 1000))::bigint"
	if bitpack {
		// 2047 = the 11-bit year field mask.
		expr = "((cf3 >> 35) & 2047) + 2000"
	}
	return fmt.Sprintf(
		"SELECT %[2]s AS yr, COUNT(*) AS cnt FROM %[1]s GROUP BY %[2]s HAVING COUNT(*) > 0 ORDER BY yr",
		table, expr,
	)
}
