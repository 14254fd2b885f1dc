package workload

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/chronobench/chronobench/internal/common/util"
	"github.com/chronobench/chronobench/pkg/bitpack"
)

// Generated datetimes are spread uniformly over [2015-01-01, 2025-01-01) so
// the extract workload sees ten distinct year groups.
var (
	dateRangeStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	dateRangeEnd   = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
)

// rowGenerator produces insert argument slices for one storage model. Safe
// for concurrent use when constructed over a thread-safe rand source.
type rowGenerator struct {
	rnd    *rand.Rand
	model  Model
	tenant int64
}

func newRowGenerator(model Model, tenant int64, seed int64) *rowGenerator {
	return &rowGenerator{
		rnd:    util.NewThreadsafeRand(seed),
		model:  model,
		tenant: tenant,
	}
}

// row returns the nine insert parameters in column order. suffixLow and
// suffixSpan bound the random part of tenant_module_range, letting each
// worker write into a disjoint slice of the tenant keyspace.
func (g *rowGenerator) row(suffixLow, suffixSpan int64) []any {
	ms := dateRangeStart + g.rnd.Int63n(dateRangeEnd-dateRangeStart)
	ts := time.UnixMilli(ms).UTC()

	var cf3 int64
	if g.model.Bitpack() {
		// Tenant tags above 16 bits truncate; the benchmark tenant prefix is
		// chosen so the truncated tag is still distinctive.
		cf3 = int64(bitpack.Pack(ts, uint16(g.tenant)))
	} else {
		cf3 = ms
	}

	tmr := g.tenant*tenantSpan + suffixLow + g.rnd.Int63n(suffixSpan)
	seq := g.rnd.Int63()
	now := time.Now().UnixMilli()

	return []any{
		cf3,
		tmr,
		seq,
		float64(g.rnd.Intn(10000000)) / 100.0,
		fmt.Sprintf("name-%d", seq%1000000),
		[]byte(fmt.Sprintf("blob-%d", seq%1000)),
		now,
		now,
		int16(g.rnd.Intn(2)),
	}
}
