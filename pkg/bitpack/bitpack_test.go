package bitpack

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 10, 30, 45, 123*int(time.Millisecond), time.UTC)
	v := Pack(ts, 42)
	assert.Equal(t, ts, Unpack(v))
	assert.Equal(t, uint16(42), Tenant(v))
}

func TestPackNormalisesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2021, time.June, 1, 4, 0, 0, 0, loc)
	assert.Equal(t, local.UTC(), Unpack(Pack(local, 7)))
}

func TestPackOrdering(t *testing.T) {
	t1 := time.Date(2024, time.March, 15, 10, 30, 45, 123*int(time.Millisecond), time.UTC)
	t2 := time.Date(2024, time.March, 15, 10, 30, 46, 0, time.UTC)
	assert.Less(t, Pack(t1, 42), Pack(t2, 42))
}

func TestPackClampsOutOfRangeYears(t *testing.T) {
	early := time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	v := Pack(early, 1)
	assert.Equal(t, 2000, Unpack(v).Year())

	late := time.Date(5000, time.January, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 2099, Unpack(Pack(late, 1)).Year())
}

func TestUnpackRepairsImpossibleDay(t *testing.T) {
	// Encode a valid date, then force the day field to 30 while keeping
	// February as the month.
	v := Pack(time.Date(2021, time.February, 28, 12, 0, 0, 0, time.UTC), 3)
	corrupted := (v &^ (uint64(0x1F) << dayShift)) | (uint64(30) << dayShift)

	got := Unpack(corrupted)
	assert.Equal(t, time.February, got.Month())
	assert.Equal(t, 28, got.Day())

	// Leap year February caps at 29 instead.
	v = Pack(time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), 3)
	corrupted = (v &^ (uint64(0x1F) << dayShift)) | (uint64(31) << dayShift)
	got = Unpack(corrupted)
	assert.Equal(t, time.February, got.Month())
	assert.Equal(t, 29, got.Day())
}

func TestUnpackClampsCorruptFields(t *testing.T) {
	// All field bits set: seconds 63, minutes 31, hours 31, month 15, etc.
	v := Pack(time.Date(2020, time.June, 15, 0, 0, 0, 0, time.UTC), 9)
	corrupted := v | (uint64(63) << secondShift) | (uint64(31) << minuteShift) | (uint64(31) << hourShift)

	got := Unpack(corrupted)
	assert.Equal(t, 59, got.Second())
	assert.Equal(t, 31, got.Minute())
	assert.Equal(t, 23, got.Hour())
}

func TestUnpackZeroValue(t *testing.T) {
	// The all-zeroes word clamps to the earliest representable datetime
	// rather than failing.
	assert.Equal(t, time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC), Unpack(0))
}

func genInstant() gopter.Gen {
	min := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	max := time.Date(2099, time.December, 31, 23, 59, 59, 999*int(time.Millisecond), time.UTC).UnixMilli()
	return gen.Int64Range(min, max).Map(func(ms int64) time.Time {
		return time.UnixMilli(ms).UTC()
	})
}

func TestRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("unpack(pack(t)) == t at millisecond precision", prop.ForAll(
		func(ts time.Time, tenant uint16) bool {
			return Unpack(Pack(ts, tenant)).Equal(ts)
		},
		genInstant(),
		gen.UInt16(),
	))

	properties.Property("tenant survives the round trip", prop.ForAll(
		func(ts time.Time, tenant uint16) bool {
			return Tenant(Pack(ts, tenant)) == tenant
		},
		genInstant(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}

func TestOrderingProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("packed ordering matches chronological ordering", prop.ForAll(
		func(a, b time.Time, tenant uint16) bool {
			pa, pb := Pack(a, tenant), Pack(b, tenant)
			switch {
			case a.Before(b):
				return pa < pb
			case b.Before(a):
				return pb < pa
			default:
				return pa == pb
			}
		},
		genInstant(),
		genInstant(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}
