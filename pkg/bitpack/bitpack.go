// Package bitpack encodes datetimes into 64-bit integers whose numeric
// ordering matches chronological ordering.
//
// Layout, least significant bits first:
//
//	bits 0-9   milliseconds (0-999)
//	bits 10-15 seconds      (0-59)
//	bits 16-20 minutes      (0-59)
//	bits 21-25 hours        (0-23)
//	bits 26-30 day of month (1-31)
//	bits 31-34 month        (1-12)
//	bits 35-45 year offset from 2000 (0-2047, capped to 2099 on decode)
//	bits 48-63 tenant prefix (0-65535)
//
// Because coarser units occupy higher bits, two packed values sharing a
// tenant prefix compare the same way as the instants they encode, so range
// filters can run directly against the packed column.
package bitpack

import (
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	epochYear = 2000
	maxYear   = 2099

	milliBits  = 10
	secondBits = 6
	minuteBits = 5
	hourBits   = 5
	dayBits    = 5
	monthBits  = 4
	yearBits   = 11

	secondShift = milliBits
	minuteShift = secondShift + secondBits
	hourShift   = minuteShift + minuteBits
	dayShift    = hourShift + hourBits
	monthShift  = dayShift + dayBits
	yearShift   = monthShift + monthBits
	tenantShift = 48
)

// fallbackCount tracks how often Unpack had to give up and return the
// sentinel. A nonzero value means corrupt packed data upstream.
var fallbackCount atomic.Uint64

// Sentinel is returned by Unpack when a packed value cannot be repaired into
// a valid datetime.
var Sentinel = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Pack encodes t and a tenant prefix into a single uint64. The input is
// normalised to UTC and every component is clamped into its field range, so
// Pack never fails.
func Pack(t time.Time, tenant uint16) uint64 {
	utc := t.UTC()
	year := clamp(utc.Year()-epochYear, 0, (1<<yearBits)-1)
	month := clamp(int(utc.Month()), 1, 12)
	day := clamp(utc.Day(), 1, 31)
	hour := clamp(utc.Hour(), 0, 23)
	minute := clamp(utc.Minute(), 0, 59)
	second := clamp(utc.Second(), 0, 59)
	milli := clamp(utc.Nanosecond()/int(time.Millisecond), 0, 999)

	var v uint64
	v |= uint64(milli)
	v |= uint64(second) << secondShift
	v |= uint64(minute) << minuteShift
	v |= uint64(hour) << hourShift
	v |= uint64(day) << dayShift
	v |= uint64(month) << monthShift
	v |= uint64(year) << yearShift
	v |= uint64(tenant) << tenantShift
	return v
}

// Unpack decodes a packed value back into a UTC time. Every field is clamped
// into its valid range first and impossible day/month combinations (e.g.
// February 30) are repaired by capping the day to the last day of the month,
// so decoding old or corrupted values yields the nearest valid datetime
// instead of failing. If no valid datetime can be reconstructed at all the
// documented Sentinel is returned and the event is logged.
func Unpack(v uint64) time.Time {
	milli := clamp(int(v&((1<<milliBits)-1)), 0, 999)
	second := clamp(int((v>>secondShift)&((1<<secondBits)-1)), 0, 59)
	minute := clamp(int((v>>minuteShift)&((1<<minuteBits)-1)), 0, 59)
	hour := clamp(int((v>>hourShift)&((1<<hourBits)-1)), 0, 23)
	day := clamp(int((v>>dayShift)&((1<<dayBits)-1)), 1, 31)
	month := clamp(int((v>>monthShift)&((1<<monthBits)-1)), 1, 12)
	year := clamp(int((v>>yearShift)&((1<<yearBits)-1))+epochYear, epochYear, maxYear)

	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, milli*int(time.Millisecond), time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		// time.Date normalised the components, meaning the repaired fields
		// still did not form a real date.
		fallbackCount.Add(1)
		log.Warnf("bitpack: unpack of %d produced no valid datetime, using sentinel %s", v, Sentinel.Format(time.RFC3339))
		return Sentinel
	}
	return t
}

// Tenant extracts the tenant prefix from a packed value.
func Tenant(v uint64) uint16 {
	return uint16(v >> tenantShift)
}

// Fallbacks reports how many times Unpack has returned the sentinel since
// process start.
func Fallbacks() uint64 {
	return fallbackCount.Load()
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
