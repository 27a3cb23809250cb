package collectors

import (
	"math"
	"time"
)

// Upstream timestamps arrive as either Unix seconds or Unix milliseconds.
// Anything above this magnitude cannot be a seconds value for a current
// date, so it is treated as milliseconds.
const msThreshold = 9_999_999_999

// NormalizeTimestamp disambiguates a raw Unix timestamp by magnitude and
// returns the UTC instant. A non-positive input yields the zero time, which
// the store rejects.
func NormalizeTimestamp(raw float64) time.Time {
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return time.Time{}
	}

	ms := int64(raw)
	if raw <= msThreshold {
		ms = int64(raw * 1000)
	}
	return time.UnixMilli(ms).UTC()
}

// RoundScore rounds a 0-100 index score to the nearest integer, matching how
// the sources present their gauges.
func RoundScore(score float64) int {
	return int(math.Round(score))
}
