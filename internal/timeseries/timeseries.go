// Package timeseries maps dashboard range names to query windows and
// thins long ranges into fixed-width buckets.
package timeseries

import (
	"sort"
	"time"

	"github.com/metorial/minidash/internal/store"
)

type Range string

const (
	Hour       Range = "1h"
	EightHours Range = "8h"
	Day        Range = "24h"
	Week       Range = "7d"
	Month      Range = "30d"
)

var windows = map[Range]time.Duration{
	Hour:       time.Hour,
	EightHours: 8 * time.Hour,
	Day:        24 * time.Hour,
	Week:       7 * 24 * time.Hour,
	Month:      30 * 24 * time.Hour,
}

var buckets = map[Range]time.Duration{
	Week:  10 * time.Minute,
	Month: time.Hour,
}

// ParseRange returns the named range, or Hour for empty and unknown names.
func ParseRange(s string) Range {
	r := Range(s)
	if _, ok := windows[r]; ok {
		return r
	}
	return Hour
}

func (r Range) Window() time.Duration {
	return windows[ParseRange(string(r))]
}

// Bucket is the downsampling width, or 0 when rows are returned as stored.
func (r Range) Bucket() time.Duration {
	return buckets[r]
}

// Since is the oldest timestamp included when the range ends at now.
func (r Range) Since(now time.Time) time.Time {
	return now.Add(-r.Window())
}

// Downsample averages the numeric columns of rows sharing a bucket. Rows
// must be ordered by timestamp; each output row is stamped with its bucket
// start. Non-numeric columns keep the first value seen.
func Downsample(rows []store.Row, bucket time.Duration) []store.Row {
	width := int64(bucket / time.Second)
	if width <= 0 || len(rows) == 0 {
		return rows
	}

	type acc struct {
		first  store.Row
		sums   map[string]float64
		counts map[string]int
	}

	groups := make(map[int64]*acc)
	var order []int64
	for _, row := range rows {
		ts, ok := toInt64(row["timestamp"])
		if !ok {
			continue
		}
		key := ts - ts%width

		g, ok := groups[key]
		if !ok {
			g = &acc{first: row, sums: map[string]float64{}, counts: map[string]int{}}
			groups[key] = g
			order = append(order, key)
		}
		for col, v := range row {
			if col == "timestamp" || col == "id" {
				continue
			}
			if f, ok := toFloat64(v); ok {
				g.sums[col] += f
				g.counts[col]++
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	result := make([]store.Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(store.Row, len(g.first))
		for col, v := range g.first {
			if n := g.counts[col]; n > 0 {
				row[col] = g.sums[col] / float64(n)
				continue
			}
			row[col] = v
		}
		row["timestamp"] = key
		result = append(result, row)
	}
	return result
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
