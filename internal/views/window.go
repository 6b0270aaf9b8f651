package views

import (
	"errors"
	"fmt"
	"time"

	"latencyglobe/internal/model"
)

// ErrUnknownRange is returned by ParseRange for unsupported names.
var ErrUnknownRange = errors.New("unknown range")

// Range is a named chart window.
type Range string

const (
	RangeHour Range = "1h"
	RangeDay  Range = "24h"
	RangeWeek Range = "7d"
)

var rangeDurations = map[Range]time.Duration{
	RangeHour: time.Hour,
	RangeDay:  24 * time.Hour,
	RangeWeek: 7 * 24 * time.Hour,
}

// ParseRange maps a range name to its duration. Empty selects 1h.
func ParseRange(name string) (Range, time.Duration, error) {
	if name == "" {
		return RangeHour, time.Hour, nil
	}
	r := Range(name)
	d, ok := rangeDurations[r]
	if !ok {
		return "", 0, fmt.Errorf("%w %q (want 1h, 24h or 7d)", ErrUnknownRange, name)
	}
	return r, d, nil
}

// Window keeps samples no older than now-d, preserving order.
func Window(samples []model.Sample, now time.Time, d time.Duration) []model.Sample {
	return WindowPair(samples, now, d, "")
}

// WindowPair is Window narrowed to one pair id when pairID is set.
func WindowPair(samples []model.Sample, now time.Time, d time.Duration, pairID string) []model.Sample {
	cutoff := now.Add(-d)
	out := make([]model.Sample, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		if pairID != "" && s.PairID != pairID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Point is one chart datum.
type Point struct {
	Time      time.Time `json:"time"`
	LatencyMs float64   `json:"latencyMs"`
}

// Series converts samples to chart points in the given order.
func Series(samples []model.Sample) []Point {
	out := make([]Point, 0, len(samples))
	for _, s := range samples {
		out = append(out, Point{Time: s.Timestamp, LatencyMs: s.LatencyMs})
	}
	return out
}
