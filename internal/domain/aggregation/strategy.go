// Package aggregation turns the normalized event stream into daily
// per-instrument registry records. Field selection is table-driven: each
// instrument declares which events feed which record field, a pluggable
// strategy collapses the day's matches into one value, and a derivation pass
// computes flags and unit conversions from the populated fields.
package aggregation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Strategy selects one representative value from a day's matches.
type Strategy string

const (
	StrategyMedian  Strategy = "median"
	StrategyMean    Strategy = "mean"
	StrategyFirst   Strategy = "first"
	StrategyLast    Strategy = "last"
	StrategyNearest Strategy = "nearest"
)

var (
	ErrUnknownStrategy    = errors.New("aggregation: unknown strategy")
	ErrMissingReference   = errors.New("aggregation: nearest strategy requires a reference time")
	ErrInvalidClockFormat = errors.New("aggregation: clock time must be HH:MM")
)

// Context carries the per-call aggregation parameters. It replaces any
// ambient state: weight, strategy and reference time travel with the call.
type Context struct {
	Strategy Strategy
	// Reference is the time of day the nearest strategy measures
	// distance against, as an offset from midnight.
	Reference time.Duration
	// HasReference distinguishes an unset reference from midnight.
	HasReference bool
	// WeightKg is the patient's body weight for dose normalization;
	// zero means unknown.
	WeightKg float64
}

// ParseClock parses an "HH:MM" reference time into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockFormat, s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockFormat, s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockFormat, s)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

// Select collapses same-day values into one per the context's strategy.
// Values and stamps are parallel slices in chronological order. An empty
// input yields no value; an unknown strategy or a missing nearest reference
// is an error so callers can log instead of silently falling back.
func Select(values []float64, stamps []time.Time, ctx Context) (float64, bool, error) {
	if len(values) == 0 {
		return 0, false, nil
	}

	switch ctx.Strategy {
	case StrategyMedian, "":
		return median(values), true, nil
	case StrategyMean:
		return mean(values), true, nil
	case StrategyFirst:
		return values[0], true, nil
	case StrategyLast:
		return values[len(values)-1], true, nil
	case StrategyNearest:
		if !ctx.HasReference {
			return 0, false, ErrMissingReference
		}
		return nearest(values, stamps, ctx.Reference), true, nil
	default:
		return 0, false, fmt.Errorf("%w: %q", ErrUnknownStrategy, ctx.Strategy)
	}
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// nearest picks the value whose seconds-of-day offset is closest to the
// reference; on a distance tie the chronologically earliest wins.
func nearest(values []float64, stamps []time.Time, ref time.Duration) float64 {
	target := ref.Seconds()
	best := 0
	bestDiff := math.Inf(1)
	for i, ts := range stamps {
		s := float64(ts.Hour()*3600 + ts.Minute()*60 + ts.Second())
		if diff := math.Abs(s - target); diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return values[best]
}

// round4 and round2 are the fixed output precisions of dose normalization.
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
