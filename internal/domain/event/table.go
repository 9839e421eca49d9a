package event

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Table is the normalized event stream. Construction drops rows without a
// timestamp and sorts chronologically (stable, so intra-timestamp parser
// order survives). All filter methods return views backed by fresh slices;
// the table itself is never mutated after NewTable.
type Table struct {
	events []Event
}

// NewTable builds a table from parser output.
func NewTable(events []Event) *Table {
	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		kept = append(kept, ev)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	return &Table{events: kept}
}

// Len reports the number of events.
func (t *Table) Len() int { return len(t.events) }

// Events returns the events in chronological order. Callers must not modify
// the returned slice.
func (t *Table) Events() []Event { return t.events }

// Filter returns a new table holding the events for which keep returns true.
func (t *Table) Filter(keep func(Event) bool) *Table {
	var out []Event
	for _, ev := range t.events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return &Table{events: out}
}

// OnDay keeps events whose timestamp falls on the given calendar day.
func (t *Table) OnDay(day time.Time) *Table {
	y, m, d := day.Date()
	return t.Filter(func(ev Event) bool {
		ey, em, ed := ev.Timestamp.Date()
		return ey == y && em == m && ed == d
	})
}

// SourceTypeContains keeps events whose source type contains sub,
// case-insensitively. This mirrors how instruments address their sources
// ("ECMO" matches "ECMO vv." as well as "ECMO va.").
func (t *Table) SourceTypeContains(sub string) *Table {
	needle := strings.ToLower(sub)
	return t.Filter(func(ev Event) bool {
		return strings.Contains(strings.ToLower(ev.SourceType), needle)
	})
}

// MatchParameter keeps events whose parameter matches the pattern.
func (t *Table) MatchParameter(re *regexp.Regexp) *Table {
	return t.Filter(func(ev Event) bool { return re.MatchString(ev.Parameter) })
}

// MatchCategory keeps events whose category matches the pattern.
func (t *Table) MatchCategory(re *regexp.Regexp) *Table {
	return t.Filter(func(ev Event) bool { return re.MatchString(ev.Category) })
}

// Days returns the distinct calendar days covered by the table, ascending.
// Day values are midnight in the timestamps' location.
func (t *Table) Days() []time.Time {
	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, ev := range t.events {
		y, m, d := ev.Timestamp.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, ev.Timestamp.Location())
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// NumericValues returns the numeric values in chronological order together
// with their timestamps. Text values are skipped.
func (t *Table) NumericValues() ([]float64, []time.Time) {
	var vals []float64
	var stamps []time.Time
	for _, ev := range t.events {
		if f, ok := ev.Value.Float(); ok {
			vals = append(vals, f)
			stamps = append(stamps, ev.Timestamp)
		}
	}
	return vals, stamps
}
