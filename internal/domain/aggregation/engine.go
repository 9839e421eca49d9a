package aggregation

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// Engine evaluates field mappings against the event table. The table is
// read-only; every call is a pure function of (table, day, context), so
// builders may fan out over days and instruments freely.
type Engine struct {
	table *event.Table
	log   zerolog.Logger
}

func NewEngine(table *event.Table, log zerolog.Logger) *Engine {
	return &Engine{table: table, log: log}
}

// Table exposes the underlying event table.
func (e *Engine) Table() *event.Table { return e.table }

// Days lists the calendar days covered by the table.
func (e *Engine) Days() []time.Time { return e.table.Days() }

// SourceDay filters the table to one day and one source type
// (case-insensitive containment, so "ECMO" covers "ECMO vv" and "ECMO va").
func (e *Engine) SourceDay(day time.Time, source string) *event.Table {
	return e.table.OnDay(day).SourceTypeContains(source)
}

// matches applies a mapping's category and parameter patterns.
func matches(t *event.Table, m FieldMapping) *event.Table {
	t = t.MatchParameter(m.Parameter)
	if m.Category != nil {
		t = t.MatchCategory(m.Category)
	}
	return t
}

// Value resolves one mapped field for one day. Absence of matches yields
// (0, false); strategy errors are logged and also yield no value.
func (e *Engine) Value(day time.Time, m FieldMapping, ctx Context) (float64, bool) {
	vals, stamps := matches(e.SourceDay(day, m.Source), m).NumericValues()
	v, ok, err := Select(vals, stamps, ctx)
	if err != nil {
		e.log.Warn().Err(err).Str("field", m.Field).Msg("value selection failed")
		return 0, false
	}
	return v, ok
}

// StringValue returns the first non-empty text representation of a mapped
// field for one day, for fields carrying labels rather than measurements.
func (e *Engine) StringValue(day time.Time, m FieldMapping) (string, bool) {
	for _, ev := range matches(e.SourceDay(day, m.Source), m).Events() {
		if s := strings.TrimSpace(ev.Value.String()); s != "" {
			return s, true
		}
	}
	return "", false
}

// Count returns the number of matching events for one day, used for
// per-administration tallies such as transfused units.
func (e *Engine) Count(day time.Time, m FieldMapping) int {
	return matches(e.SourceDay(day, m.Source), m).Len()
}

// medicationDay returns the day's medication events.
func (e *Engine) medicationDay(day time.Time) *event.Table {
	return e.SourceDay(day, "Medication")
}

// DrugPresent reports whether any non-bolus administration of the drug
// occurred on the day.
func (e *Engine) DrugPresent(day time.Time, p DrugPattern, bolus *BolusFilter) bool {
	for _, ev := range e.medicationDay(day).Events() {
		if !p.MatchString(ev.Parameter) {
			continue
		}
		if bolus != nil && bolus.IsBolus(ev.Parameter) {
			continue
		}
		return true
	}
	return false
}

// EnteralNutrition reports whether any medication was given via feeding
// tube on the day.
func (e *Engine) EnteralNutrition(day time.Time) bool {
	return e.medicationDay(day).MatchCategory(enteralCategory).Len() > 0
}

// DevicesPresent reports whether both pump types produced events on the
// day, which marks combined support.
func (e *Engine) DevicesPresent(day time.Time, sources ...string) bool {
	for _, source := range sources {
		if e.SourceDay(day, source).Len() == 0 {
			return false
		}
	}
	return true
}
