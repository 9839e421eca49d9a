// Package event defines the canonical long-format event model produced by
// the mLife export parsers and consumed by the aggregation engine. An Event
// is immutable once produced; the Table is append-only while parsing and
// read-only during aggregation.
package event

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Value is the union of a numeric measurement and a free-text cell. Source
// exports mix both in the same column, so coercion is attempted once at parse
// time and the result is carried unchanged from then on.
type Value struct {
	num     float64
	text    string
	numeric bool
}

// Num returns a numeric Value.
func Num(f float64) Value {
	return Value{num: f, numeric: true}
}

// Text returns a free-text Value.
func Text(s string) Value {
	return Value{text: s}
}

// Coerce converts a raw cell into a Value. The source system writes decimals
// with a comma ("36,5"), so the comma is swapped for the conversion attempt
// only; cells that fail numeric conversion keep their original text, commas
// included.
func Coerce(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(strings.ReplaceAll(trimmed, ",", "."), 64); err == nil {
		return Num(f)
	}
	return Text(trimmed)
}

// Float reports the numeric value, if any.
func (v Value) Float() (float64, bool) {
	return v.num, v.numeric
}

// IsNumeric reports whether the value parsed as a number.
func (v Value) IsNumeric() bool { return v.numeric }

// String renders the value for display and text matching.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// MarshalJSON encodes numbers as JSON numbers and text as JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts either encoding.
func (v *Value) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Text(s)
	return nil
}

// Event is one normalized observation recovered from the source export.
// Timestamp is always set in a finished Table; rows that fail to resolve one
// are dropped during normalization.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`
	Parameter    string    `json:"parameter"`
	Value        Value     `json:"value"`
	SourceType   string    `json:"source_type"`
	SourceHeader string    `json:"source_header,omitempty"`

	// Medication extras carried next to the generic value so the dose
	// normalizer does not have to re-parse cells.
	Application   string     `json:"application,omitempty"`
	Concentration string     `json:"concentration,omitempty"`
	Rate          *float64   `json:"rate,omitempty"`
	Stop          *time.Time `json:"stop,omitempty"`

	// Raw time-range label preserved for fluid-balance traceability.
	TimeRange string `json:"time_range,omitempty"`
}
