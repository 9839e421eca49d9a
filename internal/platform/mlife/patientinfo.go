package mlife

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// The report masthead carries the demographic row (case id, age, height,
// weight, body surface area) before any section header, so demographics are
// read from the RAW export, not the cleaned one. Only the file head is
// scanned.
const patientInfoScanLines = 100

// CategoryPatientMaster labels demographic events.
const CategoryPatientMaster = "Patientenstamm"

// patientInfoTimestamp finds the report period start. The masthead states
// the covered range ("10.09.2025 11:53 - 30.09.2025 01:45"); the range start
// is the demographic timestamp. Without a range, the first full-year stamp in
// the head serves, and as a last resort the current time.
func patientInfoTimestamp(lines []string) time.Time {
	for _, line := range lines {
		if m := timeRangePattern.FindStringSubmatch(line); m != nil {
			if ts, ok := parseTimestamp(m[1]); ok {
				return ts
			}
		}
	}
	for _, line := range lines {
		if m := timestampPattern.FindString(line); m != "" {
			if ts, ok := parseTimestamp(m); ok {
				return ts
			}
		}
	}
	return time.Now()
}

// demographicFields maps masthead column labels to event parameter names.
var demographicFields = map[string]string{
	"Alter":            "Alter",
	"Gewicht":          "Gewicht",
	"Größe":            "Größe",
	"Körperoberfläche": "Körperoberfläche (BSA)",
	"Fall-ID":          "Fall-ID",
	"Pat.-ID":          "Patienten-ID",
}

// ParsePatientInfo extracts the demographic events from the head of the raw
// export. Units are stripped (cm, kg, j, m²) and a BMI event is derived when
// both height and weight parse.
func ParsePatientInfo(rawText, delimiter string) []event.Event {
	lines := strings.Split(rawText, "\n")
	if len(lines) > patientInfoScanLines {
		lines = lines[:patientInfoScanLines]
	}
	timestamp := patientInfoTimestamp(lines)

	var headerParts, valueParts []string
	for i, line := range lines {
		if strings.Contains(line, "Fall-ID") && strings.Contains(line, "Größe") &&
			strings.Contains(line, "Gewicht") && i+1 < len(lines) {
			headerParts = splitLine(line, delimiter)
			valueParts = splitLine(lines[i+1], delimiter)
			break
		}
	}
	if headerParts == nil {
		return nil
	}

	var (
		events   []event.Event
		heightCm float64
		weightKg float64
	)
	add := func(parameter string, value event.Value) {
		events = append(events, event.Event{
			Timestamp: timestamp,
			Category:  CategoryPatientMaster,
			Parameter: parameter,
			Value:     value,
		})
	}

	for i, h := range headerParts {
		parameter, ok := demographicFields[strings.TrimSpace(h)]
		if !ok || i >= len(valueParts) {
			continue
		}
		raw := strings.TrimSpace(valueParts[i])
		if raw == "" {
			continue
		}

		switch parameter {
		case "Größe":
			v := stripUnit(raw, "cm")
			if f, err := parseGermanFloat(v); err == nil {
				heightCm = f
				add(parameter, event.Num(f))
			} else {
				add(parameter, event.Text(v))
			}
		case "Gewicht":
			v := stripUnit(raw, "kg")
			if f, err := parseGermanFloat(v); err == nil {
				weightKg = f
				add(parameter, event.Num(f))
			} else {
				add(parameter, event.Text(v))
			}
		case "Alter":
			add(parameter, event.Coerce(stripUnit(raw, "j")))
		case "Körperoberfläche (BSA)":
			v := stripUnit(stripUnit(raw, "m²"), "m2")
			add(parameter, event.Coerce(v))
		default:
			add(parameter, event.Text(raw))
		}
	}

	if heightCm > 0 && weightKg > 0 {
		bmi := weightKg / math.Pow(heightCm/100, 2)
		add("BMI", event.Num(math.Round(bmi*100)/100))
	}
	return events
}

func stripUnit(s, unit string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), unit, ""))
}

func parseGermanFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
