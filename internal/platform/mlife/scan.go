// Package mlife recovers event records from the delimiter-separated report
// exports of the mLife bedside clinical information system. The export is a
// printed chart ("Gesamte Akte") rather than a machine format: repeated
// mastheads, mixed delimiters, stacked values inside single cells and
// free-text rows interleaved with tables. The parsers in this package
// tolerate all of that and emit the normalized long-format events defined in
// the event package.
package mlife

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampPattern matches the source system's DD.MM.YY(YY) HH:MM stamps
// anywhere inside a cell.
var timestampPattern = regexp.MustCompile(`\d{2}\.\d{2}\.\d{2,4}\s*\d{2}:\d{2}`)

// numberPattern matches numbers with either decimal separator.
var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

var whitespaceRun = regexp.MustCompile(`\s+`)

const (
	layoutShortYear = "02.01.06 15:04"
	layoutFullYear  = "02.01.2006 15:04"
)

// parseTimestamp strictly parses a timestamp token. A cell can match
// timestampPattern yet still fail here (e.g. "31.02.24 10:00"); such cells
// are treated as absent per the error policy.
func parseTimestamp(s string) (time.Time, bool) {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	for _, layout := range []string{layoutShortYear, layoutFullYear} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// isTimestampRow reports whether any cell of the row contains a timestamp.
func isTimestampRow(parts []string) bool {
	for _, tok := range parts {
		if timestampPattern.MatchString(tok) {
			return true
		}
	}
	return false
}

// findTimestamp returns the first parseable timestamp in the row.
func findTimestamp(parts []string) (time.Time, bool) {
	for _, tok := range parts {
		if m := timestampPattern.FindString(tok); m != "" {
			if ts, ok := parseTimestamp(m); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// extractTimestamps returns every parseable timestamp in a cell, in order.
// Drug titrations stack several start times inside one field.
func extractTimestamps(cell string) []time.Time {
	var out []time.Time
	for _, m := range timestampPattern.FindAllString(cell, -1) {
		if ts, ok := parseTimestamp(m); ok {
			out = append(out, ts)
		}
	}
	return out
}

// extractNumbers returns every number in a cell, comma decimals included.
func extractNumbers(cell string) []float64 {
	var out []float64
	for _, m := range numberPattern.FindAllString(cell, -1) {
		f, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", "."), 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// splitLine splits a raw line into cells and strips the trailing CR that
// Windows exports leave behind.
func splitLine(line, delimiter string) []string {
	return strings.Split(strings.TrimRight(line, "\r"), delimiter)
}

// firstNonEmpty returns the index and trimmed content of the first non-empty
// cell.
func firstNonEmpty(parts []string) (int, string, bool) {
	for i, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			return i, t, true
		}
	}
	return 0, "", false
}

// cleanLabel collapses whitespace runs and drops a dangling trailing period
// from header-ish labels ("ECMO vv. " -> "ECMO vv").
func cleanLabel(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	if strings.HasSuffix(s, ".") && len(s) > 3 && !strings.HasSuffix(s, "Dr.") {
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
