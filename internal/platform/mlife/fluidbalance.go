package mlife

import (
	"encoding/csv"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// The balance section is a pivoted table: the first row names balancing
// intervals ("10.09.2025 11:00 - 10.09.2025 17:59"), subsequent rows carry a
// label in column 3 and interval totals underneath the interval columns. A
// labeled row without any numeric interval cell is a category header for the
// parameter rows below it.
const fluidBalanceLabelColumn = 3

var timeRangePattern = regexp.MustCompile(
	`(\d{2}\.\d{2}\.\d{4}\s*\d{2}:\d{2})\s*-\s*(\d{2}\.\d{2}\.\d{4}\s*\d{2}:\d{2})`)

// rangeMidpoint resolves an interval label to its representative timestamp,
// the midpoint of the range. Labels without a range fall back to plain
// timestamp parsing.
func rangeMidpoint(label string) (time.Time, bool) {
	cleaned := strings.ReplaceAll(strings.Trim(strings.TrimSpace(label), `"`), "\n", " ")
	if m := timeRangePattern.FindStringSubmatch(cleaned); m != nil {
		start, okStart := parseTimestamp(m[1])
		end, okEnd := parseTimestamp(m[2])
		switch {
		case okStart && okEnd:
			return start.Add(end.Sub(start) / 2), true
		case okStart:
			return start, true
		case okEnd:
			return end, true
		}
		return time.Time{}, false
	}
	return parseTimestamp(cleaned)
}

// ParseFluidBalance parses the "Bilanz" section into per-interval events.
// Each event carries the raw interval label in TimeRange and the interval
// midpoint as its timestamp.
func ParseFluidBalance(blocks Blocks, delimiter string) []event.Event {
	text, ok := blocks.Section(SectionFluidBalance)[SectionFluidBalance]
	if !ok || text == "" {
		return nil
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = rune(delimiter[0])
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil
	}

	// Interval columns are the non-empty header cells besides the table
	// caption itself.
	intervals := make(map[int]string)
	for i, cell := range header {
		cleaned := strings.Trim(strings.TrimSpace(cell), `"`)
		if cleaned == "" || strings.EqualFold(cleaned, "Flüssigkeitsbilanz") {
			continue
		}
		intervals[i] = strings.ReplaceAll(cleaned, "\n", " ")
	}

	var (
		events   []event.Event
		category string
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if len(row) <= fluidBalanceLabelColumn {
			continue
		}
		label := strings.TrimSpace(row[fluidBalanceLabelColumn])
		if label == "" {
			continue
		}

		if !rowHasNumbers(row, intervals) {
			category = label
			continue
		}
		parameter := strings.Trim(label, "() ")

		for i, raw := range row {
			timeRange, ok := intervals[i]
			if !ok {
				continue
			}
			cell := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
			if cell == "" {
				continue
			}
			value, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", "."), 64)
			if err != nil {
				continue
			}
			ts, ok := rangeMidpoint(timeRange)
			if !ok {
				continue
			}

			cat := category
			if cat == "" {
				cat = "unknown"
			}
			events = append(events, event.Event{
				Timestamp: ts,
				Category:  cat,
				Parameter: parameter,
				Value:     event.Num(value),
				TimeRange: timeRange,
			})
		}
	}
	return events
}

func rowHasNumbers(row []string, intervals map[int]string) bool {
	for i := range intervals {
		if i >= len(row) {
			continue
		}
		for _, r := range row[i] {
			if r >= '0' && r <= '9' {
				return true
			}
		}
	}
	return false
}
