package mlife

import (
	"regexp"
	"strings"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// Medication blocks interleave a header row per drug with timestamped
// administration rows. Titrations stack several start times, stop times and
// rates inside single quoted cells, so cells are exploded positionally: the
// i-th start pairs with the i-th stop and the i-th rate.
var quotedCellPattern = regexp.MustCompile(`(?s)"(.*?)"`)

// medicationColumns are resolved per drug header by exact label lookup.
type medicationColumns struct {
	medication    int
	concentration int
	application   int
	start         int
	stop          int
	rate          int
}

func findMedicationColumns(header []string) (medicationColumns, bool) {
	nameIdx, _, ok := firstNonEmpty(header)
	if !ok {
		return medicationColumns{}, false
	}
	cols := medicationColumns{medication: nameIdx}

	lookup := func(label string) (int, bool) {
		for i, cell := range header {
			if cell == label {
				return i, true
			}
		}
		return 0, false
	}

	if cols.concentration, ok = lookup("Konzentration"); !ok {
		return medicationColumns{}, false
	}
	if cols.application, ok = lookup("App.- form"); !ok {
		return medicationColumns{}, false
	}
	if cols.start, ok = lookup("Start/Änderung"); !ok {
		return medicationColumns{}, false
	}
	if cols.stop, ok = lookup("Stopp"); !ok {
		return medicationColumns{}, false
	}
	if cols.rate, ok = lookup("Rate(mL/h)"); !ok {
		return medicationColumns{}, false
	}
	return cols, true
}

// unquoteCells folds the newlines inside quoted cells into spaces so that a
// multi-line cell stays on one physical row before splitting.
func unquoteCells(text string) string {
	return quotedCellPattern.ReplaceAllStringFunc(text, func(m string) string {
		m = strings.ReplaceAll(m, "\n", " ")
		m = strings.ReplaceAll(m, "\r", "")
		return strings.ReplaceAll(m, `"`, "")
	})
}

// ParseMedication parses the "Medikamentengaben" section. Each event is one
// administration segment: its value is the rate when present, otherwise the
// concentration text (bolus rows carry no rate).
func ParseMedication(blocks Blocks, delimiter string) []event.Event {
	text, ok := blocks.Section(SectionMedication)[SectionMedication]
	if !ok || text == "" {
		return nil
	}

	var (
		events []event.Event
		header []string
		buffer [][]string
	)

	flush := func() {
		if header == nil || len(buffer) == 0 {
			buffer = buffer[:0]
			return
		}
		if cols, ok := findMedicationColumns(header); ok {
			events = append(events, parseMedicationRows(buffer, cols, header)...)
		}
		buffer = buffer[:0]
	}

	for _, line := range strings.Split(unquoteCells(text), "\n") {
		parts := splitLine(line, delimiter)
		if !isTimestampRow(parts) {
			flush()
			header = parts
			continue
		}
		if header != nil {
			buffer = append(buffer, parts)
		}
	}
	flush()

	return events
}

func parseMedicationRows(rows [][]string, cols medicationColumns, header []string) []event.Event {
	_, category, _ := firstNonEmpty(header)
	category = cleanLabel(category)

	var events []event.Event
	maxCol := cols.rate
	for _, c := range []int{cols.medication, cols.concentration, cols.application, cols.start, cols.stop} {
		if c > maxCol {
			maxCol = c
		}
	}

	for _, row := range rows {
		if len(row) <= maxCol {
			continue
		}

		starts := extractTimestamps(row[cols.start])
		stops := extractTimestamps(row[cols.stop])
		rates := extractNumbers(row[cols.rate])
		concentration := strings.TrimSpace(row[cols.concentration])

		for i, start := range starts {
			ev := event.Event{
				Timestamp:     start,
				Category:      category,
				Parameter:     cleanLabel(row[cols.medication]),
				Concentration: concentration,
				Application:   strings.TrimSpace(row[cols.application]),
				SourceHeader:  category,
			}
			if i < len(stops) {
				stop := stops[i]
				ev.Stop = &stop
			}
			if i < len(rates) {
				rate := rates[i]
				ev.Rate = &rate
				ev.Value = event.Num(rate)
			} else {
				ev.Value = event.Text(concentration)
			}
			events = append(events, ev)
		}
	}
	return events
}
