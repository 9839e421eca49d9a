package mlife

import (
	"strings"
	"time"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// tableOptions tune the generic time-series parser per section.
type tableOptions struct {
	// skipFirst suppresses the parameter-name column itself; lab blocks
	// restate the row label in the first value column.
	skipFirst bool
	// cleanLab strips the lab flag annotations "(+)" and "(-)" before
	// numeric conversion.
	cleanLab bool
}

// parseTimeSeries handles the common block layout: one row of timestamps
// followed by parameter rows whose cells align positionally with the
// timestamp row. A block may contain several timestamp rows; each one
// restarts the alignment. Cells whose column has no parseable timestamp are
// dropped.
func parseTimeSeries(blocks Blocks, section, delimiter string, opts tableOptions) []event.Event {
	var events []event.Event

	for _, token := range sectionTokens(section) {
		text, ok := blocks.Section(section)[token]
		if !ok || text == "" {
			continue
		}
		category := blockCategory(token)

		var timestamps []string
		for _, line := range strings.Split(text, "\n") {
			parts := splitLine(line, delimiter)

			if isTimestampRow(parts) {
				timestamps = make([]string, len(parts))
				for i, tok := range parts {
					timestamps[i] = strings.TrimSpace(tok)
				}
				continue
			}
			if timestamps == nil {
				continue
			}

			nameIdx, name, ok := firstNonEmpty(parts)
			if !ok {
				continue
			}

			for i, cell := range parts {
				cell = strings.TrimSpace(cell)
				if cell == "" {
					continue
				}
				if opts.skipFirst && i == nameIdx {
					continue
				}
				ts, ok := columnTimestamp(timestamps, i)
				if !ok {
					continue
				}

				raw := cell
				if opts.cleanLab {
					raw = strings.ReplaceAll(raw, "(-)", "")
					raw = strings.ReplaceAll(raw, "(+)", "")
				}

				events = append(events, event.Event{
					Timestamp: ts,
					Category:  category,
					Parameter: name,
					Value:     event.Coerce(raw),
				})
			}
		}
	}
	return events
}

// columnTimestamp resolves the timestamp aligned with column i, if any.
func columnTimestamp(timestamps []string, i int) (time.Time, bool) {
	if i >= len(timestamps) {
		return time.Time{}, false
	}
	return parseTimestamp(timestamps[i])
}

// blockCategory derives the event category from a header token; lab panels
// drop the "Labor:" prefix so categories read "Blutgase arteriell" etc.
func blockCategory(token string) string {
	if rest, ok := strings.CutPrefix(token, "Labor:"); ok {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(token)
}
