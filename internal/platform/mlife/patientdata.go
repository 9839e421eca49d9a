package mlife

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// The "ALLE Patientendaten" block nests device protocols, scores and care
// notes under its own sub-headers instead of the timestamp-row layout the
// other sections use. A sub-header line keeps columns 0 and 1 empty and puts
// the device name into column 2; key/value rows leave column 2 empty and put
// the key into column 4 and the value into column 9.
const (
	patientDataHeaderColumn = 2
	patientDataKeyColumn    = 4
	patientDataValueColumn  = 9
)

var initialsPattern = regexp.MustCompile(`^[A-Z]\.\s*[A-Z]\.$`)

// deviceInstance is one numbered occurrence of a nested sub-header, carrying
// the header line plus everything up to the next sub-header.
type deviceInstance struct {
	header string
	label  string
	lines  []string
}

// patientDataHeaders collects the distinct sub-header names of the block.
func patientDataHeaders(text, delimiter string) map[string]bool {
	headers := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		parts := splitLine(line, delimiter)
		if len(parts) <= patientDataHeaderColumn {
			continue
		}
		if strings.TrimSpace(parts[0]) != "" || strings.TrimSpace(parts[1]) != "" {
			continue
		}
		name := strings.TrimSpace(parts[patientDataHeaderColumn])
		if name != "" && name != "Datum" {
			headers[name] = true
		}
	}
	return headers
}

// splitDeviceInstances segments the block into numbered sub-header
// occurrences. Every occurrence of a sub-header opens a fresh instance, so a
// device documented in two separated chart regions yields "ECMO vv 1" and
// "ECMO vv 2" rather than one merged record.
func splitDeviceInstances(text, delimiter string) []deviceInstance {
	headers := patientDataHeaders(text, delimiter)
	counters := make(map[string]int)

	var instances []deviceInstance
	var current *deviceInstance

	for _, line := range strings.Split(text, "\n") {
		parts := splitLine(line, delimiter)

		var name string
		if len(parts) > patientDataHeaderColumn {
			name = strings.TrimSpace(parts[patientDataHeaderColumn])
		}

		if name != "" && headers[name] {
			counters[name]++
			instances = append(instances, deviceInstance{
				header: name,
				label:  fmt.Sprintf("%s %d", cleanLabel(name), counters[name]),
				lines:  []string{line},
			})
			current = &instances[len(instances)-1]
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	return instances
}

// ParsePatientData parses the nested "ALLE Patientendaten" section into
// events. Key/value rows become one event per key; free-text rows are
// buffered and flushed as a single multi-line event per timestamp, filtered
// of header restatements, user initials and note-widget artifacts.
func ParsePatientData(blocks Blocks, delimiter string) []event.Event {
	text, ok := blocks.Section(SectionPatientData)[SectionPatientData]
	if !ok || text == "" {
		return nil
	}

	var events []event.Event
	for _, inst := range splitDeviceInstances(text, delimiter) {
		events = append(events, parseDeviceInstance(inst, delimiter)...)
	}
	return events
}

func parseDeviceInstance(inst deviceInstance, delimiter string) []event.Event {
	var (
		events    []event.Event
		current   time.Time
		haveStamp bool
		buffer    []string
	)
	header := cleanLabel(inst.header)

	// Text seen before the first timestamp stays buffered and attaches to
	// it once one arrives; the buffer is only dropped when the instance
	// never carries a timestamp at all.
	flush := func() {
		if len(buffer) == 0 || !haveStamp {
			return
		}
		events = append(events, event.Event{
			Timestamp:    current,
			Category:     inst.label,
			Parameter:    header,
			Value:        event.Coerce(strings.Join(buffer, "\n")),
			SourceHeader: header,
		})
		buffer = buffer[:0]
	}

	for _, line := range inst.lines {
		parts := splitLine(line, delimiter)

		if ts, ok := findTimestamp(parts); ok {
			flush()
			current, haveStamp = ts, true
		}

		if isKeyValueRow(parts) {
			flush()
			if haveStamp {
				events = append(events, event.Event{
					Timestamp:    current,
					Category:     inst.label,
					Parameter:    cleanLabel(parts[patientDataKeyColumn]),
					Value:        event.Coerce(parts[patientDataValueColumn]),
					SourceHeader: header,
				})
			}
			continue
		}

		for _, p := range parts {
			if v := cleanFreeText(p, inst.header); v != "" {
				buffer = append(buffer, v)
			}
		}
	}
	flush()
	return events
}

func isKeyValueRow(parts []string) bool {
	return len(parts) > patientDataValueColumn &&
		strings.TrimSpace(parts[patientDataKeyColumn]) != "" &&
		strings.TrimSpace(parts[patientDataValueColumn]) != "" &&
		strings.TrimSpace(parts[patientDataHeaderColumn]) == ""
}

// cleanFreeText filters one cell of a free-text row. Header restatements,
// embedded timestamps, user initials and the note-widget caption are noise;
// everything else survives with quotes stripped.
func cleanFreeText(cell, header string) string {
	p := strings.TrimSpace(cell)
	if p == "" {
		return ""
	}
	if p == header || (strings.Contains(p, header) && len(p) < len(header)+5) {
		return ""
	}
	if timestampPattern.MatchString(p) {
		return ""
	}
	if initialsPattern.MatchString(p) {
		return ""
	}
	if strings.Contains(p, "Arztnotizen") && len(p) < 20 {
		return ""
	}
	return strings.TrimSpace(strings.Trim(p, `"`))
}
