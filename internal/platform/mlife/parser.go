package mlife

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// Source type labels attached by the pipeline. Nested patient-data events
// carry their device sub-header as source type instead.
const (
	SourceVitals       = "Vitals"
	SourceLab          = "Lab"
	SourceRespiratory  = "Respiratory"
	SourceFluidBalance = "FluidBalance"
	SourceMedication   = "Medication"
	SourcePatientInfo  = "PatientInfo"
)

// ErrNoBlocks is returned when a report yields no recognizable section at
// all, which means the input is not an export of this system.
var ErrNoBlocks = errors.New("mlife: no recognizable report sections")

// Document is one export prepared for parsing: delimiter detected, masthead
// noise removed, text segmented into section blocks.
type Document struct {
	Raw       string
	Clean     string
	Delimiter string
	Blocks    Blocks
}

// NewDocument prepares a raw export. It fails when the delimiter cannot be
// determined or no section header is found.
func NewDocument(raw string) (*Document, error) {
	delimiter, err := DetectDelimiter(raw)
	if err != nil {
		return nil, err
	}
	clean := CleanReport(raw)
	blocks := SegmentBlocks(clean, delimiter)
	if blocks.Empty() {
		return nil, ErrNoBlocks
	}
	return &Document{
		Raw:       raw,
		Clean:     clean,
		Delimiter: delimiter,
		Blocks:    blocks,
	}, nil
}

// PatientName reads the patient's name from the masthead, for redaction and
// display. The masthead states the name as a labeled cell with the value in
// the adjacent cell; empty when absent.
func (d *Document) PatientName() string {
	lines := strings.Split(d.Raw, "\n")
	if len(lines) > patientInfoScanLines {
		lines = lines[:patientInfoScanLines]
	}
	for _, line := range lines {
		if !strings.Contains(line, "Name") {
			continue
		}
		cells := splitLine(line, d.Delimiter)
		for j, cell := range cells {
			if strings.TrimSpace(cell) != "Name" {
				continue
			}
			for _, next := range cells[j+1:] {
				if name := strings.TrimSpace(next); name != "" {
					return name
				}
			}
		}
	}
	return ""
}

// A SectionParser extracts the events of one report section.
type SectionParser interface {
	Name() string
	Parse(doc *Document) []event.Event
}

type sectionParserFunc struct {
	name string
	fn   func(doc *Document) []event.Event
}

func (s sectionParserFunc) Name() string                     { return s.name }
func (s sectionParserFunc) Parse(doc *Document) []event.Event { return s.fn(doc) }

// stamped wraps parsed events with a fixed source type.
func stamped(source string, events []event.Event) []event.Event {
	for i := range events {
		events[i].SourceType = source
	}
	return events
}

// defaultParsers covers every section of the export.
func defaultParsers() []SectionParser {
	return []SectionParser{
		sectionParserFunc{SourceVitals, func(d *Document) []event.Event {
			return stamped(SourceVitals,
				parseTimeSeries(d.Blocks, SectionVitals, d.Delimiter, tableOptions{}))
		}},
		sectionParserFunc{SourceLab, func(d *Document) []event.Event {
			return stamped(SourceLab,
				parseTimeSeries(d.Blocks, SectionLab, d.Delimiter,
					tableOptions{skipFirst: true, cleanLab: true}))
		}},
		sectionParserFunc{SourceRespiratory, func(d *Document) []event.Event {
			return stamped(SourceRespiratory,
				parseTimeSeries(d.Blocks, SectionRespiratory, d.Delimiter, tableOptions{}))
		}},
		sectionParserFunc{"PatientData", func(d *Document) []event.Event {
			events := ParsePatientData(d.Blocks, d.Delimiter)
			for i := range events {
				events[i].SourceType = events[i].SourceHeader
			}
			return events
		}},
		sectionParserFunc{SourceFluidBalance, func(d *Document) []event.Event {
			return stamped(SourceFluidBalance, ParseFluidBalance(d.Blocks, d.Delimiter))
		}},
		sectionParserFunc{SourceMedication, func(d *Document) []event.Event {
			return stamped(SourceMedication, ParseMedication(d.Blocks, d.Delimiter))
		}},
		sectionParserFunc{SourcePatientInfo, func(d *Document) []event.Event {
			return stamped(SourcePatientInfo, ParsePatientInfo(d.Raw, d.Delimiter))
		}},
	}
}

// Pipeline runs every section parser over a prepared document and merges the
// results into one chronologically sorted event table.
type Pipeline struct {
	parsers []SectionParser
	log     zerolog.Logger
}

// NewPipeline builds a pipeline with the full parser set.
func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{parsers: defaultParsers(), log: log}
}

// Run parses a raw export end to end. It also returns the patient name read
// from the masthead for downstream redaction.
func (p *Pipeline) Run(raw string) (*event.Table, string, error) {
	doc, err := NewDocument(raw)
	if err != nil {
		return nil, "", fmt.Errorf("mlife: prepare document: %w", err)
	}
	table := p.RunDocument(doc)
	return table, doc.PatientName(), nil
}

// RunDocument parses an already prepared document.
func (p *Pipeline) RunDocument(doc *Document) *event.Table {
	var all []event.Event
	for _, parser := range p.parsers {
		events := parser.Parse(doc)
		p.log.Debug().
			Str("section", parser.Name()).
			Int("events", len(events)).
			Msg("section parsed")
		all = append(all, events...)
	}

	table := event.NewTable(all)
	p.log.Info().
		Str("delimiter", doc.Delimiter).
		Int("events", table.Len()).
		Msg("report parsed")
	return table
}
