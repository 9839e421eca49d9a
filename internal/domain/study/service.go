package study

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/aggregation"
	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/mlife"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/redact"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/redcap"
)

// Defaults carry the site's aggregation conventions, loaded from config.
type Defaults struct {
	Strategy     aggregation.Strategy
	NearestTime  string
	BolusMarkers []string
	DecimalComma bool
}

type Service struct {
	imports  ImportRepository
	records  RecordRepository
	defaults Defaults
	log      zerolog.Logger
}

func NewService(imports ImportRepository, records RecordRepository, defaults Defaults, log zerolog.Logger) *Service {
	if defaults.Strategy == "" {
		defaults.Strategy = aggregation.StrategyMedian
	}
	return &Service{imports: imports, records: records, defaults: defaults, log: log}
}

// ImportExport parses a raw export, redacts free-text values against the
// patient name found in the masthead, and persists the event table.
func (s *Service) ImportExport(ctx context.Context, recordID string, arm aggregation.Arm, sourceName, raw string) (*Import, error) {
	if recordID == "" {
		return nil, fmt.Errorf("study: record_id is required")
	}
	if !validArm(arm) {
		return nil, fmt.Errorf("study: unknown arm %q", arm)
	}

	doc, err := mlife.NewDocument(raw)
	if err != nil {
		return nil, err
	}
	table := mlife.NewPipeline(s.log).RunDocument(doc)
	patientName := doc.PatientName()

	redactor := redactorFor(patientName)
	events := redactEvents(table.Events(), redactor)

	payload, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("study: encode events: %w", err)
	}

	imp := &Import{
		RecordID:    recordID,
		Arm:         arm,
		SourceName:  sourceName,
		Delimiter:   doc.Delimiter,
		PatientName: patientName,
		EventCount:  len(events),
		Events:      payload,
	}
	if err := s.imports.Create(ctx, imp); err != nil {
		return nil, fmt.Errorf("study: store import: %w", err)
	}

	s.log.Info().
		Str("import_id", imp.ID.String()).
		Str("record_id", recordID).
		Int("events", imp.EventCount).
		Msg("export imported")
	return imp, nil
}

func redactorFor(patientName string) redact.Redactor {
	if patientName == "" {
		return redact.Passthrough{}
	}
	return redact.NewTermRedactor(patientName)
}

func redactEvents(events []event.Event, redactor redact.Redactor) []event.Event {
	out := make([]event.Event, len(events))
	for i, ev := range events {
		if !ev.Value.IsNumeric() {
			ev.Value = event.Text(redactor.Redact(ev.Value.String()))
		}
		out[i] = ev
	}
	return out
}

func validArm(arm aggregation.Arm) bool {
	return arm == aggregation.ArmECLS || arm == aggregation.ArmImpella
}

// GetImport loads one import with its events.
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (*Import, error) {
	return s.imports.GetByID(ctx, id)
}

// ListImports pages through stored imports, newest first.
func (s *Service) ListImports(ctx context.Context, limit, offset int) ([]*Import, int, error) {
	return s.imports.List(ctx, limit, offset)
}

// DeleteImport removes an import and, via the schema's cascade, its records.
func (s *Service) DeleteImport(ctx context.Context, id uuid.UUID) error {
	return s.imports.Delete(ctx, id)
}

// table reconstructs the event table of a stored import.
func (s *Service) table(imp *Import) (*event.Table, error) {
	var events []event.Event
	if err := json.Unmarshal(imp.Events, &events); err != nil {
		return nil, fmt.Errorf("study: decode events: %w", err)
	}
	return event.NewTable(events), nil
}

// Days lists the calendar days an import covers.
func (s *Service) Days(ctx context.Context, importID uuid.UUID) ([]time.Time, error) {
	imp, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		return nil, err
	}
	table, err := s.table(imp)
	if err != nil {
		return nil, err
	}
	return table.Days(), nil
}

// Parameters summarizes the distinct parameters observed on one day, for
// the collaborator's review step before building records.
func (s *Service) Parameters(ctx context.Context, importID uuid.UUID, day time.Time) ([]ParameterSummary, error) {
	imp, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		return nil, err
	}
	table, err := s.table(imp)
	if err != nil {
		return nil, err
	}

	type key struct{ source, category, parameter string }
	counts := make(map[key]int)
	for _, ev := range table.OnDay(day).Events() {
		counts[key{ev.SourceType, ev.Category, ev.Parameter}]++
	}

	summaries := make([]ParameterSummary, 0, len(counts))
	for k, n := range counts {
		summaries = append(summaries, ParameterSummary{
			SourceType: k.source,
			Category:   k.category,
			Parameter:  k.parameter,
			Count:      n,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.SourceType != b.SourceType {
			return a.SourceType < b.SourceType
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Parameter < b.Parameter
	})
	return summaries, nil
}

// ParameterValues lists every numeric measurement of one parameter on one
// day in clock order. Patterns match case-insensitively anywhere in the
// string; category and source are optional narrowing filters.
func (s *Service) ParameterValues(ctx context.Context, importID uuid.UUID, day time.Time, source, category, parameter string) ([]ParameterValue, error) {
	if parameter == "" {
		return nil, fmt.Errorf("study: parameter pattern is required")
	}
	paramRe, err := regexp.Compile("(?i)" + parameter)
	if err != nil {
		return nil, fmt.Errorf("study: parameter pattern: %w", err)
	}
	var categoryRe *regexp.Regexp
	if category != "" && category != ".*" {
		if categoryRe, err = regexp.Compile("(?i)" + category); err != nil {
			return nil, fmt.Errorf("study: category pattern: %w", err)
		}
	}

	imp, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		return nil, err
	}
	table, err := s.table(imp)
	if err != nil {
		return nil, err
	}

	t := table.OnDay(day)
	if source != "" {
		t = t.SourceTypeContains(source)
	}
	t = t.MatchParameter(paramRe)
	if categoryRe != nil {
		t = t.MatchCategory(categoryRe)
	}

	vals, stamps := t.NumericValues()
	values := make([]ParameterValue, len(vals))
	for i, v := range vals {
		values[i] = ParameterValue{Time: stamps[i].Format("15:04"), Value: v}
	}
	return values, nil
}

// BuildOptions override the configured aggregation defaults per build.
type BuildOptions struct {
	Strategy    aggregation.Strategy `json:"strategy"`
	NearestTime string               `json:"nearest_time"`
	WeightKg    float64              `json:"weight_kg"`
}

// BuildRecords assembles the daily instrument records for an import and
// replaces any previously built set.
func (s *Service) BuildRecords(ctx context.Context, importID uuid.UUID, opts BuildOptions) ([]*RecordEntry, error) {
	imp, err := s.imports.GetByID(ctx, importID)
	if err != nil {
		return nil, err
	}
	table, err := s.table(imp)
	if err != nil {
		return nil, err
	}

	aggCtx, err := s.aggregationContext(opts)
	if err != nil {
		return nil, err
	}

	engine := aggregation.NewEngine(table, s.log)
	bolus := aggregation.NewBolusFilter(s.defaults.BolusMarkers...)
	builder := aggregation.NewBuilder(engine, imp.RecordID, imp.Arm, aggCtx, bolus, s.log)

	days := engine.Days()
	entries := make([]*RecordEntry, 0, len(days))
	for _, built := range builder.BuildAll() {
		payload, err := json.Marshal(built.Payload)
		if err != nil {
			return nil, fmt.Errorf("study: encode record: %w", err)
		}
		entries = append(entries, &RecordEntry{
			RecordID:   imp.RecordID,
			Arm:        built.Key.Arm,
			Instrument: built.Instrument,
			DayIndex:   built.Key.DayIndex,
			Day:        days[built.Key.DayIndex],
			Payload:    payload,
		})
	}

	if err := s.records.Replace(ctx, importID, entries); err != nil {
		return nil, fmt.Errorf("study: store records: %w", err)
	}
	return entries, nil
}

func (s *Service) aggregationContext(opts BuildOptions) (aggregation.Context, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = s.defaults.Strategy
	}
	clock := opts.NearestTime
	if clock == "" {
		clock = s.defaults.NearestTime
	}

	ctx := aggregation.Context{Strategy: strategy, WeightKg: opts.WeightKg}
	if clock != "" {
		ref, err := aggregation.ParseClock(clock)
		if err != nil {
			return aggregation.Context{}, err
		}
		ctx.Reference = ref
		ctx.HasReference = true
	}
	if strategy == aggregation.StrategyNearest && !ctx.HasReference {
		return aggregation.Context{}, fmt.Errorf("study: nearest strategy needs a reference time")
	}
	return ctx, nil
}

// ListRecords returns an import's built records in day/instrument order.
func (s *Service) ListRecords(ctx context.Context, importID uuid.UUID) ([]*RecordEntry, error) {
	return s.records.ListByImport(ctx, importID)
}

// GetRecord loads one instrument record.
func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*RecordEntry, error) {
	return s.records.GetByID(ctx, id)
}

// UpdateRecord applies a partial field update to a record's payload and
// re-runs the derivation pass so flags stay consistent with the edit.
func (s *Service) UpdateRecord(ctx context.Context, id uuid.UUID, patch json.RawMessage) (*RecordEntry, error) {
	entry, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	record, err := decodeRecord(entry.Instrument, entry.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(patch, record); err != nil {
		return nil, fmt.Errorf("study: apply patch: %w", err)
	}
	derive(record)

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("study: encode record: %w", err)
	}
	entry.Payload = payload

	if err := s.records.UpdatePayload(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RedcapPayload renders a record as REDCap import fields.
func (s *Service) RedcapPayload(ctx context.Context, id uuid.UUID) (map[string]string, error) {
	entry, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	record, err := decodeRecord(entry.Instrument, entry.Payload)
	if err != nil {
		return nil, err
	}
	return redcap.Format(record, redcap.Options{DecimalComma: s.defaults.DecimalComma})
}

func decodeRecord(instrument aggregation.Instrument, payload json.RawMessage) (any, error) {
	var record any
	switch instrument {
	case aggregation.InstrumentLab:
		record = &aggregation.LabRecord{}
	case aggregation.InstrumentHemodynamics:
		record = &aggregation.HemodynamicsRecord{}
	case aggregation.InstrumentPump:
		record = &aggregation.PumpRecord{}
	case aggregation.InstrumentImpella:
		record = &aggregation.ImpellaRecord{}
	default:
		return nil, fmt.Errorf("study: unknown instrument %q", instrument)
	}
	if err := json.Unmarshal(payload, record); err != nil {
		return nil, fmt.Errorf("study: decode %s record: %w", instrument, err)
	}
	return record, nil
}

func derive(record any) {
	switch r := record.(type) {
	case *aggregation.LabRecord:
		r.Derive()
	case *aggregation.HemodynamicsRecord:
		r.Derive()
	}
}
