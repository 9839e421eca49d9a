// Package study is the collaborator-facing surface: it owns the persisted
// import (one uploaded export, parsed into events) and the instrument
// records built from it, and exposes both over HTTP for review and editing.
package study

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/aggregation"
)

// Import maps to the import table. Events holds the parsed table as JSON;
// the export text itself is not retained, only what was recovered from it.
type Import struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	RecordID    string          `db:"record_id" json:"record_id"`
	Arm         aggregation.Arm `db:"arm" json:"arm"`
	SourceName  string          `db:"source_name" json:"source_name"`
	Delimiter   string          `db:"delimiter" json:"delimiter"`
	PatientName string          `db:"patient_name" json:"patient_name,omitempty"`
	EventCount  int             `db:"event_count" json:"event_count"`
	Events      json.RawMessage `db:"events" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// RecordEntry maps to the record table: one instrument record for one day
// of one import. Payload is the typed record serialized as JSON; edits
// patch it in place and re-run the derivation pass.
type RecordEntry struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	ImportID   uuid.UUID              `db:"import_id" json:"import_id"`
	RecordID   string                 `db:"record_id" json:"record_id"`
	Arm        aggregation.Arm        `db:"arm" json:"arm"`
	Instrument aggregation.Instrument `db:"instrument" json:"instrument"`
	DayIndex   int                    `db:"day_index" json:"day_index"`
	Day        time.Time              `db:"day" json:"day"`
	Payload    json.RawMessage        `db:"payload" json:"payload"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time              `db:"updated_at" json:"updated_at"`
}

// ParameterSummary describes one distinct parameter observed on a day,
// backing the review step of the collaborator UI.
type ParameterSummary struct {
	SourceType string `json:"source_type"`
	Category   string `json:"category"`
	Parameter  string `json:"parameter"`
	Count      int    `json:"count"`
}

// ParameterValue is one timestamped measurement of a reviewed parameter, so
// the collaborator can see what an aggregate was computed from.
type ParameterValue struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}
