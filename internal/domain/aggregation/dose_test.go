package aggregation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

func medEvent(ts time.Time, parameter string, rate float64) event.Event {
	return event.Event{
		Timestamp:  ts,
		Category:   "Perfusoren",
		Parameter:  parameter,
		Value:      event.Num(rate),
		SourceType: "Medication",
		Rate:       &rate,
	}
}

func TestParseConcentration(t *testing.T) {
	cases := []struct {
		label string
		field string
		want  float64
		ok    bool
	}{
		{"Norepinephrin Perfusor 5 mg / 50 ml", "norepinephrine", 100, true},
		{"Suprarenin 10 mg / 50 ml", "epinephrine", 200, true},
		{"Milrinon 12,5 mg / 50 ml", "milrinone", 250, true},
		{"Propofol 2% 20mg/ml", "propofol", 20000, true},
		{"Dobutamin 250 5mg/ml", "dobutamine", 5000, true},
		{"Norepinephrin Perfusor", "norepinephrine", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseConcentration(tc.label, tc.field)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseConcentration(%q) = (%v, %v), want (%v, %v)",
				tc.label, got, ok, tc.want, tc.ok)
		}
	}
}

func TestBolusFilter(t *testing.T) {
	f := NewBolusFilter()
	if !f.IsBolus("Norepinephrin (FER) 1mg") {
		t.Error("(FER) marker not recognized")
	}
	if !f.IsBolus("Suprarenin Fertigspritze") {
		t.Error("Fertigspritze marker not recognized")
	}
	if f.IsBolus("Norepinephrin Perfusor 5 mg / 50 ml") {
		t.Error("perfusor label misclassified as bolus")
	}

	custom := NewBolusFilter("Bolus")
	if !custom.IsBolus("Heparin Bolus 5000 IE") {
		t.Error("custom marker not recognized")
	}
	if custom.IsBolus("Norepinephrin (FER)") {
		t.Error("custom filter must not keep the default markers")
	}
}

func TestPatientWeight(t *testing.T) {
	now := time.Date(2023, 4, 12, 8, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		{Timestamp: now, Parameter: "Gewicht", Value: event.Num(1.2), SourceType: "PatientInfo"},
		{Timestamp: now, Parameter: "Gewicht", Value: event.Num(81), SourceType: "PatientInfo"},
	})

	w, ok := PatientWeight(table)
	if !ok || w != 81 {
		t.Errorf("PatientWeight = (%v, %v), want (81, true)", w, ok)
	}
}

func TestPatientWeightAlternateSource(t *testing.T) {
	now := time.Date(2023, 4, 12, 8, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		{Timestamp: now, Parameter: "Gewicht / kg", Value: event.Num(74), SourceType: "Grösse/Gewicht"},
	})

	w, ok := PatientWeight(table)
	if !ok || w != 74 {
		t.Errorf("PatientWeight = (%v, %v), want (74, true)", w, ok)
	}
}

func TestPatientWeightImplausible(t *testing.T) {
	now := time.Date(2023, 4, 12, 8, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		{Timestamp: now, Parameter: "Gewicht", Value: event.Num(812), SourceType: "PatientInfo"},
	})

	if _, ok := PatientWeight(table); ok {
		t.Error("implausible weight accepted")
	}
}

func TestMedicationDose(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(8*time.Hour), "Norepinephrin Perfusor 5 mg / 50 ml", 10),
	})
	e := NewEngine(table, zerolog.Nop())

	pattern := MedicationDrugs[0]
	if pattern.Field != "norepinephrine" {
		t.Fatalf("unexpected drug order: %q", pattern.Field)
	}

	dose, ok, needsWeight := e.MedicationDose(day, pattern.Field, pattern.Pattern,
		NewBolusFilter(), Context{WeightKg: 80})
	if needsWeight {
		t.Fatal("weight was provided")
	}
	if !ok {
		t.Fatal("expected a dose")
	}
	// 10 ml/h at 100 µg/ml over 80 kg.
	if dose != 0.2083 {
		t.Errorf("dose = %v, want 0.2083", dose)
	}
}

func TestMedicationDoseMedianOfRates(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(6*time.Hour), "Norepinephrin Perfusor 5 mg / 50 ml", 4),
		medEvent(day.Add(10*time.Hour), "Norepinephrin Perfusor 5 mg / 50 ml", 10),
		medEvent(day.Add(14*time.Hour), "Norepinephrin Perfusor 5 mg / 50 ml", 40),
	})
	e := NewEngine(table, zerolog.Nop())

	dose, ok, _ := e.MedicationDose(day, "norepinephrine", drugExcl(`Norepinephrin`, `oNorepinephrin`),
		NewBolusFilter(), Context{WeightKg: 80})
	if !ok {
		t.Fatal("expected a dose")
	}
	if dose != 0.2083 {
		t.Errorf("dose = %v, want median-based 0.2083", dose)
	}
}

func TestMedicationDoseExcludesBolus(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(8*time.Hour), "Norepinephrin (FER) 1mg", 99),
	})
	e := NewEngine(table, zerolog.Nop())

	_, ok, _ := e.MedicationDose(day, "norepinephrine", drug(`Norepinephrin`),
		NewBolusFilter(), Context{WeightKg: 80})
	if ok {
		t.Error("bolus administration produced a rate dose")
	}
}

func TestMedicationDoseMissingWeight(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(8*time.Hour), "Norepinephrin Perfusor 5 mg / 50 ml", 10),
	})
	e := NewEngine(table, zerolog.Nop())

	dose, ok, needsWeight := e.MedicationDose(day, "norepinephrine", drug(`Norepinephrin`),
		NewBolusFilter(), Context{})
	if ok || dose != 0 {
		t.Errorf("dose without weight = (%v, %v), want (0, false)", dose, ok)
	}
	if !needsWeight {
		t.Error("needsWeight not reported")
	}
}

func TestMedicationDoseDefaultConcentration(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(8*time.Hour), "Norepinephrin Perfusor", 10),
	})
	e := NewEngine(table, zerolog.Nop())

	dose, ok, _ := e.MedicationDose(day, "norepinephrine", drug(`Norepinephrin`),
		NewBolusFilter(), Context{WeightKg: 80})
	if !ok {
		t.Fatal("expected a dose from the default concentration")
	}
	if dose != 0.2083 {
		t.Errorf("dose = %v, want 0.2083", dose)
	}
}

func TestMedicationDoseVasopressin(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	table := event.NewTable([]event.Event{
		medEvent(day.Add(8*time.Hour), "Empressin Perfusor", 2.456),
	})
	e := NewEngine(table, zerolog.Nop())

	dose, ok, needsWeight := e.MedicationDose(day, "vasopressin", drug(`Vasopressin|Empressin`),
		NewBolusFilter(), Context{})
	if !ok || needsWeight {
		t.Fatalf("MedicationDose = (%v, %v, %v)", dose, ok, needsWeight)
	}
	if dose != 2.46 {
		t.Errorf("vasopressin rate = %v, want pass-through 2.46", dose)
	}
}
