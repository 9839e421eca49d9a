package mlife

import (
	"strings"
	"testing"
	"time"
)

func TestParseTimeSeries_Vitals(t *testing.T) {
	blocks := Blocks{
		SectionVitals: {
			"Online erfasste Vitaldaten": strings.Join([]string{
				";Parameter;01.01.24 10:00;01.01.24 11:00",
				";HF;70;75",
				";NIBD sys;110;",
			}, "\n"),
		},
	}

	events := parseTimeSeries(blocks, SectionVitals, ";", tableOptions{})
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	first := events[0]
	if first.Parameter != "HF" {
		t.Errorf("expected parameter HF, got %q", first.Parameter)
	}
	if f, ok := first.Value.Float(); !ok || f != 70 {
		t.Errorf("expected value 70, got %v", first.Value)
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, first.Timestamp)
	}
	if events[1].Timestamp.Hour() != 11 {
		t.Errorf("expected second column timestamp, got %v", events[1].Timestamp)
	}
	if events[2].Parameter != "NIBD sys" {
		t.Errorf("expected parameter NIBD sys, got %q", events[2].Parameter)
	}
}

func TestParseTimeSeries_RowsBeforeTimestampsDropped(t *testing.T) {
	blocks := Blocks{
		SectionVitals: {
			"Online erfasste Vitaldaten": strings.Join([]string{
				";HF;70;75",
				";Parameter;01.01.24 10:00;01.01.24 11:00",
				";AF;12;14",
			}, "\n"),
		},
	}

	events := parseTimeSeries(blocks, SectionVitals, ";", tableOptions{})
	for _, ev := range events {
		if ev.Parameter == "HF" {
			t.Fatal("row before the first timestamp row must be dropped")
		}
	}
	if len(events) != 2 {
		t.Errorf("expected 2 events, got %d", len(events))
	}
}

func TestParseTimeSeries_Lab(t *testing.T) {
	blocks := Blocks{
		SectionLab: {
			"Labor: Blutgase arteriell": strings.Join([]string{
				";Parameter;01.01.24 10:00",
				";PH;7,35(-)",
			}, "\n"),
		},
	}

	events := parseTimeSeries(blocks, SectionLab, ";", tableOptions{skipFirst: true, cleanLab: true})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Category != "Blutgase arteriell" {
		t.Errorf("expected category without Labor: prefix, got %q", ev.Category)
	}
	if f, ok := ev.Value.Float(); !ok || f != 7.35 {
		t.Errorf("expected flag-stripped numeric 7.35, got %v", ev.Value)
	}
}

func TestParseTimeSeries_TextValueSurvives(t *testing.T) {
	blocks := Blocks{
		SectionRespiratory: {
			"Beatmung": strings.Join([]string{
				";Parameter;01.01.24 10:00",
				";Modus;BIPAP/ASB",
			}, "\n"),
		},
	}

	events := parseTimeSeries(blocks, SectionRespiratory, ";", tableOptions{})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Value.String() != "BIPAP/ASB" {
		t.Errorf("expected text value, got %v", events[0].Value)
	}
	if events[0].Value.IsNumeric() {
		t.Error("mode value must stay textual")
	}
}
