package mlife

import (
	"strings"
	"testing"
	"time"
)

func fluidBlocks(lines ...string) Blocks {
	return Blocks{
		SectionFluidBalance: {
			SectionFluidBalance: strings.Join(lines, "\n"),
		},
	}
}

func TestParseFluidBalance(t *testing.T) {
	blocks := fluidBlocks(
		"Flüssigkeitsbilanz;;;;01.01.2024 00:00 - 01.01.2024 11:59;01.01.2024 12:00 - 01.01.2024 23:59",
		";;;Einfuhr;;",
		";;;(Kristalloide);500;300",
		";;;Ausfuhr;;",
		";;;(Urin);;-1200",
	)

	events := ParseFluidBalance(blocks, ";")
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	first := events[0]
	if first.Parameter != "Kristalloide" {
		t.Errorf("expected parentheses stripped from parameter, got %q", first.Parameter)
	}
	if first.Category != "Einfuhr" {
		t.Errorf("expected category Einfuhr, got %q", first.Category)
	}
	if f, ok := first.Value.Float(); !ok || f != 500 {
		t.Errorf("expected value 500, got %v", first.Value)
	}
	// Midpoint of 00:00 - 11:59.
	want := time.Date(2024, 1, 1, 5, 59, 30, 0, time.UTC)
	if !first.Timestamp.Equal(want) {
		t.Errorf("expected interval midpoint %v, got %v", want, first.Timestamp)
	}
	if first.TimeRange != "01.01.2024 00:00 - 01.01.2024 11:59" {
		t.Errorf("unexpected time range %q", first.TimeRange)
	}

	last := events[2]
	if last.Category != "Ausfuhr" || last.Parameter != "Urin" {
		t.Errorf("unexpected last event %q/%q", last.Category, last.Parameter)
	}
	if f, ok := last.Value.Float(); !ok || f != -1200 {
		t.Errorf("expected value -1200, got %v", last.Value)
	}
}

func TestParseFluidBalance_NonNumericCellsSkipped(t *testing.T) {
	blocks := fluidBlocks(
		"Flüssigkeitsbilanz;;;;01.01.2024 00:00 - 01.01.2024 23:59",
		";;;(Bilanz gesamt);n.a. 7",
	)

	events := ParseFluidBalance(blocks, ";")
	if len(events) != 0 {
		t.Fatalf("expected non-numeric cell to be skipped, got %d events", len(events))
	}
}

func TestRangeMidpoint_FallsBackToPlainTimestamp(t *testing.T) {
	ts, ok := rangeMidpoint("01.01.2024 08:00")
	if !ok {
		t.Fatal("expected plain timestamp to parse")
	}
	if ts.Hour() != 8 {
		t.Errorf("unexpected timestamp %v", ts)
	}
}
