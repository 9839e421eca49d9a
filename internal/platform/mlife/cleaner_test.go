package mlife

import (
	"strings"
	"testing"
)

func masthead() []string {
	return []string{
		"Ausdruck: Gesamte Akte;Station 4B",
		"Name;Mustermann, Max",
		"Pat.-ID;123456",
		"Fall-ID;789",
		"geb.;01.01.1960",
		"Alter;65 J",
		"10.09.2025 11:53 - 30.09.2025 01:45;",
		"Seite 1;",
	}
}

func TestCleanReport_RemovesMasthead(t *testing.T) {
	lines := append(masthead(), "Online erfasste Vitaldaten;", "data;row")
	got := CleanReport(strings.Join(lines, "\n"))

	if strings.Contains(got, bannerMarker) {
		t.Error("banner line survived cleaning")
	}
	if strings.Contains(got, "Mustermann") {
		t.Error("masthead content survived cleaning")
	}
	if !strings.Contains(got, "Online erfasste Vitaldaten;") {
		t.Error("section header was removed")
	}
	if !strings.Contains(got, "data;row") {
		t.Error("data row was removed")
	}
}

func TestCleanReport_SecondBannerTakesPageBreak(t *testing.T) {
	lines := append(masthead(), "data;row", "PAGEBREAK;")
	lines = append(lines, masthead()...)
	lines = append(lines, "more;data")
	got := CleanReport(strings.Join(lines, "\n"))

	if strings.Contains(got, "PAGEBREAK") {
		t.Error("page-break line before reprint survived")
	}
	if !strings.Contains(got, "data;row") || !strings.Contains(got, "more;data") {
		t.Error("data rows around the reprint were removed")
	}
}

func TestCleanReport_Footers(t *testing.T) {
	text := strings.Join([]string{
		"data;row",
		"separator;",
		intervalFooter,
		statusFooter + " gilt: ...",
		"Intervall: 15 min.,",
		"tail;row",
	}, "\n")
	got := CleanReport(text)

	for _, needle := range []string{intervalFooter, statusFooter, "Intervall:", "separator"} {
		if strings.Contains(got, needle) {
			t.Errorf("%q survived cleaning", needle)
		}
	}
	if !strings.Contains(got, "data;row") || !strings.Contains(got, "tail;row") {
		t.Error("data rows were removed")
	}
}

func TestCleanReport_Idempotent(t *testing.T) {
	lines := append(masthead(), "data;row", intervalFooter, "tail;row")
	once := CleanReport(strings.Join(lines, "\n"))
	twice := CleanReport(once)
	if once != twice {
		t.Errorf("cleaning is not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}
