package mlife

import (
	"regexp"
	"strings"
)

// Every reprint of the chart repeats the report masthead: a banner line
// containing bannerMarker followed by patient/case metadata. The whole block
// spans mastheadLines lines including the banner itself.
const (
	bannerMarker   = "Ausdruck: Gesamte Akte"
	mastheadLines  = 8
	intervalFooter = "Datum/Uhrzeit bezieht sich jeweils auf den Intervallstart."
	statusFooter   = "Bei aktuell laufenden Statusmodulen"
)

var intervalNoticePattern = regexp.MustCompile(`Intervall:\s*\d+\s*min`)

// CleanReport strips report mastheads, disclaimer/footnote lines and
// interval notices from the raw export while preserving the order of all
// surviving lines. Cleaning is idempotent: a cleaned report contains none of
// the trigger patterns, so a second pass is a no-op.
func CleanReport(text string) string {
	lines := strings.Split(text, "\n")
	skip := make(map[int]bool)
	var banners []int

	for i, line := range lines {
		stripped := strings.TrimLeft(line, " \t")
		switch {
		case strings.Contains(stripped, bannerMarker):
			banners = append(banners, i)
		case strings.Contains(stripped, statusFooter):
			skip[i] = true
		case strings.Contains(stripped, intervalFooter):
			skip[i] = true
			if i > 0 {
				// The footer is preceded by its own separator line.
				skip[i-1] = true
			}
		case intervalNoticePattern.MatchString(stripped):
			skip[i] = true
		}
	}

	for j, h := range banners {
		end := h + mastheadLines
		if end > len(lines) {
			end = len(lines)
		}
		for i := h; i < end; i++ {
			skip[i] = true
		}
		// Reprints after the first are preceded by a page-break line.
		if j > 0 && h > 0 {
			skip[h-1] = true
		}
	}

	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if skip[i] {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
