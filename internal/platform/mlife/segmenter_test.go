package mlife

import (
	"strings"
	"testing"
)

func TestSegmentBlocks_Basic(t *testing.T) {
	text := strings.Join([]string{
		"preamble;discarded",
		"Online erfasste Vitaldaten;",
		";HF;70",
		"Labor: Blutgase arteriell;",
		";PH;7,35",
	}, "\n")

	blocks := SegmentBlocks(text, ";")

	vitals := blocks.Section(SectionVitals)["Online erfasste Vitaldaten"]
	if !strings.Contains(vitals, ";HF;70") {
		t.Errorf("vitals block missing data row, got %q", vitals)
	}
	if strings.Contains(vitals, "preamble") {
		t.Error("content before the first header leaked into a block")
	}

	lab := blocks.Section(SectionLab)["Labor: Blutgase arteriell"]
	if !strings.Contains(lab, ";PH;7,35") {
		t.Errorf("lab block missing data row, got %q", lab)
	}
}

func TestSegmentBlocks_RepeatedHeaderConcatenates(t *testing.T) {
	text := strings.Join([]string{
		"Online erfasste Vitaldaten;",
		";HF;70",
		"Labor: Blutbild;",
		";Hb;9,1",
		"Online erfasste Vitaldaten;",
		";HF;80",
	}, "\n")

	blocks := SegmentBlocks(text, ";")
	vitals := blocks.Section(SectionVitals)["Online erfasste Vitaldaten"]

	if !strings.Contains(vitals, ";HF;70") || !strings.Contains(vitals, ";HF;80") {
		t.Errorf("repeated section lost rows, got %q", vitals)
	}
	if strings.Index(vitals, ";HF;70") > strings.Index(vitals, ";HF;80") {
		t.Error("repeated section rows are out of order")
	}
}

func TestBlocks_Empty(t *testing.T) {
	blocks := SegmentBlocks("no;recognizable;headers\nhere;at;all", ";")
	if !blocks.Empty() {
		t.Error("expected empty blocks for unrecognized input")
	}

	blocks = SegmentBlocks("Bilanz;\n;;;Einfuhr;100", ";")
	if blocks.Empty() {
		t.Error("expected non-empty blocks")
	}
}
