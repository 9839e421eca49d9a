package event

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"
)

func TestCoerce_CommaDecimal(t *testing.T) {
	v := Coerce("36,5")
	f, ok := v.Float()
	if !ok {
		t.Fatal("expected numeric value")
	}
	if f != 36.5 {
		t.Errorf("expected 36.5, got %v", f)
	}
}

func TestCoerce_TextFallback(t *testing.T) {
	v := Coerce("SR (Sinusrhythmus)")
	if v.IsNumeric() {
		t.Fatal("expected text value")
	}
	if v.String() != "SR (Sinusrhythmus)" {
		t.Errorf("unexpected text: %q", v.String())
	}
}

func TestCoerce_TextKeepsCommas(t *testing.T) {
	v := Coerce("Patient wach, ansprechbar")
	if v.IsNumeric() {
		t.Fatal("expected text value")
	}
	if v.String() != "Patient wach, ansprechbar" {
		t.Errorf("free text altered: %q", v.String())
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	for _, v := range []Value{Num(7.25), Text("P8")} {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back Value
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if back != v {
			t.Errorf("round trip changed value: %v -> %v", v, back)
		}
	}
}

func ts(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func TestNewTable_DropsZeroTimestampsAndSorts(t *testing.T) {
	tbl := NewTable([]Event{
		{Timestamp: ts(2, 10), Parameter: "b"},
		{Parameter: "dropped"},
		{Timestamp: ts(1, 8), Parameter: "a"},
	})
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", tbl.Len())
	}
	if tbl.Events()[0].Parameter != "a" {
		t.Errorf("expected chronological order, got %q first", tbl.Events()[0].Parameter)
	}
}

func TestTable_Filters(t *testing.T) {
	tbl := NewTable([]Event{
		{Timestamp: ts(1, 8), SourceType: "Vitals", Category: "Online erfasste Vitaldaten", Parameter: "HF [1/min]", Value: Num(70)},
		{Timestamp: ts(1, 9), SourceType: "Lab", Category: "Blutgase arteriell", Parameter: "PCO2", Value: Num(42)},
		{Timestamp: ts(2, 8), SourceType: "Vitals", Category: "Online erfasste Vitaldaten", Parameter: "HF [1/min]", Value: Num(80)},
	})

	day1 := tbl.OnDay(ts(1, 0))
	if day1.Len() != 2 {
		t.Errorf("expected 2 events on day 1, got %d", day1.Len())
	}

	vitals := tbl.SourceTypeContains("vit")
	if vitals.Len() != 2 {
		t.Errorf("expected 2 vitals events, got %d", vitals.Len())
	}

	hf := tbl.MatchParameter(regexp.MustCompile(`(?i)^HF\s*\[`))
	if hf.Len() != 2 {
		t.Errorf("expected 2 HF events, got %d", hf.Len())
	}

	if got := len(tbl.Days()); got != 2 {
		t.Errorf("expected 2 distinct days, got %d", got)
	}
}

func TestTable_NumericValuesSkipsText(t *testing.T) {
	tbl := NewTable([]Event{
		{Timestamp: ts(1, 8), Value: Num(1)},
		{Timestamp: ts(1, 9), Value: Text("standby")},
		{Timestamp: ts(1, 10), Value: Num(3)},
	})
	vals, stamps := tbl.NumericValues()
	if len(vals) != 2 || len(stamps) != 2 {
		t.Fatalf("expected 2 numeric values, got %d", len(vals))
	}
	if vals[0] != 1 || vals[1] != 3 {
		t.Errorf("unexpected values: %v", vals)
	}
}
