package aggregation

import (
	"errors"
	"testing"
	"time"
)

func stampsAt(day time.Time, clocks ...string) []time.Time {
	out := make([]time.Time, len(clocks))
	for i, c := range clocks {
		d, err := ParseClock(c)
		if err != nil {
			panic(err)
		}
		out[i] = day.Add(d)
	}
	return out
}

func TestSelectMedian(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	values := []float64{1, 2, 3, 100}
	stamps := stampsAt(day, "06:00", "08:00", "10:00", "12:00")

	v, ok, err := Select(values, stamps, Context{Strategy: StrategyMedian})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected a value")
	}
	if v != 2.5 {
		t.Errorf("median = %v, want 2.5", v)
	}
}

func TestSelectMedianOdd(t *testing.T) {
	v, ok, err := Select([]float64{7, 1, 3}, nil, Context{})
	if err != nil || !ok {
		t.Fatalf("Select = (%v, %v, %v)", v, ok, err)
	}
	if v != 3 {
		t.Errorf("median = %v, want 3", v)
	}
}

func TestSelectDefaultsToMedian(t *testing.T) {
	v, ok, err := Select([]float64{2, 4}, nil, Context{})
	if err != nil || !ok {
		t.Fatalf("Select = (%v, %v, %v)", v, ok, err)
	}
	if v != 3 {
		t.Errorf("default strategy = %v, want 3", v)
	}
}

func TestSelectMeanFirstLast(t *testing.T) {
	values := []float64{2, 4, 9}

	if v, _, _ := Select(values, nil, Context{Strategy: StrategyMean}); v != 5 {
		t.Errorf("mean = %v, want 5", v)
	}
	if v, _, _ := Select(values, nil, Context{Strategy: StrategyFirst}); v != 2 {
		t.Errorf("first = %v, want 2", v)
	}
	if v, _, _ := Select(values, nil, Context{Strategy: StrategyLast}); v != 9 {
		t.Errorf("last = %v, want 9", v)
	}
}

func TestSelectNearest(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	ref, _ := ParseClock("12:00")
	ctx := Context{Strategy: StrategyNearest, Reference: ref, HasReference: true}

	v, ok, err := Select([]float64{5, 9}, stampsAt(day, "10:00", "13:00"), ctx)
	if err != nil || !ok {
		t.Fatalf("Select = (%v, %v, %v)", v, ok, err)
	}
	if v != 9 {
		t.Errorf("nearest = %v, want 9", v)
	}
}

func TestSelectNearestTieKeepsEarliest(t *testing.T) {
	day := time.Date(2023, 4, 12, 0, 0, 0, 0, time.UTC)
	ref, _ := ParseClock("12:00")
	ctx := Context{Strategy: StrategyNearest, Reference: ref, HasReference: true}

	v, _, err := Select([]float64{5, 9}, stampsAt(day, "11:00", "13:00"), ctx)
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if v != 5 {
		t.Errorf("tie = %v, want earliest value 5", v)
	}
}

func TestSelectNearestWithoutReference(t *testing.T) {
	_, _, err := Select([]float64{1}, []time.Time{time.Now()}, Context{Strategy: StrategyNearest})
	if !errors.Is(err, ErrMissingReference) {
		t.Errorf("err = %v, want ErrMissingReference", err)
	}
}

func TestSelectUnknownStrategy(t *testing.T) {
	_, _, err := Select([]float64{1}, nil, Context{Strategy: "mode"})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestSelectEmptyInput(t *testing.T) {
	v, ok, err := Select(nil, nil, Context{Strategy: StrategyMedian})
	if err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if ok || v != 0 {
		t.Errorf("empty input = (%v, %v), want (0, false)", v, ok)
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock returned error: %v", err)
	}
	if want := 9*time.Hour + 30*time.Minute; d != want {
		t.Errorf("ParseClock = %v, want %v", d, want)
	}

	for _, bad := range []string{"930", "24:00", "12:60", "ab:cd", ""} {
		if _, err := ParseClock(bad); !errors.Is(err, ErrInvalidClockFormat) {
			t.Errorf("ParseClock(%q) err = %v, want ErrInvalidClockFormat", bad, err)
		}
	}
}
