package aggregation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/felixsiegmeier/redcap-mcs/internal/domain/event"
)

// The chart records pump settings in ml/h while the registry expects
// µg/kg/min, so rates are normalized against the syringe concentration and
// the patient's weight. Concentration is read from the perfusor label text
// ("Norepinephrin Perfusor 5 mg / 50 ml") or the administration's
// concentration column; when both carry none, a per-substance standard
// dilution applies.
var (
	concentrationRatio  = regexp.MustCompile(`(?i)(\d+(?:[,.]\d+)?)\s*mg\s*/\s*(\d+)\s*ml`)
	concentrationDirect = regexp.MustCompile(`(?i)(\d+(?:[,.]\d+)?)\s*mg/ml`)

	weightParameter = regexp.MustCompile(`(?i)^Gewicht(?:\s*/\s*kg)?$`)
)

// weightSources are the source types that may carry the body weight.
var weightSources = []string{"PatientInfo", "Grösse/Gewicht"}

// DefaultConcentrations is the fallback table in µg/ml.
var DefaultConcentrations = map[string]float64{
	"norepinephrine": 100,  // 5 mg / 50 ml
	"epinephrine":    200,  // 10 mg / 50 ml
	"dobutamine":     5000, // 250 mg / 50 ml
	"milrinone":      200,  // 10 mg / 50 ml
}

// dobutamineConcentration overrides the label concentration: the stock
// solution is diluted to 250 mg / 50 ml before infusion, so the printed
// mg/ml figure does not describe what runs through the pump.
const dobutamineConcentration = 5000.0

// Weight plausibility window in kg; values outside are parsing artifacts.
const (
	weightMinKg = 20
	weightMaxKg = 300
)

// BolusFilter identifies single-dose formulations that must not enter rate
// aggregation. Markers are substring matches, case-insensitive. The default
// set covers the pre-filled-syringe conventions of the source system; it is
// configurable because the naming is a convention, not a guarantee.
type BolusFilter struct {
	markers []string
}

// NewBolusFilter builds a filter; with no markers the default set applies.
func NewBolusFilter(markers ...string) *BolusFilter {
	if len(markers) == 0 {
		markers = []string{"(FER)", "Fertigspritze"}
	}
	lowered := make([]string, len(markers))
	for i, m := range markers {
		lowered[i] = strings.ToLower(m)
	}
	return &BolusFilter{markers: lowered}
}

func (f *BolusFilter) IsBolus(parameter string) bool {
	p := strings.ToLower(parameter)
	for _, m := range f.markers {
		if strings.Contains(p, m) {
			return true
		}
	}
	return false
}

// ParseConcentration extracts the concentration in µg/ml from a perfusor
// label. The ratio form "5 mg / 50 ml" wins over the direct "5mg/ml" form.
func ParseConcentration(label, field string) (float64, bool) {
	if m := concentrationRatio.FindStringSubmatch(label); m != nil {
		mg, err1 := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		ml, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && ml > 0 {
			return mg * 1000 / ml, true
		}
	}
	if m := concentrationDirect.FindStringSubmatch(label); m != nil {
		if field == "dobutamine" {
			return dobutamineConcentration, true
		}
		mgPerMl, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			return mgPerMl * 1000, true
		}
	}
	return 0, false
}

// PatientWeight finds the patient's weight in the demographic events,
// rejecting values outside the plausibility window.
func PatientWeight(table *event.Table) (float64, bool) {
	for _, source := range weightSources {
		candidates := table.SourceTypeContains(source).MatchParameter(weightParameter)
		for _, ev := range candidates.Events() {
			w, ok := ev.Value.Float()
			if !ok {
				continue
			}
			if w > weightMinKg && w < weightMaxKg {
				return w, true
			}
		}
	}
	return 0, false
}

// MedicationDose computes the day's representative dose for one drug.
// Bolus formulations are excluded; the median rate in ml/h of the remaining
// administrations is converted to µg/kg/min. Vasopressin runs at 1 IU/ml, so
// its rate passes through as IU/h. Without a resolvable weight the
// conversion fails closed and reports needsWeight so callers can warn.
func (e *Engine) MedicationDose(day time.Time, field string, p DrugPattern, bolus *BolusFilter, ctx Context) (dose float64, ok bool, needsWeight bool) {
	var (
		rates  []float64
		labels []string
	)
	for _, ev := range e.medicationDay(day).Events() {
		if !p.MatchString(ev.Parameter) {
			continue
		}
		if bolus.IsBolus(ev.Parameter) {
			continue
		}
		labels = append(labels, ev.Parameter)
		if ev.Concentration != "" {
			labels = append(labels, ev.Concentration)
		}
		if ev.Rate != nil {
			rates = append(rates, *ev.Rate)
		} else if f, isNum := ev.Value.Float(); isNum {
			rates = append(rates, f)
		}
	}
	if len(rates) == 0 {
		return 0, false, false
	}
	rateMlH := median(rates)

	if field == "vasopressin" {
		return round2(rateMlH), true, false
	}

	conc, found := concentrationFromLabels(labels, field)
	if !found {
		conc, found = DefaultConcentrations[field]
		if !found {
			return 0, false, false
		}
	}

	if ctx.WeightKg <= 0 {
		return 0, false, true
	}
	return round4(rateMlH * conc / (60 * ctx.WeightKg)), true, false
}

func concentrationFromLabels(labels []string, field string) (float64, bool) {
	for _, label := range labels {
		if c, ok := ParseConcentration(label, field); ok {
			return c, true
		}
	}
	return 0, false
}
