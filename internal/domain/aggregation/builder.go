package aggregation

import (
	"math"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Built is one assembled instrument record. Payload holds the typed record
// (*LabRecord, *HemodynamicsRecord, *PumpRecord or *ImpellaRecord).
type Built struct {
	Key        RecordKey
	Instrument Instrument
	Payload    any
}

// Builder assembles the daily instrument records for one patient import.
// It fans out over day/instrument pairs; the engine is read-only, so the
// workers share it without coordination.
type Builder struct {
	engine   *Engine
	log      zerolog.Logger
	recordID string
	arm      Arm
	ctx      Context
	bolus    *BolusFilter
	workers  int
}

// NewBuilder wires a builder. When the context carries no weight, the
// patient's weight is resolved from the demographic events so dose
// normalization can run.
func NewBuilder(engine *Engine, recordID string, arm Arm, ctx Context, bolus *BolusFilter, log zerolog.Logger) *Builder {
	if bolus == nil {
		bolus = NewBolusFilter()
	}
	if ctx.WeightKg <= 0 {
		if w, ok := PatientWeight(engine.Table()); ok {
			ctx.WeightKg = w
		}
	}
	return &Builder{
		engine:   engine,
		log:      log,
		recordID: recordID,
		arm:      arm,
		ctx:      ctx,
		bolus:    bolus,
		workers:  runtime.NumCPU(),
	}
}

// BuildAll assembles every instrument record for every day the table
// covers, in day-then-instrument order. Days with no events for an
// instrument still produce a record; absence shows as empty fields, not as
// a missing row.
func (b *Builder) BuildAll() []Built {
	days := b.engine.Days()
	instruments := armInstruments[b.arm]

	type job struct {
		slot       int
		day        time.Time
		dayIndex   int
		instrument Instrument
	}

	jobs := make([]job, 0, len(days)*len(instruments))
	for di, day := range days {
		for _, instrument := range instruments {
			jobs = append(jobs, job{
				slot:       len(jobs),
				day:        day,
				dayIndex:   di,
				instrument: instrument,
			})
		}
	}

	results := make([]Built, len(jobs))
	queue := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < b.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				results[j.slot] = b.build(j.day, j.dayIndex, j.instrument)
			}
		}()
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	return results
}

func (b *Builder) build(day time.Time, dayIndex int, instrument Instrument) Built {
	key := RecordKey{RecordID: b.recordID, Arm: b.arm, DayIndex: dayIndex}
	built := Built{Key: key, Instrument: instrument}
	switch instrument {
	case InstrumentLab:
		built.Payload = b.buildLab(day, dayIndex)
	case InstrumentHemodynamics:
		built.Payload = b.buildHemodynamics(day, dayIndex)
	case InstrumentPump:
		built.Payload = b.buildPump(day, dayIndex)
	case InstrumentImpella:
		built.Payload = b.buildImpella(day, dayIndex)
	}
	return built
}

// value resolves one mapped field into an optional float.
func (b *Builder) value(day time.Time, m FieldMapping) *float64 {
	if v, ok := b.engine.Value(day, m, b.ctx); ok {
		return floatPtr(v)
	}
	return nil
}

// assessTime formats the reference time of day for the assessment fields.
func (b *Builder) assessTime() string {
	if !b.ctx.HasReference {
		return ""
	}
	ref := time.Time{}.Add(b.ctx.Reference)
	return ref.Format("15:04")
}

// combinedSupport reports whether both pump types produced events on the
// day.
func (b *Builder) combinedSupport(day time.Time) bool {
	return b.engine.DevicesPresent(day, "ECMO", "Impella")
}

func (b *Builder) buildLab(day time.Time, dayIndex int) *LabRecord {
	r := &LabRecord{
		RecordID:         b.recordID,
		EventName:        b.arm,
		RepeatInstrument: InstrumentLab,
		RepeatInstance:   dayIndex + 1,
		AssessTimePoint:  dayIndex + 1,
		AssessDate:       day,
		DateAssess:       day,
		TimeAssess:       b.assessTime(),
		ArtSite:          unknownWithdrawalSite,
		NaPost:           1,
		Ecmella:          boolInt(b.combinedSupport(day)),
	}

	fields := map[string]**float64{
		"pc02": &r.Pc02, "p02": &r.P02, "ph": &r.Ph, "hco3": &r.Hco3,
		"be": &r.Be, "sa02": &r.Sa02, "k": &r.K, "na": &r.Na,
		"gluc": &r.Gluc, "lactate": &r.Lactate, "sv02": &r.Sv02,
		"wbc": &r.Wbc, "hb": &r.Hb, "hct": &r.Hct, "plt": &r.Plt,
		"fhb": &r.Fhb, "ptt": &r.Ptt, "quick": &r.Quick, "inr": &r.Inr,
		"act": &r.Act, "ck": &r.Ck, "ckmb": &r.Ckmb, "ggt": &r.Ggt,
		"ldh": &r.Ldh, "lipase": &r.Lipase, "got": &r.Got, "alat": &r.Alat,
		"pct": &r.Pct, "crp": &r.Crp, "bili": &r.Bili, "crea": &r.Crea,
		"urea": &r.Urea, "cc": &r.Cc, "albumin": &r.Albumin, "hapto": &r.Hapto,
	}
	for _, m := range LabFields {
		if dst, ok := fields[m.Field]; ok {
			*dst = b.value(day, m)
		}
	}

	r.Derive()
	return r
}

func (b *Builder) buildHemodynamics(day time.Time, dayIndex int) *HemodynamicsRecord {
	r := &HemodynamicsRecord{
		RecordID:         b.recordID,
		EventName:        b.arm,
		RepeatInstrument: InstrumentHemodynamics,
		RepeatInstance:   dayIndex + 1,
		AssessTimePoint:  dayIndex + 1,
		AssessDate:       day,
		NaPost:           1,
		Ecmella:          boolInt(b.combinedSupport(day)),
	}

	fields := map[string]**float64{
		"hr": &r.Hr, "sys_bp": &r.SysBp, "dia_bp": &r.DiaBp,
		"mean_bp": &r.MeanBp, "cvp": &r.Cvp, "spo2": &r.Spo2,
		"pcwp": &r.Pcwp, "sys_pap": &r.SysPap, "dia_pap": &r.DiaPap,
		"mean_pap": &r.MeanPap, "ci": &r.Ci,
		"nirs_left_c": &r.NirsLeftC, "nirs_right_c": &r.NirsRightC,
		"o2": &r.O2, "fi02": &r.Fi02, "vent_peep": &r.VentPeep,
		"vent_pip": &r.VentPip, "conv_vent_rate": &r.ConvVentRate,
		"gcs": &r.Gcs,
	}
	for _, m := range HemodynamicsFields {
		switch m.Field {
		case "rass":
			if v, ok := b.engine.Value(day, m, b.ctx); ok {
				r.Rass = intPtr(int(math.Round(v)))
			}
		default:
			if dst, ok := fields[m.Field]; ok {
				*dst = b.value(day, m)
			}
		}
	}

	if mode, ok := b.engine.StringValue(day, ventModeMapping); ok {
		if code, known := mapVentMode(mode); known {
			r.VentSpec = intPtr(code)
		} else {
			b.log.Warn().Str("mode", mode).Msg("unmapped ventilation mode")
		}
	}

	doses := map[string]**float64{
		"norepinephrine": &r.Norepinephrine,
		"epinephrine":    &r.Epinephrine,
		"dobutamine":     &r.Dobutamine,
		"milrinone":      &r.Milrinone,
		"vasopressin":    &r.Vasopressin,
	}
	for _, d := range MedicationDrugs {
		dose, ok, needsWeight := b.engine.MedicationDose(day, d.Field, d.Pattern, b.bolus, b.ctx)
		if needsWeight {
			b.log.Warn().Str("drug", d.Field).Msg("dose skipped, no patient weight")
			continue
		}
		if ok {
			*doses[d.Field] = floatPtr(dose)
		}
	}

	r.VasoactiveSpec = b.checklist(day, VasoactiveChecklist)
	r.AntiplateletSp = b.checklist(day, AntiplateletChecklist)
	r.AntibioticSpec = b.checklist(day, AntibioticChecklist)
	// Radio value, not a checkbox set: later checklist entries override
	// earlier ones when several anticoagulants ran on the same day.
	for _, entry := range AnticoagulantChecklist {
		if b.engine.DrugPresent(day, entry.Pattern, b.bolus) {
			r.IvAcSpec = intPtr(entry.ID)
		}
	}
	r.NutritionSpec = map[int]bool{1: b.engine.EnteralNutrition(day)}

	for _, m := range TransfusionFields {
		n := b.engine.Count(day, m)
		if n == 0 {
			continue
		}
		switch m.Field {
		case "ery_t":
			r.EryT = intPtr(n)
		case "thromb_t":
			r.ThrombT = intPtr(n)
		case "ffp_t":
			r.FfpT = intPtr(n)
		}
	}

	r.Derive()
	return r
}

func (b *Builder) checklist(day time.Time, entries []ChecklistEntry) map[int]bool {
	checked := make(map[int]bool, len(entries))
	for _, entry := range entries {
		checked[entry.ID] = b.engine.DrugPresent(day, entry.Pattern, b.bolus)
	}
	return checked
}

func (b *Builder) buildPump(day time.Time, dayIndex int) *PumpRecord {
	r := &PumpRecord{
		RecordID:         b.recordID,
		EventName:        b.arm,
		RepeatInstrument: InstrumentPump,
		RepeatInstance:   dayIndex + 1,
		TimePoint:        dayIndex + 1,
		Date:             day,
		NoComplication:   1,
	}
	for _, m := range PumpFields {
		switch m.Field {
		case "ecls_rpm":
			r.EclsRpm = b.value(day, m)
		case "ecls_pf":
			r.EclsPf = b.value(day, m)
		case "ecls_gf":
			r.EclsGf = b.value(day, m)
		case "ecls_fi02":
			r.EclsFi02 = b.value(day, m)
		}
	}
	return r
}

func (b *Builder) buildImpella(day time.Time, dayIndex int) *ImpellaRecord {
	r := &ImpellaRecord{
		RecordID:         b.recordID,
		EventName:        b.arm,
		RepeatInstrument: InstrumentImpella,
		RepeatInstance:   dayIndex + 1,
		TimePoint:        dayIndex + 1,
		Date:             day,
	}
	for _, m := range ImpellaFields {
		switch m.Field {
		case "imp_flow":
			r.ImpFlow = b.value(day, m)
		case "imp_purge_flow":
			r.ImpPurgeFlow = b.value(day, m)
		case "imp_purge_pressure":
			r.ImpPurgePressure = b.value(day, m)
		}
	}
	if label, ok := b.engine.StringValue(day, pLevelMapping); ok {
		if m := pLevelValue.FindStringSubmatch(label); m != nil {
			if level, err := strconv.Atoi(m[1]); err == nil {
				r.ImpPLevel = intPtr(level)
			}
		}
	}
	return r
}
