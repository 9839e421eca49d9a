package aggregation

import "time"

// Instrument names the clinical form a record feeds.
type Instrument string

const (
	InstrumentLab          Instrument = "labor"
	InstrumentHemodynamics Instrument = "hemodynamics_ventilation_medication"
	InstrumentPump         Instrument = "pump"
	InstrumentImpella      Instrument = "impellaassessment_and_complications"
)

// Arm names the treatment pathway gating which instruments apply.
type Arm string

const (
	ArmECLS    Arm = "ecls_arm_2"
	ArmImpella Arm = "impella_arm_2"
)

// armInstruments lists the instruments each arm collects, in export order.
var armInstruments = map[Arm][]Instrument{
	ArmECLS:    {InstrumentLab, InstrumentHemodynamics, InstrumentPump},
	ArmImpella: {InstrumentLab, InstrumentHemodynamics, InstrumentImpella},
}

// RecordKey identifies one record in the registry.
type RecordKey struct {
	RecordID string `json:"record_id"`
	Arm      Arm    `json:"arm"`
	DayIndex int    `json:"day_index"`
}

// unknownWithdrawalSite is the default arterial sampling site code.
const unknownWithdrawalSite = 7

// LabRecord is the daily laboratory instrument. The json tags serve
// persistence round-trips; the redcap tags drive registry serialization.
type LabRecord struct {
	RecordID         string     `json:"record_id" redcap:"record_id"`
	EventName        Arm        `json:"redcap_event_name" redcap:"redcap_event_name"`
	RepeatInstrument Instrument `json:"redcap_repeat_instrument" redcap:"redcap_repeat_instrument"`
	RepeatInstance   int        `json:"redcap_repeat_instance" redcap:"redcap_repeat_instance"`

	AssessTimePoint int       `json:"assess_time_point_labor" redcap:"assess_time_point_labor"`
	AssessDate      time.Time `json:"assess_date_labor" redcap:"assess_date_labor"`
	DateAssess      time.Time `json:"date_assess_labor" redcap:"date_assess_labor"`
	TimeAssess      string    `json:"time_assess_labor,omitempty" redcap:"time_assess_labor"`
	ArtSite         int       `json:"art_site" redcap:"art_site"`
	NaPost          int       `json:"na_post_2" redcap:"na_post_2"`
	Ecmella         int       `json:"ecmella_2" redcap:"ecmella_2"`

	// Arterial blood gas
	Pc02    *float64 `json:"pc02,omitempty" redcap:"pc02"`
	P02     *float64 `json:"p02,omitempty" redcap:"p02"`
	Ph      *float64 `json:"ph,omitempty" redcap:"ph"`
	Hco3    *float64 `json:"hco3,omitempty" redcap:"hco3"`
	Be      *float64 `json:"be,omitempty" redcap:"be"`
	Sa02    *float64 `json:"sa02,omitempty" redcap:"sa02"`
	K       *float64 `json:"k,omitempty" redcap:"k"`
	Na      *float64 `json:"na,omitempty" redcap:"na"`
	Gluc    *float64 `json:"gluc,omitempty" redcap:"gluc"`
	Lactate *float64 `json:"lactate,omitempty" redcap:"lactate"`
	Sv02    *float64 `json:"sv02,omitempty" redcap:"sv02"`

	// Hematology and coagulation
	Wbc   *float64 `json:"wbc,omitempty" redcap:"wbc"`
	Hb    *float64 `json:"hb,omitempty" redcap:"hb"`
	Hct   *float64 `json:"hct,omitempty" redcap:"hct"`
	Plt   *float64 `json:"plt,omitempty" redcap:"plt"`
	Fhb   *float64 `json:"fhb,omitempty" redcap:"fhb"`
	Ptt   *float64 `json:"ptt,omitempty" redcap:"ptt"`
	Quick *float64 `json:"quick,omitempty" redcap:"quick"`
	Inr   *float64 `json:"inr,omitempty" redcap:"inr"`
	Act   *float64 `json:"act,omitempty" redcap:"act"`

	// Organ panels
	Ck      *float64 `json:"ck,omitempty" redcap:"ck"`
	Ckmb    *float64 `json:"ckmb,omitempty" redcap:"ckmb"`
	Ggt     *float64 `json:"ggt,omitempty" redcap:"ggt"`
	Ldh     *float64 `json:"ldh,omitempty" redcap:"ldh"`
	Lipase  *float64 `json:"lipase,omitempty" redcap:"lipase"`
	Got     *float64 `json:"got,omitempty" redcap:"got"`
	Alat    *float64 `json:"alat,omitempty" redcap:"alat"`
	Pct     *float64 `json:"pct,omitempty" redcap:"pct"`
	Crp     *float64 `json:"crp,omitempty" redcap:"crp"`
	Bili    *float64 `json:"bili,omitempty" redcap:"bili"`
	Crea    *float64 `json:"crea,omitempty" redcap:"crea"`
	Urea    *float64 `json:"urea,omitempty" redcap:"urea"`
	Cc      *float64 `json:"cc,omitempty" redcap:"cc"`
	Albumin *float64 `json:"albumin,omitempty" redcap:"albumin"`
	Hapto   *float64 `json:"hapto,omitempty" redcap:"hapto"`

	// Derived
	CrpMgdl   *float64 `json:"crp_mgdl,omitempty" redcap:"crp_mgdl"`
	PostPct   int      `json:"post_pct" redcap:"post_pct"`
	PostCrp   int      `json:"post_crp" redcap:"post_crp"`
	PostAct   int      `json:"post_act" redcap:"post_act"`
	Hemolysis int      `json:"hemolysis" redcap:"hemolysis"`

	Complete int `json:"labor_complete" redcap:"labor_complete"`
}

// Derive recomputes the lab record's derived fields from its primary
// fields. The source reports CRP in mg/L; the registry wants mg/dL, so the
// rescaled value lives in its own field and the primary stays untouched,
// keeping the pass idempotent.
func (r *LabRecord) Derive() {
	r.PostPct = boolInt(r.Pct != nil)
	r.PostCrp = boolInt(r.Crp != nil)
	r.PostAct = boolInt(r.Act != nil)
	r.Hemolysis = boolInt(r.Fhb != nil || r.Hapto != nil || r.Bili != nil)

	if r.Crp != nil {
		v := round2(*r.Crp / 10)
		r.CrpMgdl = &v
	} else {
		r.CrpMgdl = nil
	}
}

// HemodynamicsRecord is the daily hemodynamics/ventilation/medication
// instrument; it exists in both arms.
type HemodynamicsRecord struct {
	RecordID         string     `json:"record_id" redcap:"record_id"`
	EventName        Arm        `json:"redcap_event_name" redcap:"redcap_event_name"`
	RepeatInstrument Instrument `json:"redcap_repeat_instrument" redcap:"redcap_repeat_instrument"`
	RepeatInstance   int        `json:"redcap_repeat_instance" redcap:"redcap_repeat_instance"`

	AssessTimePoint int       `json:"assess_time_point" redcap:"assess_time_point"`
	AssessDate      time.Time `json:"assess_date_hemo" redcap:"assess_date_hemo"`
	NaPost          int       `json:"na_post" redcap:"na_post"`
	Ecmella         int       `json:"ecmella" redcap:"ecmella"`

	// Hemodynamics
	Hr     *float64 `json:"hr,omitempty" redcap:"hr"`
	SysBp  *float64 `json:"sys_bp,omitempty" redcap:"sys_bp"`
	DiaBp  *float64 `json:"dia_bp,omitempty" redcap:"dia_bp"`
	MeanBp *float64 `json:"mean_bp,omitempty" redcap:"mean_bp"`
	Cvp    *float64 `json:"cvp,omitempty" redcap:"cvp"`
	Spo2   *float64 `json:"spo2,omitempty" redcap:"spo2"`

	// Pulmonary artery catheter
	Pac     int      `json:"pac" redcap:"pac"`
	Pcwp    *float64 `json:"pcwp,omitempty" redcap:"pcwp"`
	SysPap  *float64 `json:"sys_pap,omitempty" redcap:"sys_pap"`
	DiaPap  *float64 `json:"dia_pap,omitempty" redcap:"dia_pap"`
	MeanPap *float64 `json:"mean_pap,omitempty" redcap:"mean_pap"`
	Ci      *float64 `json:"ci,omitempty" redcap:"ci"`

	// NIRS
	NirsAvail  int      `json:"nirs_avail" redcap:"nirs_avail"`
	NirsLeftC  *float64 `json:"nirs_left_c,omitempty" redcap:"nirs_left_c"`
	NirsRightC *float64 `json:"nirs_right_c,omitempty" redcap:"nirs_right_c"`
	NirsLeftF  *float64 `json:"nirs_left_f,omitempty" redcap:"nirs_left_f"`
	NirsRightF *float64 `json:"nirs_right_f,omitempty" redcap:"nirs_right_f"`

	// Vasoactive medication, doses in µg/kg/min (vasopressin IU/h)
	VasoactiveMed  int          `json:"vasoactive_med" redcap:"vasoactive_med"`
	VasoactiveSpec map[int]bool `json:"vasoactive_spec,omitempty" redcap:"vasoactive_spec,checkbox"`
	Dobutamine     *float64     `json:"dobutamine,omitempty" redcap:"dobutamine"`
	Epinephrine    *float64     `json:"epinephrine,omitempty" redcap:"epinephrine"`
	Norepinephrine *float64     `json:"norepinephrine,omitempty" redcap:"norepinephrine"`
	Vasopressin    *float64     `json:"vasopressin,omitempty" redcap:"vasopressin"`
	Milrinone      *float64     `json:"milrinone,omitempty" redcap:"milrinone"`

	// Anticoagulation and co-medication
	IvAcSpec        *int         `json:"iv_ac_spec,omitempty" redcap:"iv_ac_spec"`
	AntiplateletSp  map[int]bool `json:"antiplat_therapy_spec,omitempty" redcap:"antiplat_therapy_spec,checkbox"`
	AntibioticSpec  map[int]bool `json:"antibiotic_spec,omitempty" redcap:"antibiotic_spec,checkbox"`
	NutritionSpec   map[int]bool `json:"nutrition_spec,omitempty" redcap:"nutrition_spec,checkbox"`

	// Ventilation
	Vent         int      `json:"vent" redcap:"vent"`
	VentSpec     *int     `json:"vent_spec,omitempty" redcap:"vent_spec"`
	O2           *float64 `json:"o2,omitempty" redcap:"o2"`
	Fi02         *float64 `json:"fi02,omitempty" redcap:"fi02"`
	VentPeep     *float64 `json:"vent_peep,omitempty" redcap:"vent_peep"`
	VentPip      *float64 `json:"vent_pip,omitempty" redcap:"vent_pip"`
	ConvVentRate *float64 `json:"conv_vent_rate,omitempty" redcap:"conv_vent_rate"`

	// Neurology
	Rass *int     `json:"rass,omitempty" redcap:"rass"`
	Gcs  *float64 `json:"gcs,omitempty" redcap:"gcs"`

	// Transfusions, units per day
	EryT    *int `json:"ery_t,omitempty" redcap:"ery_t"`
	ThrombT *int `json:"thromb_t,omitempty" redcap:"thromb_t"`
	FfpT    *int `json:"ffp_t,omitempty" redcap:"ffp_t"`

	Complete int `json:"hemodynamics_ventilation_medication_complete" redcap:"hemodynamics_ventilation_medication_complete"`
}

// Derive recomputes presence flags from the current primary fields.
func (r *HemodynamicsRecord) Derive() {
	r.Pac = boolInt(r.Pcwp != nil || r.SysPap != nil || r.DiaPap != nil ||
		r.MeanPap != nil || r.Ci != nil)
	r.NirsAvail = boolInt(r.NirsLeftC != nil || r.NirsRightC != nil ||
		r.NirsLeftF != nil || r.NirsRightF != nil)
	r.VasoactiveMed = boolInt(positive(r.Dobutamine) || positive(r.Epinephrine) ||
		positive(r.Norepinephrine) || positive(r.Milrinone) || positive(r.Vasopressin))
	r.Vent = boolInt(r.Fi02 != nil || r.VentPeep != nil || r.VentPip != nil)
}

// PumpRecord is the daily ECMO pump instrument; ECLS arm only.
type PumpRecord struct {
	RecordID         string     `json:"record_id" redcap:"record_id"`
	EventName        Arm        `json:"redcap_event_name" redcap:"redcap_event_name"`
	RepeatInstrument Instrument `json:"redcap_repeat_instrument" redcap:"redcap_repeat_instrument"`
	RepeatInstance   int        `json:"redcap_repeat_instance" redcap:"redcap_repeat_instance"`

	TimePoint      int       `json:"ecls_compl_time_point" redcap:"ecls_compl_time_point"`
	Date           time.Time `json:"ecls_compl_date" redcap:"ecls_compl_date"`
	NoComplication int       `json:"ecls_compl_na" redcap:"ecls_compl_na"`

	EclsRpm  *float64 `json:"ecls_rpm,omitempty" redcap:"ecls_rpm"`
	EclsPf   *float64 `json:"ecls_pf,omitempty" redcap:"ecls_pf"`
	EclsGf   *float64 `json:"ecls_gf,omitempty" redcap:"ecls_gf"`
	EclsFi02 *float64 `json:"ecls_fi02,omitempty" redcap:"ecls_fi02"`
}

// ImpellaRecord is the daily Impella assessment instrument; Impella arm
// only.
type ImpellaRecord struct {
	RecordID         string     `json:"record_id" redcap:"record_id"`
	EventName        Arm        `json:"redcap_event_name" redcap:"redcap_event_name"`
	RepeatInstrument Instrument `json:"redcap_repeat_instrument" redcap:"redcap_repeat_instrument"`
	RepeatInstance   int        `json:"redcap_repeat_instance" redcap:"redcap_repeat_instance"`

	TimePoint int       `json:"imp_compl_time_point" redcap:"imp_compl_time_point"`
	Date      time.Time `json:"imp_compl_date" redcap:"imp_compl_date"`

	ImpFlow          *float64 `json:"imp_flow,omitempty" redcap:"imp_flow"`
	ImpPurgeFlow     *float64 `json:"imp_purge_flow,omitempty" redcap:"imp_purge_flow"`
	ImpPurgePressure *float64 `json:"imp_purge_pressure,omitempty" redcap:"imp_purge_pressure"`
	ImpPLevel        *int     `json:"imp_p_level,omitempty" redcap:"imp_p_level"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func positive(v *float64) bool { return v != nil && *v > 0 }

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
