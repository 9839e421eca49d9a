package aggregation

import (
	"regexp"
	"strings"
)

// FieldMapping binds one record field to the events that feed it: a source
// type, a category pattern and a parameter pattern. Patterns match
// case-insensitively anywhere in the string; a nil Category means "any".
type FieldMapping struct {
	Field     string
	Source    string
	Category  *regexp.Regexp
	Parameter *regexp.Regexp
}

// re compiles a case-insensitive search pattern.
func re(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

func mapping(field, source, category, parameter string) FieldMapping {
	m := FieldMapping{Field: field, Source: source, Parameter: re(parameter)}
	if category != ".*" {
		m.Category = re(category)
	}
	return m
}

// DrugPattern matches a drug by name. Exclude guards against prefix
// collisions ("Epinephrin" must not hit inside "Norepinephrin"): each
// occurrence is tested on its own, so a label naming both drugs still
// counts as a match for the standalone one.
type DrugPattern struct {
	Match   *regexp.Regexp
	Exclude *regexp.Regexp
}

func (p DrugPattern) MatchString(s string) bool {
	if p.Exclude == nil {
		return p.Match.MatchString(s)
	}
	excluded := p.Exclude.FindAllStringIndex(s, -1)
	for _, span := range p.Match.FindAllStringIndex(s, -1) {
		if !insideAny(span, excluded) {
			return true
		}
	}
	return false
}

func insideAny(span []int, outer [][]int) bool {
	for _, o := range outer {
		if span[0] >= o[0] && span[1] <= o[1] {
			return true
		}
	}
	return false
}

func drug(match string) DrugPattern {
	return DrugPattern{Match: re(match)}
}

func drugExcl(match, exclude string) DrugPattern {
	return DrugPattern{Match: re(match), Exclude: re(exclude)}
}

// LabFields feeds the laboratory instrument. Declaration order is the
// record population order.
var LabFields = []FieldMapping{
	mapping("pc02", "Lab", "Blutgase arteriell", `^PCO2`),
	mapping("p02", "Lab", "Blutgase arteriell", `^PO2`),
	mapping("ph", "Lab", "Blutgase arteriell", `^PH$|^PH `),
	mapping("hco3", "Lab", "Blutgase arteriell", `^HCO3`),
	mapping("be", "Lab", "Blutgase arteriell", `^ABEc`),
	mapping("sa02", "Lab", "Blutgase arteriell", `^O2-SAETTIGUNG`),
	mapping("k", "Lab", "Blutgase arteriell", `^KALIUM`),
	mapping("na", "Lab", "Blutgase arteriell", `^NATRIUM`),
	mapping("gluc", "Lab", "Blutgase arteriell", `^GLUCOSE`),
	mapping("lactate", "Lab", "Blutgase arteriell", `^LACTAT`),
	mapping("sv02", "Lab", "Blutgase venös", `^O2-SAETTIGUNG`),
	mapping("wbc", "Lab", "Blutbild", `^WBC`),
	mapping("hb", "Lab", "Blutbild", `^HB \(HGB\)|^HB\b`),
	mapping("hct", "Lab", "Blutbild", `^HCT`),
	mapping("plt", "Lab", "Blutbild", `^PLT`),
	mapping("fhb", "Lab", "Blutbild|Klinische Chemie", `^FREIES HB`),
	mapping("ptt", "Lab", "Gerinnung", `^PTT`),
	mapping("quick", "Lab", "Gerinnung", `^TPZ`),
	mapping("inr", "Lab", "Gerinnung", `^INR`),
	mapping("act", "ACT", ".*", `^ACT`),
	mapping("ck", "Lab", "Enzyme", `^CK \[|^CK$`),
	mapping("ckmb", "Lab", "Enzyme", `^CK-MB`),
	mapping("ggt", "Lab", "Enzyme", `^GGT`),
	mapping("ldh", "Lab", "Enzyme", `^LDH`),
	mapping("lipase", "Lab", "Enzyme", `^LIPASE`),
	mapping("got", "Lab", "Enzyme", `^GOT`),
	mapping("alat", "Lab", "Enzyme", `^GPT`),
	mapping("pct", "Lab", "Klinische Chemie|Proteine", `^PROCALCITONIN`),
	mapping("crp", "Lab", "Klinische Chemie|Proteine", `^CRP`),
	mapping("bili", "Lab", "Klinische Chemie", `^BILI`),
	mapping("crea", "Lab", "Klinische Chemie|Retention", `^KREATININ`),
	mapping("urea", "Lab", "Klinische Chemie|Retention", `^HARNSTOFF`),
	mapping("cc", "Lab", "Klinische Chemie|Retention", `^GFRKREA`),
	mapping("albumin", "Lab", "Klinische Chemie|Proteine", `^ALBUMIN`),
	mapping("hapto", "Lab", "Klinische Chemie|Proteine", `^HAPTOGLOBIN`),
}

// HemodynamicsFields feeds the hemodynamics/ventilation instrument.
var HemodynamicsFields = []FieldMapping{
	mapping("hr", "Vitals", ".*", `^HF\s*\[`),
	mapping("sys_bp", "Vitals", ".*", `^ABPs\s*\[|^ARTs\s*\[`),
	mapping("dia_bp", "Vitals", ".*", `^ABPd\s*\[|^ARTd\s*\[`),
	mapping("mean_bp", "Vitals", ".*", `^ABPm\s*\[|^ARTm\s*\[`),
	mapping("cvp", "Vitals", ".*", `^ZVDm\s*\[`),
	mapping("pcwp", "Vitals", `^Online.*`, `^PCWP\s*\[|^PAWP\s*\[`),
	mapping("sys_pap", "Vitals", `^Online.*`, `^PAPs\s*\[`),
	mapping("dia_pap", "Vitals", `^Online.*`, `^PAPd\s*\[`),
	mapping("mean_pap", "Vitals", `^Online.*`, `^PAPm\s*\[`),
	mapping("ci", "Vitals", `^Online.*`, `^CCI\s*\[|^HZV`),
	mapping("nirs_left_c", "Vitals", ".*", `NIRS Channel 1 RSO2|NIRS.*Channel.*1`),
	mapping("nirs_right_c", "Vitals", ".*", `NIRS Channel 2 RSO2|NIRS.*Channel.*2`),
	mapping("spo2", "Vitals", ".*", `^SpO2\s*\[%\]`),
	mapping("fi02", "Respiratory", ".*", `^FiO2\s*\[%\]`),
	mapping("o2", "O2 Gabe", ".*", `^O2\s*l/min`),
	mapping("vent_peep", "Respiratory", ".*", `^PEEP\s*\[`),
	mapping("vent_pip", "Respiratory", ".*", `^Ppeak\s*\[|^insp.*Spitzendruck`),
	mapping("conv_vent_rate", "Respiratory", ".*", `mand.*Atemfrequenz|^mand\. Atemfrequenz`),
	mapping("rass", "Richmond", ".*", `^Summe Richmond-Agitation-Sedation`),
	mapping("gcs", "GCS", ".*", `^Summe GCS2`),
}

// ventModeAliases folds the ventilator's mode spellings (upper-cased,
// hyphens and spaces replaced by underscores) onto normalized mode labels.
// An empty label means the mode is deliberately ignored.
var ventModeAliases = map[string]string{
	"CPAP":        "SPN_CPAP_PS",
	"CPAP_PS":     "CPAP_PS",
	"SPN_CPAP":    "SPN_CPAP_PS",
	"SPN_CPAP_PS": "SPN_CPAP_PS",
	"BILEVEL":     "BiLevel",
	"BI_LEVEL":    "BiLevel",
	"BILEVEL_VG":  "BiLevel_VG",
	"BIPAP":       "BIPAP",
	"PC_BIPAP":    "PC_BIPAP",
	"SIMV":        "SIMV",
	"SIMV_PC":     "SIMV_PC",
	"SIMV_VC":     "SIMV_VC",
	"PC_SIMV":     "PC_SIMV",
	"VC_SIMV":     "VC_SIMV",
	"A_C_VC":      "A_C_VC",
	"A_C_PC":      "A_C_PC",
	"A_C_PRVC":    "A_C_PRVC",
	"AC_VC":       "A_C_VC",
	"AC_PC":       "A_C_PC",
	"PC_CMV":      "PC_CMV",
	"PC_PSV":      "PC_PSV",
	"PC_AC":       "PC_AC",
	"PC_PC_APRV":  "PC_PC_APRV",
	"APRV":        "PC_PC_APRV",
	"IPPV":        "IPPV",
	"VC_CMV":      "VC_CMV",
	"VC_AC":       "VC_AC",
	"VC_MMV":      "VC_MMV",
	"SPONTANEOUS": "SPN_CPAP_PS",
	"SPONT":       "SPN_CPAP_PS",
	"ASB":         "ASB",
	"NIV":         "NIV",
	"SBT":         "SBT",
	"STANDBY":     "",
}

// ventModeCodes assigns the registry's stable integer code per mode.
var ventModeCodes = map[string]int{
	"SPN_CPAP_PS": 1,
	"CPAP_PS":     2,
	"BiLevel":     3,
	"BiLevel_VG":  4,
	"BIPAP":       5,
	"PC_BIPAP":    6,
	"SIMV":        7,
	"SIMV_PC":     8,
	"SIMV_VC":     9,
	"PC_SIMV":     10,
	"VC_SIMV":     11,
	"A_C_VC":      12,
	"A_C_PC":      13,
	"A_C_PRVC":    14,
	"PC_CMV":      15,
	"PC_PSV":      16,
	"PC_AC":       17,
	"PC_PC_APRV":  18,
	"IPPV":        19,
	"VC_CMV":      20,
	"VC_AC":       21,
	"VC_MMV":      22,
	"ASB":         23,
	"NIV":         24,
	"SBT":         25,
}

// DrugField binds one dosed medication field to its name pattern.
type DrugField struct {
	Field   string
	Pattern DrugPattern
}

// MedicationDrugs are the continuously infused drugs whose rate is
// normalized to µg/kg/min (vasopressin excepted, see dose.go).
var MedicationDrugs = []DrugField{
	{"norepinephrine", drugExcl(`Norepinephrin|^Arterenol`, `oNorepinephrin`)},
	{"epinephrine", drugExcl(`Epinephrin|^Suprarenin`, `NorEpinephrin|Norepinephrin`)},
	{"dobutamine", drug(`Dobutamin`)},
	{"milrinone", drug(`Milrinone|Corotrop`)},
	{"vasopressin", drug(`Vasopressin|Empressin`)},
}

// ChecklistEntry binds one registry checkbox id to a drug-name pattern.
type ChecklistEntry struct {
	ID      int
	Pattern DrugPattern
}

// VasoactiveChecklist drives the vasoactive_spec checkboxes.
var VasoactiveChecklist = []ChecklistEntry{
	{1, drug(`Dobutamin`)},
	{2, drug(`Dopamin`)},
	{3, drug(`Enoximon`)},
	{4, drugExcl(`Epinephrin|^Suprarenin`, `NorEpinephrin|Norepinephrin`)},
	{5, drug(`Esmolol`)},
	{6, drug(`Levosimendan|Simdax`)},
	{7, drug(`Metaraminol|Aramino`)},
	{8, drug(`Metoprolol|Beloc`)},
	{9, drug(`Milrinone|Corotrop`)},
	{10, drug(`Nicardipin`)},
	{11, drug(`Nitroglycerin|Nitro`)},
	{12, drug(`Nitroprussid`)},
	{13, drugExcl(`Norepinephrin|^Arterenol`, `oNorepinephrin`)},
	{14, drug(`Phenylephrin`)},
	{15, drug(`Tolazolin`)},
	{16, drug(`Vasopressin|Empressin`)},
}

// AnticoagulantChecklist drives the iv_ac_spec radio value.
var AnticoagulantChecklist = []ChecklistEntry{
	{1, drug(`Heparin`)},
	{2, drug(`Argatroban|Argatra`)},
}

// AntiplateletChecklist drives the antiplat_therapy_spec checkboxes.
var AntiplateletChecklist = []ChecklistEntry{
	{1, drug(`Aspirin|ASS|Aspisol`)},
	{2, drug(`Plavix|Clopidogrel`)},
	{3, drug(`Ticagrelor|Brilique`)},
	{4, drug(`Prasugrel|Efient`)},
}

// AntibioticChecklist drives the antibiotic_spec checkboxes.
var AntibioticChecklist = []ChecklistEntry{
	{1, drug(`Cefuroxim|Zinacef|Zinnat`)},
	{2, drug(`Piperacillin|Tazobactam|Pip/Taz|Tazobac`)},
	{3, drug(`Meropenem|Meronem`)},
	{4, drug(`Vancomycin|Vanco`)},
	{5, drug(`Vancomycin.*p\.o\.|Vanco.*p\.o\.`)},
	{6, drug(`Linezolid|Zyvoxid`)},
	{7, drug(`Daptomycin|Cubicin`)},
	{8, drug(`Penicillin G|Penicillin`)},
	{9, drug(`Flucloxacillin|Staphylex`)},
	{10, drug(`Rifampicin|Eremfat`)},
	{11, drug(`Gentamicin|Refobacin`)},
	{12, drug(`Tobramycin|Gernebacin`)},
	{13, drug(`Ciprofloxacin|Cipro`)},
	{15, drug(`Erythromycin|Erythrocin`)},
	{16, drug(`Caspofungin|Cancidas`)},
	{17, drug(`Amphotericin B|Ampho-Moronal|Ambisome`)},
	{18, drug(`Metronidazol|Clont|Arilin`)},
	{19, drug(`Cefazolin|Gramaxin`)},
	{20, drug(`Ceftriaxon|Rocephin`)},
}

// TransfusionFields counts blood-product administrations per day.
var TransfusionFields = []FieldMapping{
	mapping("ery_t", "Medication", `Transfusion|Blutprodukte`, `^EK\b|Erythrozyten`),
	mapping("thromb_t", "Medication", `Transfusion|Blutprodukte`, `^TK\b|Thrombozyten`),
	mapping("ffp_t", "Medication", `Transfusion|Blutprodukte`, `^FFP\b|Plasma`),
}

// PumpFields feeds the ECMO pump instrument.
var PumpFields = []FieldMapping{
	mapping("ecls_rpm", "ECMO", ".*", `^Drehzahl`),
	mapping("ecls_pf", "ECMO", ".*", `^Blutfluss arteriell|^Blutfluss.*l/min`),
	mapping("ecls_gf", "ECMO", ".*", `^Gasfluss`),
	mapping("ecls_fi02", "ECMO", ".*", `^FiO2`),
}

// ImpellaFields feeds the Impella assessment instrument.
var ImpellaFields = []FieldMapping{
	mapping("imp_flow", "Impella", ".*", `^HZV`),
	mapping("imp_purge_flow", "Impella", ".*", `Purgefluß|Purgefluss|Purge.*ml/h`),
	mapping("imp_purge_pressure", "Impella", ".*", `Purgedruck`),
}

// ventModePattern and pLevelPattern feed the string-valued extractions.
var (
	ventModeMapping = mapping("vent_spec", "Respiratory", ".*", `^Modus`)
	pLevelMapping   = mapping("imp_p_level", "Impella", ".*", `Flu.*regelung|Fluss.*regelung`)
	pLevelValue     = re(`P(\d+)`)

	enteralCategory = re(`\bSonden\b`)
)

// mapVentMode resolves a ventilator mode string to its registry code.
// Unknown modes and explicitly ignored ones (standby) yield no value.
func mapVentMode(mode string) (int, bool) {
	normalized := strings.TrimSpace(strings.ToUpper(mode))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	label, ok := ventModeAliases[normalized]
	if !ok {
		label = normalized
	}
	if label == "" {
		return 0, false
	}
	code, ok := ventModeCodes[label]
	return code, ok
}
