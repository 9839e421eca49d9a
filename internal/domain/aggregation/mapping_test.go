package aggregation

import "testing"

func TestDrugPatternExclusion(t *testing.T) {
	var epinephrine DrugPattern
	for _, d := range MedicationDrugs {
		if d.Field == "epinephrine" {
			epinephrine = d.Pattern
		}
	}
	if epinephrine.Match == nil {
		t.Fatal("epinephrine pattern not registered")
	}

	if !epinephrine.MatchString("Epinephrin Perfusor 10 mg / 50 ml") {
		t.Error("epinephrine label not matched")
	}
	if !epinephrine.MatchString("Suprarenin 1mg") {
		t.Error("trade name not matched")
	}
	if epinephrine.MatchString("Norepinephrin Perfusor 5 mg / 50 ml") {
		t.Error("norepinephrine label matched the epinephrine pattern")
	}
	// A combined label still names the standalone drug.
	if !epinephrine.MatchString("Norepinephrin abgesetzt, Epinephrin 5 mg / 50 ml") {
		t.Error("standalone epinephrine missed next to norepinephrine")
	}
}

func TestMapVentMode(t *testing.T) {
	cases := []struct {
		mode string
		want int
		ok   bool
	}{
		{"PC-BIPAP", 6, true},
		{"pc bipap", 6, true},
		{"SPONT", 1, true},
		{"CPAP", 1, true},
		{"BiLevel", 3, true},
		{"Standby", 0, false},
		{"HFOV", 0, false},
	}
	for _, tc := range cases {
		got, ok := mapVentMode(tc.mode)
		if got != tc.want || ok != tc.ok {
			t.Errorf("mapVentMode(%q) = (%d, %v), want (%d, %v)",
				tc.mode, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLabFieldsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range LabFields {
		if seen[m.Field] {
			t.Errorf("field %q mapped twice", m.Field)
		}
		seen[m.Field] = true
	}
}

func TestChecklistPatternsCompile(t *testing.T) {
	for _, list := range [][]ChecklistEntry{
		VasoactiveChecklist, AnticoagulantChecklist,
		AntiplateletChecklist, AntibioticChecklist,
	} {
		for _, entry := range list {
			if entry.Pattern.Match == nil {
				t.Errorf("checklist id %d has no pattern", entry.ID)
			}
		}
	}
}
