package mlife

import "strings"

// Canonical section names. Sections group the literal header tokens the
// export uses; a section like Labor has one token per lab sub-panel.
const (
	SectionVitals       = "Vitaldaten"
	SectionRespiratory  = "Respiratordaten"
	SectionLab          = "Labor"
	SectionMedication   = "Medikamentengaben"
	SectionFluidBalance = "Bilanz"
	SectionPatientData  = "ALLE Patientendaten"
)

// sectionRegistry maps sections to the header tokens that open a block of
// that section. The tokens are literal first-column values from the export.
var sectionRegistry = []struct {
	Section string
	Tokens  []string
}{
	{SectionVitals, []string{
		"Online erfasste Vitaldaten",
		"Manuell erfasste Vitaldaten",
	}},
	{SectionRespiratory, []string{
		"Online erfasste Respiratorwerte",
		"Beatmung",
		"Manuell erfasste Respiratorwerte",
	}},
	{SectionLab, []string{
		"Labor: Blutgase arteriell", "Labor: Blutgase venös", "Labor: Blutgase gv",
		"Labor: Blutgase unspez.", "Labor: Blutbild", "Labor: Differentialblutbild",
		"Labor: Blutgruppe", "Labor: Gerinnung", "Labor: TEG", "Labor: TAT",
		"Labor: Enzyme", "Labor: Retention", "Labor: Lipide", "Labor: Proteine",
		"Labor: Elektrolyte", "Labor: Blutzucker", "Labor: Klinische Chemie",
		"Labor: Medikamentenspiegel", "Labor: Schilddrüse", "Labor: Serologie/Infektion",
	}},
	{SectionMedication, []string{"Medikamentengaben"}},
	{SectionFluidBalance, []string{"Bilanz"}},
	{SectionPatientData, []string{"ALLE Patientendaten"}},
}

// sectionOf resolves a first-column value to its section, if any.
func sectionOf(token string) (string, bool) {
	for _, entry := range sectionRegistry {
		for _, t := range entry.Tokens {
			if t == token {
				return entry.Section, true
			}
		}
	}
	return "", false
}

// sectionTokens returns the registered header tokens of a section in
// declaration order, so parsers iterate blocks deterministically.
func sectionTokens(section string) []string {
	for _, entry := range sectionRegistry {
		if entry.Section == section {
			return entry.Tokens
		}
	}
	return nil
}

// Blocks maps section -> header token -> raw block text.
type Blocks map[string]map[string]string

// Section returns the blocks of one section (possibly nil).
func (b Blocks) Section(name string) map[string]string {
	return b[name]
}

// Empty reports whether no block was recognized at all.
func (b Blocks) Empty() bool {
	for _, blocks := range b {
		if len(blocks) > 0 {
			return false
		}
	}
	return true
}

// SegmentBlocks splits cleaned report text into named blocks. The first
// field of each line is tested against the header-token registry; on a match
// the buffered lines of the previous block are flushed and a new buffer
// starts. Content before the first recognized header is discarded. A header
// token recurring later in the file (the export repeats sections per time
// window) is concatenated onto the earlier block, never overwritten.
func SegmentBlocks(cleanText, delimiter string) Blocks {
	result := make(Blocks, len(sectionRegistry))
	for _, entry := range sectionRegistry {
		result[entry.Section] = make(map[string]string)
	}

	var (
		currentSection string
		currentToken   string
		buffer         []string
	)

	flush := func() {
		if currentSection == "" || currentToken == "" || len(buffer) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(buffer, "\n"))
		if text == "" {
			return
		}
		if prev, ok := result[currentSection][currentToken]; ok && prev != "" {
			result[currentSection][currentToken] = prev + "\n" + text
		} else {
			result[currentSection][currentToken] = text
		}
	}

	for _, line := range strings.Split(cleanText, "\n") {
		first, _, _ := strings.Cut(line, delimiter)
		key := strings.TrimSpace(first)

		if section, ok := sectionOf(key); ok {
			flush()
			currentSection = section
			currentToken = key
			buffer = buffer[:0]
			continue
		}
		buffer = append(buffer, line)
	}
	flush()

	return result
}
