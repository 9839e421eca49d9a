// Package redact removes identifying strings from free-text event values
// before they leave the system. Redaction is term-based: the caller supplies
// the names it knows (patient name from the report masthead, a persistent
// deny list of staff and places) and every spelling variant is replaced.
package redact

import (
	"regexp"
	"strings"
)

// Placeholder replaces redacted person terms.
const Placeholder = "<ANONYM>"

// A Redactor rewrites text with identifying content removed.
type Redactor interface {
	Redact(text string) string
}

// Passthrough performs no redaction. Used when exports are already
// de-identified upstream.
type Passthrough struct{}

func (Passthrough) Redact(text string) string { return text }

// TermRedactor redacts a fixed set of terms, case-insensitively, including
// the reordered spellings of person names ("Max Mustermann",
// "Mustermann, Max", "Mustermann Max", bare surname).
type TermRedactor struct {
	patterns []*regexp.Regexp
}

// NewTermRedactor compiles the deny list. Empty terms are skipped.
func NewTermRedactor(terms ...string) *TermRedactor {
	r := &TermRedactor{}
	for _, term := range terms {
		r.patterns = append(r.patterns, namePatterns(term)...)
	}
	return r
}

// Redact replaces every occurrence of every deny-list variant.
func (r *TermRedactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.ReplaceAllString(text, Placeholder)
	}
	return text
}

// namePatterns builds the spelling variants of one term. Multi-word terms
// are treated as "given... family" and additionally matched family-first;
// surnames longer than three characters also match on their own.
func namePatterns(term string) []*regexp.Regexp {
	fields := strings.Fields(strings.ReplaceAll(strings.TrimSpace(term), ",", " "))
	if len(fields) == 0 {
		return nil
	}

	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = regexp.QuoteMeta(f)
	}

	var sources []string
	sources = append(sources, `\b`+strings.Join(escaped, `\s+`)+`\b`)

	if len(escaped) >= 2 {
		family := escaped[len(escaped)-1]
		given := strings.Join(escaped[:len(escaped)-1], `\s+`)
		sources = append(sources,
			`\b`+family+`\s*,\s*`+given+`\b`,
			`\b`+family+`\s+`+given+`\b`,
		)
		if len(fields[len(fields)-1]) > 3 {
			sources = append(sources, `\b`+family+`\b`)
		}
	}

	patterns := make([]*regexp.Regexp, 0, len(sources))
	for _, src := range sources {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+src))
	}
	return patterns
}
