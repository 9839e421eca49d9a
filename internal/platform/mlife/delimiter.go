package mlife

import (
	"errors"
	"strings"
)

// The export is delimited either with semicolons or pipes depending on the
// printing workstation. Detection samples the head of the file and picks the
// clearly dominant character; anything ambiguous is refused so callers fail
// fast instead of mis-parsing an entire chart.
const (
	delimiterSampleSize  = 5000
	delimiterMinimumHits = 20
)

// ErrDelimiterUndetermined is returned when neither candidate delimiter
// clearly dominates the sample.
var ErrDelimiterUndetermined = errors.New("mlife: delimiter undetermined")

// DetectDelimiter decides between ";" and "|" by frequency over the first
// delimiterSampleSize characters. Ties and winners at or below
// delimiterMinimumHits report ErrDelimiterUndetermined.
func DetectDelimiter(text string) (string, error) {
	sample := text
	if len(sample) > delimiterSampleSize {
		sample = sample[:delimiterSampleSize]
	}

	semicolons := strings.Count(sample, ";")
	pipes := strings.Count(sample, "|")

	var delimiter string
	var hits int
	switch {
	case semicolons > pipes:
		delimiter, hits = ";", semicolons
	case pipes > semicolons:
		delimiter, hits = "|", pipes
	default:
		return "", ErrDelimiterUndetermined
	}

	if hits <= delimiterMinimumHits {
		return "", ErrDelimiterUndetermined
	}
	return delimiter, nil
}
