// Package parse extracts structured signals from free-text model output.
//
// Model and arbiter output is not guaranteed to be well-formed XML, so every
// extractor here is tolerant: a field that cannot be found is reported as
// absent rather than as an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// confidenceTag matches <confidence>X</confidence> with the value allowed
	// to span whitespace and newlines.
	confidenceTag = regexp.MustCompile(`(?is)<confidence>\s*(\d+(?:\.\d+)?|\.\d+)\s*</confidence>`)

	// numericToken matches the first number on a line, with an optional
	// trailing percent sign.
	numericToken = regexp.MustCompile(`(\d*\.?\d+)%?`)
)

// Confidence parses a confidence score from text and normalizes it into
// [0,1]. The <confidence> tag wins; otherwise the first line labelled
// "confidence:" or "confidence level:" is scanned for a number. Values above
// 1 are percentages. def is returned when nothing parses.
func Confidence(text string, def float64) float64 {
	if m := confidenceTag.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64); err == nil {
			return Normalize(v)
		}
	}

	for _, line := range strings.Split(strings.ToLower(text), "\n") {
		if !strings.Contains(line, "confidence:") && !strings.Contains(line, "confidence level:") {
			continue
		}
		m := numericToken.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return Normalize(v)
		}
	}

	return def
}

// Normalize maps a fraction or percentage onto [0,1].
func Normalize(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
