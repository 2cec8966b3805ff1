package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// DegradedAnalysis is the analysis text attached to a synthesis built from
// unparseable arbiter output.
const DegradedAnalysis = "Parsing failed - see raw response"

// Sections holds the tagged fields of an arbiter response. A nil pointer or a
// false HasRefinementAreas means the field was absent; consumers substitute
// their own defaults.
type Sections struct {
	Synthesis          *string
	Confidence         *float64
	Analysis           *string
	Dissent            *string
	NeedsIteration     *bool
	RefinementAreas    []string
	HasRefinementAreas bool
}

// Empty reports whether no section was extracted.
func (s Sections) Empty() bool {
	return s.Synthesis == nil &&
		s.Confidence == nil &&
		s.Analysis == nil &&
		s.Dissent == nil &&
		s.NeedsIteration == nil &&
		!s.HasRefinementAreas
}

var (
	synthesisTag       = regexp.MustCompile(`(?is)<synthesis>(.*?)</synthesis>`)
	arbiterConfidence  = regexp.MustCompile(`(?is)<confidence>\s*([\d.]+)\s*</confidence>`)
	analysisTag        = regexp.MustCompile(`(?is)<analysis>(.*?)</analysis>`)
	dissentTag         = regexp.MustCompile(`(?is)<dissent>(.*?)</dissent>`)
	needsIterationTag  = regexp.MustCompile(`(?is)<needs_iteration>\s*(true|false)\s*</needs_iteration>`)
	refinementAreasTag = regexp.MustCompile(`(?is)<refinement_areas>(.*?)</refinement_areas>`)
	areaTag            = regexp.MustCompile(`(?is)^<area>(.*?)</area>$`)
	anyTag             = regexp.MustCompile(`<[^>]+>`)
)

// Arbiter extracts the six arbiter sections from text. Each section is matched
// independently; missing or malformed sections are left absent.
func Arbiter(text string) Sections {
	var s Sections

	if v, ok := tagText(synthesisTag, text); ok {
		s.Synthesis = &v
	}
	if m := arbiterConfidence.FindStringSubmatch(text); m != nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(m[1]), 64)
		if err != nil {
			v = 0
		}
		v = Normalize(v)
		s.Confidence = &v
	}
	if v, ok := tagText(analysisTag, text); ok {
		s.Analysis = &v
	}
	if v, ok := tagText(dissentTag, text); ok {
		s.Dissent = &v
	}
	if m := needsIterationTag.FindStringSubmatch(text); m != nil {
		v := strings.EqualFold(m[1], "true")
		s.NeedsIteration = &v
	}
	if m := refinementAreasTag.FindStringSubmatch(text); m != nil {
		s.HasRefinementAreas = true
		s.RefinementAreas = splitAreas(m[1])
	}

	return s
}

// Degraded builds the sections used when arbiter text yields nothing: the
// raw text becomes the synthesis and the run is not asked to iterate.
func Degraded(raw string) Sections {
	conf := 0.0
	needs := false
	analysis := DegradedAnalysis
	empty := ""
	return Sections{
		Synthesis:          &raw,
		Confidence:         &conf,
		Analysis:           &analysis,
		Dissent:            &empty,
		NeedsIteration:     &needs,
		HasRefinementAreas: true,
	}
}

// StripTags removes XML-style tags and trims the result.
func StripTags(text string) string {
	return strings.TrimSpace(anyTag.ReplaceAllString(text, ""))
}

func tagText(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// splitAreas turns a refinement_areas body into one entry per non-empty
// line, unwrapping <area> tags and list bullets.
func splitAreas(body string) []string {
	var areas []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if m := areaTag.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[1])
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-*•"))
		if line != "" {
			areas = append(areas, line)
		}
	}
	return areas
}
