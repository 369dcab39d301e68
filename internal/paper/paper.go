package paper

import (
	"fmt"
	"regexp"
	"strings"
)

// SectionLayout describes how a paper is scored: one long essay, or separate
// sections A/B/C with per-section marks out of 20.
type SectionLayout string

const (
	SingleEssay  SectionLayout = "single_essay"
	MultiSection SectionLayout = "multi_section"
)

// Paper holds the fields encoded in an id like "econ-9708-11-mj-25":
// subject prefix, syllabus code, paper number + variant, session code, year.
type Paper struct {
	Subject string
	Code    string
	Number  int
	Variant int
	Session string
	Year    int
}

var (
	idPattern       = regexp.MustCompile(`^([a-z]+)-(\d{4})-(\d)(\d)-([a-z]{2})-(\d{2})$`)
	sanitizePattern = regexp.MustCompile(`[^A-Za-z0-9-]`)
)

// Sanitize strips every character outside [A-Za-z0-9-] so the id is safe to
// embed in attempt ids, URLs and file paths.
func Sanitize(paperID string) string {
	return sanitizePattern.ReplaceAllString(paperID, "")
}

// Parse decodes a structured paper id. Unknown formats return an error; the
// caller decides whether to fall back to the multi-section layout.
func Parse(paperID string) (*Paper, error) {
	m := idPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(paperID)))
	if m == nil {
		return nil, fmt.Errorf("unrecognized paper id format: %q", paperID)
	}
	p := &Paper{
		Subject: m[1],
		Code:    m[2],
		Number:  int(m[3][0] - '0'),
		Variant: int(m[4][0] - '0'),
		Session: m[5],
		Year:    int(m[6][0]-'0')*10 + int(m[6][1]-'0'),
	}
	return p, nil
}

// LayoutFor maps a paper id to its scoring layout. By syllabus convention,
// paper numbers 1 and 3 are single-essay papers; 2 and 4 carry sections
// A/B/C. Ids that do not parse default to MultiSection so the grader still
// requests a full section breakdown rather than silently dropping it.
func LayoutFor(paperID string) SectionLayout {
	p, err := Parse(paperID)
	if err != nil {
		return MultiSection
	}
	switch p.Number {
	case 1, 3:
		return SingleEssay
	default:
		return MultiSection
	}
}
