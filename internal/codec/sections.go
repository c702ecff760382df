// Package codec converts between the structured Entry record and its
// Markdown document form: a three-dash-delimited metadata block followed by
// eleven numbered sections, with section 4 decomposed into five named
// subsections. Encode then Decode reproduces the structured form exactly,
// modulo insignificant whitespace.
package codec

import (
	"strings"

	"github.com/hyperengineering/daybook/internal/types"
)

// sectionTitles is the fixed catalog of top-level section headings, indexed
// by section number (slot 0 unused). Both order and text are part of the
// document format.
var sectionTitles = [...]string{
	"",
	"Identity & North Star",
	"Quarterly Objectives",
	"Today's Top Priorities",
	"Daily Actions",
	"Wins",
	"Friction & Lessons",
	"Gratitude",
	"Ideas & Notes",
	"People & Conversations",
	"Tomorrow's Plan",
	"Free Journal",
}

// SectionCount is the number of top-level sections in a document.
const SectionCount = len(sectionTitles) - 1

// subsections lists the section-4 subsection tags in document order.
var subsections = []types.Subsection{
	types.SubHealth,
	types.SubSkill,
	types.SubMoney,
	types.SubLeverage,
	types.SubMind,
}

// SectionTitle returns the heading text for a section number, empty when the
// number is out of range.
func SectionTitle(n int) string {
	if n < 1 || n > SectionCount {
		return ""
	}
	return sectionTitles[n]
}

// ParseSectionID parses the string form of a section identifier: "s4" for a
// bare section, "s4:Health" for a section-4 subsection (name matched
// case-insensitively).
func ParseSectionID(s string) (types.SectionID, bool) {
	rest, ok := strings.CutPrefix(s, "s")
	if !ok {
		return types.SectionID{}, false
	}

	numPart, subPart, hasSub := strings.Cut(rest, ":")
	n := 0
	for _, r := range numPart {
		if r < '0' || r > '9' {
			return types.SectionID{}, false
		}
		n = n*10 + int(r-'0')
	}

	id := types.SectionID{Number: n}
	if hasSub {
		id.Sub = subsectionByName(subPart)
		if id.Sub == types.SubNone {
			return types.SectionID{}, false
		}
	}
	if !id.Valid() {
		return types.SectionID{}, false
	}
	return id, true
}

// subsectionByName resolves a subsection heading case-insensitively.
// Returns SubNone when the name is not one of the five fixed subsections.
func subsectionByName(name string) types.Subsection {
	for _, sub := range subsections {
		if strings.EqualFold(name, sub.Title()) {
			return sub
		}
	}
	return types.SubNone
}
