package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperengineering/daybook/internal/types"
)

// metadataKeys lists the metadata block keys in emission order.
var metadataKeys = []string{
	"schema", "date", "score", "discipline", "focus", "energy", "mood", "net_worth_delta",
}

// headingPattern matches a top-level section heading line: "# 4. Daily Actions".
var headingPattern = regexp.MustCompile(`^#\s+(\d+)\.\s*(.*)$`)

// subheadingPattern matches a subsection heading line: "## Health".
var subheadingPattern = regexp.MustCompile(`^##\s+(\S.*?)\s*$`)

// Encode serializes an entry into its document form. Every section heading
// is emitted even when its body is empty, so documents are structurally
// uniform regardless of how much was written.
func Encode(e types.Entry) string {
	var b strings.Builder

	b.WriteString("---\n")
	b.WriteString(fmt.Sprintf("schema: %d\n", e.SchemaVersion))
	b.WriteString(fmt.Sprintf("date: %s\n", e.Date))
	b.WriteString(fmt.Sprintf("score: %d\n", e.Scores.Score))
	b.WriteString(fmt.Sprintf("discipline: %d\n", e.Scores.Discipline))
	b.WriteString(fmt.Sprintf("focus: %d\n", e.Scores.Focus))
	b.WriteString(fmt.Sprintf("energy: %d\n", e.Scores.Energy))
	b.WriteString(fmt.Sprintf("mood: %d\n", e.Scores.Mood))
	b.WriteString(fmt.Sprintf("net_worth_delta: %s\n", formatNumber(e.NetWorthDelta)))
	b.WriteString("---\n")

	for n := 1; n <= SectionCount; n++ {
		b.WriteString(fmt.Sprintf("\n# %d. %s\n", n, sectionTitles[n]))
		writeBody(&b, e.SectionText(types.Section(n)))
		if n == 4 {
			for _, sub := range subsections {
				b.WriteString(fmt.Sprintf("\n## %s\n", sub.Title()))
				writeBody(&b, e.SectionText(types.Sub(sub)))
			}
		}
	}

	return b.String()
}

func writeBody(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(text)
	b.WriteString("\n")
}

// formatNumber renders a float without trailing zeros ("1000", "-12.5").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Decode parses a document back into a structured entry. Metadata fields
// that are missing or non-numeric fall back to their defaults (scores 5,
// net worth delta 0, schema 1); unknown metadata keys are ignored. Body text
// between headings is trimmed.
func Decode(doc string) types.Entry {
	meta, body := splitFrontMatter(doc)

	e := types.Entry{
		SchemaVersion: intField(meta, "schema", types.CurrentSchemaVersion),
		Date:          meta["date"],
		Scores: types.Scores{
			Score:      intField(meta, "score", 5),
			Discipline: intField(meta, "discipline", 5),
			Focus:      intField(meta, "focus", 5),
			Energy:     intField(meta, "energy", 5),
			Mood:       intField(meta, "mood", 5),
		},
		NetWorthDelta: floatField(meta, "net_worth_delta", 0),
		Sections:      make(map[types.SectionID]string),
	}

	decodeBody(&e, body)
	return e
}

// splitFrontMatter separates the first three-dash-delimited block from the
// remaining body. A document with no front matter yields empty metadata and
// the whole text as body.
func splitFrontMatter(doc string) (map[string]string, string) {
	meta := make(map[string]string)
	lines := strings.Split(doc, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return meta, doc
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return meta, doc
	}

	for _, line := range lines[1:end] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return meta, strings.Join(lines[end+1:], "\n")
}

// decodeBody walks the body line by line, switching the current section at
// heading lines. Subsection headings are only honored inside section 4; a
// "##" line anywhere else is ordinary text.
func decodeBody(e *types.Entry, body string) {
	current := types.SectionID{}
	var buf []string

	flush := func() {
		if !current.Valid() {
			buf = buf[:0]
			return
		}
		text := strings.TrimSpace(strings.Join(buf, "\n"))
		if text != "" {
			e.SetSection(current, text)
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 1 && n <= SectionCount {
				flush()
				current = types.Section(n)
				continue
			}
		}
		if current.Number == 4 {
			if m := subheadingPattern.FindStringSubmatch(line); m != nil {
				if sub := subsectionByName(m[1]); sub != types.SubNone {
					flush()
					current = types.Sub(sub)
					continue
				}
			}
		}
		buf = append(buf, line)
	}
	flush()
}

// intField returns the metadata value for key parsed as an integer, or the
// default when absent or non-numeric.
func intField(meta map[string]string, key string, def int) int {
	raw, ok := meta[key]
	if !ok {
		return def
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	// A float-looking value for an integer field is still numeric.
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(f)
	}
	return def
}

// floatField returns the metadata value for key parsed as a float, or the
// default when absent or non-numeric.
func floatField(meta map[string]string, key string, def float64) float64 {
	raw, ok := meta[key]
	if !ok {
		return def
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return def
}
