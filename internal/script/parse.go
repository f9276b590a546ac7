package script

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseReport carries non-fatal findings from a Parse call. Content that
// sits outside any recognized section marker is dropped from the result;
// the report surfaces it so callers can log instead of losing it silently.
type ParseReport struct {
	DroppedBytes   int
	DroppedPreview string // first 80 chars of dropped content
}

// previewLen caps DroppedPreview.
const previewLen = 80

// Parse splits flat script text into schema sections. It never fails:
// a missing marker yields an empty section, and unrecognized content is
// dropped (reported, not an error). Section text is whitespace-trimmed.
func Parse(flat string) (Sections, ParseReport) {
	sections := NewSections()
	var report ParseReport

	type hit struct {
		index int // schema index
		start int // offset of marker line
		end   int // offset just past marker line
	}
	var hits []hit
	for i, def := range schema {
		marker := "## " + def.Title
		off := findMarker(flat, marker)
		if off < 0 {
			continue
		}
		hits = append(hits, hit{index: i, start: off, end: off + len(marker)})
	}

	// Markers are located by scanning; hits are appended in schema order
	// but may appear out of order in the text. Sort by text position.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].start < hits[j-1].start; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	if len(hits) == 0 {
		if trimmed := strings.TrimSpace(flat); trimmed != "" {
			report.DroppedBytes = len(trimmed)
			report.DroppedPreview = preview(trimmed)
		}
		return sections, report
	}

	// Content before the first marker is unattributed.
	if lead := strings.TrimSpace(flat[:hits[0].start]); lead != "" {
		report.DroppedBytes += len(lead)
		report.DroppedPreview = preview(lead)
	}

	for i, h := range hits {
		end := len(flat)
		if i+1 < len(hits) {
			end = hits[i+1].start
		}
		body := strings.TrimSpace(flat[h.end:end])
		sections[h.index].Text = body
	}

	return sections, report
}

// findMarker locates a marker that starts a line, returning -1 if absent.
func findMarker(text, marker string) int {
	from := 0
	for {
		off := strings.Index(text[from:], marker)
		if off < 0 {
			return -1
		}
		abs := from + off
		atLineStart := abs == 0 || text[abs-1] == '\n'
		// The marker must be the whole line (bar trailing whitespace) so
		// headings inside section bodies with a longer title don't match.
		lineEnd := strings.IndexByte(text[abs:], '\n')
		var rest string
		if lineEnd < 0 {
			rest = text[abs+len(marker):]
		} else {
			rest = text[abs+len(marker) : abs+lineEnd]
		}
		if atLineStart && strings.TrimSpace(rest) == "" {
			return abs
		}
		from = abs + len(marker)
	}
}

func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen]
}

// Compile renders sections to flat text: each marker followed by the
// section body, blocks joined by a blank line. Empty sections keep their
// marker so the compiled form always round-trips to the full schema.
func Compile(s Sections) string {
	var b strings.Builder
	for i, sec := range s {
		if i > 0 {
			b.WriteString("\n\n")
		}
		marker, _ := Marker(sec.Name)
		b.WriteString(marker)
		if text := strings.TrimSpace(sec.Text); text != "" {
			b.WriteString("\n")
			b.WriteString(text)
		}
	}
	return b.String()
}

// EncodeJSON serializes sections as a JSON object keyed by section name,
// the storage form used for script version rows.
func EncodeJSON(s Sections) (string, error) {
	m := make(map[string]string, NumSections)
	for _, sec := range s {
		m[sec.Name] = sec.Text
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("script: encode sections: %w", err)
	}
	return string(data), nil
}

// DecodeJSON parses the JSON storage form back into schema sections.
// Unknown keys are ignored; missing keys yield empty sections.
func DecodeJSON(data string) (Sections, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return NewSections(), fmt.Errorf("script: decode sections: %w", err)
	}
	s := NewSections()
	for name, text := range m {
		// Ignore unknown names so old rows with retired sections load.
		_ = s.Set(name, text)
	}
	return s, nil
}
