// Package script defines the sectioned agent-script document model:
// the fixed section schema, parsing of flat script text into sections,
// and deterministic recompilation of sections into flat text.
package script

import "fmt"

// Section names in schema order. Every script has exactly these
// sections; a section may be empty but is never absent.
const (
	SectionRole        = "role"
	SectionPersonality = "personality"
	SectionCallFlow    = "call_flow"
	SectionInfoRecap   = "info_recap"
	SectionFunctions   = "functions"
	SectionKnowledge   = "knowledge"
)

// NumSections is the fixed number of sections in the schema.
const NumSections = 6

// schema lists the sections in compile order with their marker titles.
var schema = [NumSections]struct {
	Name  string
	Title string
}{
	{SectionRole, "Role"},
	{SectionPersonality, "Personality"},
	{SectionCallFlow, "Call Flow"},
	{SectionInfoRecap, "Info Recap"},
	{SectionFunctions, "Functions"},
	{SectionKnowledge, "Knowledge"},
}

// Names returns the section names in schema order.
func Names() []string {
	names := make([]string, NumSections)
	for i, s := range schema {
		names[i] = s.Name
	}
	return names
}

// Title returns the display title for a section name.
func Title(name string) (string, error) {
	for _, s := range schema {
		if s.Name == name {
			return s.Title, nil
		}
	}
	return "", fmt.Errorf("script: unknown section: %s", name)
}

// Marker returns the boundary marker line for a section name, e.g.
// "## Call Flow" for call_flow.
func Marker(name string) (string, error) {
	title, err := Title(name)
	if err != nil {
		return "", err
	}
	return "## " + title, nil
}

// IsValidName reports whether name is a schema section name.
func IsValidName(name string) bool {
	_, err := Title(name)
	return err == nil
}

// Section is one named slice of the script document.
type Section struct {
	Name string
	Text string
}

// Sections is a complete script document: all schema sections in order.
// The zero value is not valid; use NewSections.
type Sections [NumSections]Section

// NewSections returns an empty document with all schema sections present.
func NewSections() Sections {
	var s Sections
	for i, def := range schema {
		s[i] = Section{Name: def.Name}
	}
	return s
}

// Get returns the text of the named section.
func (s Sections) Get(name string) (string, error) {
	for _, sec := range s {
		if sec.Name == name {
			return sec.Text, nil
		}
	}
	return "", fmt.Errorf("script: unknown section: %s", name)
}

// Set replaces the text of the named section.
func (s *Sections) Set(name, text string) error {
	for i := range s {
		if s[i].Name == name {
			s[i].Text = text
			return nil
		}
	}
	return fmt.Errorf("script: unknown section: %s", name)
}

// IsEmpty reports whether every section has empty text.
func (s Sections) IsEmpty() bool {
	for _, sec := range s {
		if sec.Text != "" {
			return false
		}
	}
	return true
}
