package suggestion

import (
	"encoding/json"
	"fmt"

	"github.com/dialtone-ai/greenroom/internal/script"
)

// Op tags how a change applies to its section.
type Op string

const (
	// OpReplace wholly replaces the section text.
	OpReplace Op = "replace"
	// OpAppend adds text after the existing section content. Kept only
	// for proposals filed before replace existed; new proposals always
	// use replace.
	OpAppend Op = "append"
)

// Change is one proposed edit to a named section.
type Change struct {
	Section string `json:"section"`
	Op      Op     `json:"op"`
	Text    string `json:"text"`
}

// validate checks the change targets a schema section with a known op.
func (c Change) validate() error {
	if !script.IsValidName(c.Section) {
		return fmt.Errorf("suggestion: unknown section: %s", c.Section)
	}
	switch c.Op {
	case OpReplace, OpAppend:
	default:
		return fmt.Errorf("suggestion: unknown change op: %q", c.Op)
	}
	if c.Op == OpReplace && c.Text == "" {
		return fmt.Errorf("suggestion: replace for %s has no text", c.Section)
	}
	return nil
}

// applyTo mutates sections according to the change.
func (c Change) applyTo(sections *script.Sections) error {
	switch c.Op {
	case OpReplace:
		return sections.Set(c.Section, c.Text)
	case OpAppend:
		existing, err := sections.Get(c.Section)
		if err != nil {
			return err
		}
		addition := stripLeadIn(c.Text)
		if addition == "" {
			return nil
		}
		if existing == "" {
			return sections.Set(c.Section, addition)
		}
		return sections.Set(c.Section, existing+"\n\n"+addition)
	default:
		return fmt.Errorf("suggestion: unknown change op: %q", c.Op)
	}
}

// rawChange is the storage/wire shape. Older proposals carried
// new_content (replace) or modification (append) instead of op+text;
// the variant is resolved here, at decode time, so nothing downstream
// probes optional fields.
type rawChange struct {
	Section      string `json:"section"`
	Op           Op     `json:"op,omitempty"`
	Text         string `json:"text,omitempty"`
	NewContent   string `json:"new_content,omitempty"`
	Modification string `json:"modification,omitempty"`
}

// EncodeChanges serializes changes to the JSON storage form.
func EncodeChanges(changes []Change) (string, error) {
	data, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("suggestion: encode changes: %w", err)
	}
	return string(data), nil
}

// DecodeChanges parses the JSON storage form, resolving legacy shapes.
// Replace wins when a legacy proposal carries both new_content and
// modification.
func DecodeChanges(data string) ([]Change, error) {
	var raws []rawChange
	if err := json.Unmarshal([]byte(data), &raws); err != nil {
		return nil, fmt.Errorf("suggestion: decode changes: %w", err)
	}
	changes := make([]Change, 0, len(raws))
	for i, r := range raws {
		ch, err := r.resolve()
		if err != nil {
			return nil, fmt.Errorf("suggestion: change %d: %w", i, err)
		}
		changes = append(changes, ch)
	}
	return changes, nil
}

// resolve maps a raw change to the tagged variant.
func (r rawChange) resolve() (Change, error) {
	if r.Op != "" {
		return Change{Section: r.Section, Op: r.Op, Text: r.Text}, nil
	}
	if r.NewContent != "" {
		return Change{Section: r.Section, Op: OpReplace, Text: r.NewContent}, nil
	}
	if r.Modification != "" {
		return Change{Section: r.Section, Op: OpAppend, Text: r.Modification}, nil
	}
	return Change{}, fmt.Errorf("no op, new_content or modification")
}
