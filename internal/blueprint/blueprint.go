// Package blueprint defines evaluation blueprints, their normalisation rules,
// and the derived identifiers used across the orchestrator.
package blueprint

// ModelRefKind discriminates the two forms a model reference can take.
type ModelRefKind int

const (
	// ModelRefSymbolic is a group alias (e.g. "CORE", "QUICK") that is
	// expanded against the model catalogue before a run.
	ModelRefSymbolic ModelRefKind = iota

	// ModelRefConcrete is a fully qualified model identifier
	// (e.g. "openai:gpt-4o-mini").
	ModelRefConcrete
)

// ModelRef is a tagged reference to either a symbolic model group or a
// concrete model identifier. Exactly one of Name or ID is set, selected
// by Kind.
type ModelRef struct {
	Kind ModelRefKind

	// Name is the group alias when Kind is ModelRefSymbolic.
	Name string

	// ID is the concrete model identifier when Kind is ModelRefConcrete.
	ID string

	// Options carries optional per-model invocation options (concrete only).
	Options map[string]any
}

// Message is a single chat message inside a prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PointRef names a point function and its arguments for scoring a response.
type PointRef struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args,omitempty"`
}

// Prompt is a single evaluation prompt within a blueprint.
type Prompt struct {
	ID       string     `json:"id"`
	Text     string     `json:"text,omitempty"`
	Messages []Message  `json:"messages,omitempty"`
	Points   []PointRef `json:"points,omitempty"`
}

// Blueprint is a parameterised evaluation specification. The ID is always
// derived from the source path; any id declared inside the file is ignored.
type Blueprint struct {
	ID          string
	Title       string
	Description string
	Prompts     []Prompt
	Models      []ModelRef
	Tags        []string
}

// IsPeriodic reports whether the blueprint carries the _periodic tag and is
// therefore eligible for scheduled runs. Tags must already be normalised.
func (b *Blueprint) IsPeriodic() bool {
	return b.HasTag(TagPeriodic)
}

// HasTag reports whether the normalised tag set contains the given tag.
func (b *Blueprint) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}

	return false
}
