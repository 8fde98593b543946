package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for blueprint parsing.
var (
	// ErrUnsupportedFormat indicates the file extension is not a blueprint format.
	ErrUnsupportedFormat = errors.New("unsupported blueprint format")

	// ErrReservedID indicates the derived identifier uses the reserved prefix.
	ErrReservedID = errors.New("derived id uses reserved prefix")
)

// symbolicAliasPattern matches model group aliases: uppercase names with no
// provider separator (e.g. CORE, QUICK, FRONTIER_2024).
var symbolicAliasPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// rawBlueprint mirrors the on-disk blueprint shape. The declared id is
// decoded so it can be explicitly discarded.
type rawBlueprint struct {
	ID          string      `yaml:"id" json:"id"`
	Title       string      `yaml:"title" json:"title"`
	Description string      `yaml:"description" json:"description"`
	Tags        []string    `yaml:"tags" json:"tags"`
	Models      []any       `yaml:"models" json:"models"`
	Prompts     []rawPrompt `yaml:"prompts" json:"prompts"`
}

type rawPrompt struct {
	ID       string     `yaml:"id" json:"id"`
	Prompt   string     `yaml:"prompt" json:"prompt"`
	Messages []Message  `yaml:"messages" json:"messages"`
	Points   []PointRef `yaml:"points" json:"points"`
}

// Parse decodes and normalises a blueprint file. The format is inferred from
// the path extension. The returned blueprint has its id derived from the
// path, tags normalised, and a title defaulted to the id when absent.
// Paths deriving to a reserved id are rejected with ErrReservedID.
func Parse(path string, data []byte) (*Blueprint, error) {
	if !HasBlueprintExtension(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	id := DeriveID(path)
	if IsReservedID(id) {
		return nil, fmt.Errorf("%w: %s", ErrReservedID, id)
	}

	doc, err := decodeDocument(path, data)
	if err != nil {
		return nil, err
	}

	schemaErr := validateSchema(doc)
	if schemaErr != nil {
		return nil, schemaErr
	}

	raw, err := decodeTyped(path, data)
	if err != nil {
		return nil, err
	}

	models, modelErr := parseModelRefs(raw.Models)
	if modelErr != nil {
		return nil, modelErr
	}

	// The file's own id field, if present, is ignored: the id is a pure
	// function of the source path.
	bp := &Blueprint{
		ID:          id,
		Title:       raw.Title,
		Description: raw.Description,
		Tags:        NormalizeTags(raw.Tags),
		Models:      models,
		Prompts:     convertPrompts(raw.Prompts),
	}

	if bp.Title == "" {
		bp.Title = bp.ID
	}

	return bp, nil
}

// decodeDocument unmarshals the file into a generic document for schema
// validation. Validation runs before the typed decode so type mismatches
// surface as schema violations, not decoder errors.
func decodeDocument(path string, data []byte) (any, error) {
	var doc any

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		return doc, nil
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return doc, nil
}

// decodeTyped unmarshals the schema-validated file into the raw struct.
func decodeTyped(path string, data []byte) (*rawBlueprint, error) {
	var raw rawBlueprint

	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		return &raw, nil
	}

	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &raw, nil
}

// parseModelRefs converts the heterogeneous models list (strings or
// mappings) into tagged ModelRef values. An empty or missing list defaults
// to the single CORE group alias.
func parseModelRefs(entries []any) ([]ModelRef, error) {
	if len(entries) == 0 {
		return []ModelRef{{Kind: ModelRefSymbolic, Name: "CORE"}}, nil
	}

	refs := make([]ModelRef, 0, len(entries))

	for i, entry := range entries {
		switch v := entry.(type) {
		case string:
			refs = append(refs, parseModelString(v))
		case map[string]any:
			ref, err := parseModelMapping(i, v)
			if err != nil {
				return nil, err
			}

			refs = append(refs, ref)
		default:
			return nil, fmt.Errorf("%w: models[%d] is neither string nor mapping", ErrSchemaViolation, i)
		}
	}

	return refs, nil
}

func parseModelString(value string) ModelRef {
	trimmed := strings.TrimSpace(value)
	if symbolicAliasPattern.MatchString(trimmed) {
		return ModelRef{Kind: ModelRefSymbolic, Name: trimmed}
	}

	return ModelRef{Kind: ModelRefConcrete, ID: trimmed}
}

func parseModelMapping(index int, mapping map[string]any) (ModelRef, error) {
	id, ok := mapping["id"].(string)
	if !ok || strings.TrimSpace(id) == "" {
		return ModelRef{}, fmt.Errorf("%w: models[%d] mapping has no id", ErrSchemaViolation, index)
	}

	options := make(map[string]any)

	for key, val := range mapping {
		if key == "id" {
			continue
		}

		options[key] = val
	}

	if len(options) == 0 {
		options = nil
	}

	return ModelRef{Kind: ModelRefConcrete, ID: strings.TrimSpace(id), Options: options}, nil
}

func convertPrompts(raws []rawPrompt) []Prompt {
	if len(raws) == 0 {
		return nil
	}

	prompts := make([]Prompt, 0, len(raws))

	for i, rp := range raws {
		p := Prompt{
			ID:       rp.ID,
			Text:     rp.Prompt,
			Messages: rp.Messages,
			Points:   rp.Points,
		}

		if p.ID == "" {
			p.ID = fmt.Sprintf("prompt-%d", i+1)
		}

		prompts = append(prompts, p)
	}

	return prompts
}
