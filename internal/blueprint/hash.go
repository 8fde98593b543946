package blueprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// runLabelLength is the number of hex characters retained from the content
// digest. 64 bits is ample: equal labels mean equal resolved content for
// any realistic fleet size.
const runLabelLength = 16

// canonicalForm is the stable shape hashed for the run label. Field order is
// fixed and map values marshal with sorted keys, so the digest is
// deterministic for a given resolved blueprint.
type canonicalForm struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Models      []string `json:"models"`
	Prompts     []Prompt `json:"prompts"`
}

// RunLabel computes the content hash of a resolved blueprint: the blueprint
// with its model groups expanded to the given concrete identifiers and its
// tags already normalised. The label participates in artifact filenames but
// is never the sole freshness test.
func RunLabel(b *Blueprint, concreteModels []string) string {
	form := canonicalForm{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Tags:        b.Tags,
		Models:      concreteModels,
		Prompts:     b.Prompts,
	}

	// Marshal cannot fail for this shape; any value arriving here survived
	// schema validation.
	data, err := json.Marshal(form)
	if err != nil {
		panic("blueprint: canonical marshal failed: " + err.Error())
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])[:runLabelLength]
}
