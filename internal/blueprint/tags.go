package blueprint

import "strings"

// Reserved tags. Any tag starting with "_" is system-meaningful.
const (
	// TagPeriodic marks a blueprint as eligible for scheduled runs.
	TagPeriodic = "_periodic"

	// TagFeatured selects full recent-run detail in the homepage summary.
	TagFeatured = "_featured"

	// TagPublicAPI excludes a blueprint from homepage aggregates.
	TagPublicAPI = "_public_api"

	// TagDTEF marks demographic-survey blueprints subject to the
	// distribution-metric summaries.
	TagDTEF = "dtef"

	// TagPREvaluation marks runs injected by the PR evaluation flow.
	TagPREvaluation = "_pr_evaluation"

	// TagPRPrefix prefixes the PR-number provenance tag (_pr_<n>).
	TagPRPrefix = "_pr_"

	// TagAuthorPrefix prefixes the PR-author provenance tag (_author_<login>).
	TagAuthorPrefix = "_author_"
)

// reservedPrefix marks system-meaningful tags and ids.
const reservedPrefix = "_"

// NormalizeTags canonicalises a tag set: lowercase, trim, collapse internal
// whitespace, drop empties, and deduplicate preserving first occurrence.
// The operation is idempotent.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		normalized := strings.Join(strings.Fields(strings.ToLower(tag)), " ")
		if normalized == "" {
			continue
		}

		if _, dup := seen[normalized]; dup {
			continue
		}

		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	if len(out) == 0 {
		return nil
	}

	return out
}

// IsReservedTag reports whether the tag is system-meaningful.
func IsReservedTag(tag string) bool {
	return strings.HasPrefix(tag, reservedPrefix)
}
