package models

import (
	"fmt"
	"strings"

	"github.com/collect-intel/dtef-app-sub001/internal/blueprint"
)

// Resolve expands the model references of a blueprint to concrete
// identifiers using the given catalogue. Order is preserved and duplicates
// are removed (first occurrence wins). Resolution is pure and deterministic
// for a given catalogue version; an alias missing from the catalogue is an
// error rather than a silent drop.
func Resolve(refs []blueprint.ModelRef, catalogue Catalogue) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(refs))

	appendID := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, ref := range refs {
		switch ref.Kind {
		case blueprint.ModelRefConcrete:
			appendID(ref.ID)
		case blueprint.ModelRefSymbolic:
			ids, ok := catalogue[strings.ToUpper(ref.Name)]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, ref.Name)
			}

			for _, id := range ids {
				appendID(id)
			}
		}
	}

	return out, nil
}

// BaseModelID strips version and variant suffixes from a concrete model
// identifier, yielding the id that model summaries aggregate under.
//
//	openai:gpt-4o-mini[temp=0.7] -> openai:gpt-4o-mini
//	anthropic:claude-sonnet:20240620 -> anthropic:claude-sonnet
func BaseModelID(id string) string {
	base := id

	// Bracketed invocation options.
	if idx := strings.IndexByte(base, '['); idx >= 0 {
		base = base[:idx]
	}

	// provider:family[:version] keeps provider and family only.
	parts := strings.Split(base, ":")

	const providerAndFamily = 2
	if len(parts) > providerAndFamily {
		base = strings.Join(parts[:providerAndFamily], ":")
	}

	return strings.TrimSpace(base)
}
