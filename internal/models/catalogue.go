// Package models resolves symbolic model-group aliases against the model
// catalogue published in the configuration source.
package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// CataloguePath is the known location of the model catalogue within the
// configuration source tree.
const CataloguePath = "models/model_collections.yml"

// Sentinel errors for catalogue handling.
var (
	// ErrUnknownGroup indicates a symbolic alias is not present in the catalogue.
	ErrUnknownGroup = errors.New("unknown model group")

	// ErrCatalogueUnavailable indicates the catalogue could not be fetched.
	ErrCatalogueUnavailable = errors.New("model catalogue unavailable")
)

// Catalogue maps group aliases (e.g. "CORE") to concrete model identifiers.
type Catalogue map[string][]string

// rawFetcher fetches a raw file from the configuration source.
type rawFetcher interface {
	GetRaw(ctx context.Context, path, ref string) ([]byte, error)
}

// ParseCatalogue decodes a catalogue file. Aliases are upper-cased so
// lookups are case-stable regardless of authoring style.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var raw map[string][]string

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parse model catalogue: %w", err)
	}

	catalogue := make(Catalogue, len(raw))
	for alias, ids := range raw {
		catalogue[strings.ToUpper(strings.TrimSpace(alias))] = ids
	}

	return catalogue, nil
}

// FetchCatalogue retrieves and parses the catalogue at the given ref.
// Failure is loud: resolution without a catalogue would silently run the
// wrong models.
func FetchCatalogue(ctx context.Context, fetcher rawFetcher, ref string) (Catalogue, error) {
	data, err := fetcher.GetRaw(ctx, CataloguePath, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogueUnavailable, err)
	}

	return ParseCatalogue(data)
}
