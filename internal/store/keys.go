package store

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Key layout. Every writer owns a disjoint prefix.
const (
	// SummaryPrefix holds the per-config summaries.
	SummaryPrefix = "live/summaries/"

	// BlueprintPrefix holds raw run artifacts, one directory per config.
	BlueprintPrefix = "live/blueprints/"

	// FleetSummaryKey is the fleet-wide "all blueprints" summary.
	FleetSummaryKey = "live/aggregates/all_blueprints_summary.json"

	// LatestRunsKey is the most-recent-N summary.
	LatestRunsKey = "live/aggregates/latest_runs_summary.json"

	// HomepageKey is the drain-time homepage summary.
	HomepageKey = "live/aggregates/homepage_summary.json"

	// DTEFSummaryKey is the combined demographic-survey summary.
	DTEFSummaryKey = "live/aggregates/dtef_summary.json"

	// ModelSummaryPrefix holds per-base-model summaries.
	ModelSummaryPrefix = "live/models/summaries/"
)

// artifactSuffix terminates every run artifact filename.
const artifactSuffix = "_comparison.json"

// ErrBadRunFileName indicates a run artifact filename does not match the
// <runLabel>_<safeTimestamp>_comparison.json form and carries no
// recognisable timestamp.
var ErrBadRunFileName = errors.New("unparseable run file name")

// isoFallbackPattern extracts an ISO timestamp (colon-safe form) from
// filenames that do not match the canonical layout.
var isoFallbackPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}(?:\.\d+)?Z`)

// SummaryKey returns the per-config summary key for a blueprint id.
func SummaryKey(configID string) string {
	return SummaryPrefix + configID + ".json"
}

// RunPrefix returns the artifact listing prefix for a blueprint id.
func RunPrefix(configID string) string {
	return BlueprintPrefix + configID + "/"
}

// RunKey returns the artifact key for a completed run.
func RunKey(configID, runLabel string, timestamp time.Time) string {
	return RunPrefix(configID) + RunFileName(runLabel, timestamp)
}

// ModelSummaryKey returns the summary key for a base model id. Characters
// that cannot appear in a key path are replaced.
func ModelSummaryKey(baseModelID string) string {
	safe := strings.NewReplacer(":", "_", "/", "_").Replace(baseModelID)

	return ModelSummaryPrefix + safe + ".json"
}

// DTEFSurveyKey returns the per-survey demographic summary key.
func DTEFSurveyKey(surveyID string) string {
	return fmt.Sprintf("live/aggregates/dtef_summary_%s.json", surveyID)
}

// RunFileName builds the canonical artifact filename. The filename is the
// canonical source of the run timestamp; timestamp fields inside the
// artifact body are advisory.
func RunFileName(runLabel string, timestamp time.Time) string {
	return runLabel + "_" + EncodeTimestamp(timestamp) + artifactSuffix
}

// EncodeTimestamp renders a filesystem-safe ISO-8601 timestamp: UTC with
// ":" replaced by "-".
func EncodeTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-")
}

// DecodeTimestamp parses a filesystem-safe timestamp back to an instant.
func DecodeTimestamp(safe string) (time.Time, error) {
	// Only the time portion after "T" had its colons replaced.
	idx := strings.IndexByte(safe, 'T')
	if idx < 0 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadRunFileName, safe)
	}

	iso := safe[:idx+1] + strings.ReplaceAll(safe[idx+1:], "-", ":")

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadRunFileName, safe)
	}

	return t, nil
}

// ParseRunFileName extracts the run label and canonical timestamp from an
// artifact key or filename. When the canonical layout does not match, a
// regex fallback searches for any ISO timestamp; if that also fails the
// run is unusable for freshness and the caller treats it as absent.
func ParseRunFileName(key string) (runLabel string, timestamp time.Time, err error) {
	name := path.Base(key)

	if !strings.HasSuffix(name, artifactSuffix) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrBadRunFileName, name)
	}

	stem := strings.TrimSuffix(name, artifactSuffix)

	if idx := strings.IndexByte(stem, '_'); idx > 0 {
		label := stem[:idx]

		ts, decodeErr := DecodeTimestamp(stem[idx+1:])
		if decodeErr == nil {
			return label, ts, nil
		}
	}

	// Fallback: regex-extracted ISO timestamp anywhere in the name.
	match := isoFallbackPattern.FindString(stem)
	if match == "" {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrBadRunFileName, name)
	}

	ts, decodeErr := DecodeTimestamp(match)
	if decodeErr != nil {
		return "", time.Time{}, decodeErr
	}

	return strings.SplitN(stem, "_", 2)[0], ts, nil
}

// ConfigIDFromSummaryKey extracts the blueprint id from a per-config
// summary key.
func ConfigIDFromSummaryKey(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, SummaryPrefix), ".json")
}
