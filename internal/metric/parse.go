// Package metric implements the distribution-comparison point functions
// used by demographic-survey blueprints: a numeric-vector parser over
// free-form model responses and the similarity scores computed on the
// parsed distributions.
package metric

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// bracketedArrayPattern finds the first bracketed array in a response.
var bracketedArrayPattern = regexp.MustCompile(`\[[^\[\]]*\]`)

// labelledLinePattern matches "a. Label: 45%" / "b) Other: 30" forms, one
// option per line.
var labelledLinePattern = regexp.MustCompile(`(?m)^\s*[A-Za-z][.)]\s*.*?:\s*(-?\d+(?:\.\d+)?)\s*%?\s*$`)

// numberToken matches a number with an optional percent sign.
var numberToken = regexp.MustCompile(`^-?\d+(?:\.\d+)?%?$`)

// ParseVector extracts a numeric vector from a free-form model response.
// Three forms are tried in order: a bracketed JSON-style array, a
// comma-separated number list, and labelled "a. X: n%" lines. The boolean
// is false when no form matches.
func ParseVector(response string) ([]float64, bool) {
	if vec, ok := parseBracketed(response); ok {
		return vec, true
	}

	if vec, ok := parseCommaSeparated(response); ok {
		return vec, true
	}

	if vec, ok := parseLabelled(response); ok {
		return vec, true
	}

	return nil, false
}

func parseBracketed(response string) ([]float64, bool) {
	match := bracketedArrayPattern.FindString(response)
	if match == "" {
		return nil, false
	}

	// Strict JSON first; percent-bearing entries fall back to token parsing.
	var vec []float64
	if err := json.Unmarshal([]byte(match), &vec); err == nil && len(vec) > 0 {
		return vec, true
	}

	inner := strings.Trim(match, "[]")

	return parseTokens(strings.Split(inner, ","))
}

func parseCommaSeparated(response string) ([]float64, bool) {
	trimmed := strings.TrimSpace(response)
	if !strings.Contains(trimmed, ",") {
		return nil, false
	}

	return parseTokens(strings.Split(trimmed, ","))
}

func parseLabelled(response string) ([]float64, bool) {
	matches := labelledLinePattern.FindAllStringSubmatch(response, -1)
	if len(matches) == 0 {
		return nil, false
	}

	vec := make([]float64, 0, len(matches))

	for _, m := range matches {
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, false
		}

		vec = append(vec, val)
	}

	return vec, true
}

// parseTokens converts a list of textual tokens to numbers. Every token
// must parse (with an optional trailing %) or the whole form is rejected.
func parseTokens(tokens []string) ([]float64, bool) {
	if len(tokens) == 0 {
		return nil, false
	}

	vec := make([]float64, 0, len(tokens))

	for _, token := range tokens {
		cleaned := strings.TrimSpace(token)
		if !numberToken.MatchString(cleaned) {
			return nil, false
		}

		val, err := strconv.ParseFloat(strings.TrimSuffix(cleaned, "%"), 64)
		if err != nil {
			return nil, false
		}

		vec = append(vec, val)
	}

	return vec, true
}
