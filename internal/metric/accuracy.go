package metric

import (
	"fmt"
	"math"
)

// Per-option tolerance parameters: error is measured in absolute percentage
// points, tolerated up to the larger of a fixed floor and 30% of the
// expected value.
const (
	toleranceFloor    = 5.0
	toleranceFraction = 0.3
)

// PerOptionAccuracy scores the model's prediction for a single option index
// against the expected raw percentages. Error is |predicted - expected| in
// percentage points; tolerance is max(toleranceFloor,
// expected*toleranceFraction); score is max(0, 1 - error/tolerance).
// A response with no parseable vector, or one too short for the index,
// scores zero.
func PerOptionAccuracy(response string, expected []float64, optionIndex int) Outcome {
	if optionIndex < 0 || optionIndex >= len(expected) {
		return FailedToParse{Explanation: fmt.Sprintf("option index %d out of range", optionIndex)}
	}

	predicted, ok := ParseVector(response)
	if !ok {
		return FailedToParse{Explanation: "no numeric vector found in response"}
	}

	if optionIndex >= len(predicted) {
		return FailedToParse{
			Explanation: fmt.Sprintf("parsed %d values, option index %d unavailable", len(predicted), optionIndex),
		}
	}

	want := expected[optionIndex]
	got := predicted[optionIndex]

	errPts := math.Abs(got - want)
	tolerance := math.Max(toleranceFloor, want*toleranceFraction)
	score := math.Max(0, 1-errPts/tolerance)

	explanation := fmt.Sprintf(
		"option %d: predicted %.4g, expected %.4g, error %.4g pts, tolerance %.4g pts",
		optionIndex, got, want, errPts, tolerance,
	)

	return Scored{Value: score, Explanation: explanation}
}
