package metric

import (
	"errors"
	"fmt"
	"math"
)

// Supported similarity metrics.
const (
	// MetricJSDivergence selects 1 - JSD(p,q) with log base 2.
	MetricJSDivergence = "js-divergence"

	// MetricCosine selects standard cosine similarity.
	MetricCosine = "cosine"

	// MetricEarthMover selects 1-D Wasserstein similarity over
	// normalised bins.
	MetricEarthMover = "earth-mover"
)

// Partial-credit score for a parsed vector of the wrong length: the model
// attempted the format but mismatched the option count.
const lengthMismatchScore = 0.1

// ErrUnknownMetric indicates an unsupported metric name in the args.
var ErrUnknownMetric = errors.New("unknown distribution metric")

// Args are the point-function arguments for a distribution comparison.
type Args struct {
	// Expected is the ground-truth distribution (raw percentages or counts).
	Expected []float64 `json:"expected"`

	// Metric selects the similarity function.
	Metric string `json:"metric"`

	// Threshold is the pass threshold applied downstream; scoring itself
	// does not consume it.
	Threshold float64 `json:"threshold"`
}

// Outcome is the result of a distribution comparison: either a scored
// similarity or a parse failure.
type Outcome interface {
	// Score returns the numeric score in [0, 1].
	Score() float64

	// Explain returns a human-readable account of the comparison.
	Explain() string
}

// Scored is a successful comparison.
type Scored struct {
	Value       float64
	Explanation string
}

// Score implements Outcome.
func (s Scored) Score() float64 { return s.Value }

// Explain implements Outcome.
func (s Scored) Explain() string { return s.Explanation }

// FailedToParse is a response from which no numeric vector could be read.
// Its score is zero.
type FailedToParse struct {
	Explanation string
}

// Score implements Outcome.
func (f FailedToParse) Score() float64 { return 0 }

// Explain implements Outcome.
func (f FailedToParse) Explain() string { return f.Explanation }

// DistributionScore parses a numeric vector from the response and compares
// it against the expected distribution with the selected metric. Both
// vectors are normalised to sum 1 before comparison. Identical
// distributions score 1.0 within floating-point tolerance.
func DistributionScore(response string, args Args) (Outcome, error) {
	if args.Metric != MetricJSDivergence && args.Metric != MetricCosine && args.Metric != MetricEarthMover {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, args.Metric)
	}

	predicted, ok := ParseVector(response)
	if !ok {
		return FailedToParse{Explanation: "no numeric vector found in response"}, nil
	}

	if len(predicted) != len(args.Expected) {
		explanation := fmt.Sprintf(
			"parsed %d values, expected %d: partial credit for attempting. predicted=%v expected=%v",
			len(predicted), len(args.Expected), predicted, args.Expected,
		)

		return Scored{Value: lengthMismatchScore, Explanation: explanation}, nil
	}

	p := normalize(args.Expected)
	q := normalize(predicted)

	var score float64

	switch args.Metric {
	case MetricJSDivergence:
		score = 1 - jensenShannonDivergence(p, q)
	case MetricCosine:
		score = cosineSimilarity(p, q)
	case MetricEarthMover:
		score = earthMoverSimilarity(p, q)
	}

	score = clamp01(score)

	explanation := fmt.Sprintf(
		"%s similarity %.4f. expected=%v predicted=%v",
		args.Metric, score, args.Expected, predicted,
	)

	return Scored{Value: score, Explanation: explanation}, nil
}

// normalize scales a non-negative vector to sum 1. A zero-sum vector maps
// to the uniform distribution to keep the divergences defined.
func normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		if v > 0 {
			sum += v
		}
	}

	out := make([]float64, len(vec))

	if sum == 0 {
		for i := range out {
			out[i] = 1 / float64(len(out))
		}

		return out
	}

	for i, v := range vec {
		if v > 0 {
			out[i] = v / sum
		}
	}

	return out
}

// jensenShannonDivergence computes JSD(p,q) with log base 2, bounded [0,1].
// Zero means identical distributions.
func jensenShannonDivergence(p, q []float64) float64 {
	var jsd float64

	for i := range p {
		m := (p[i] + q[i]) / 2

		jsd += klTerm(p[i], m) / 2
		jsd += klTerm(q[i], m) / 2
	}

	return jsd
}

// klTerm is one summand of the KL divergence in bits; 0*log(0/x) is 0.
func klTerm(a, m float64) float64 {
	if a == 0 || m == 0 {
		return 0
	}

	return a * math.Log2(a/m)
}

// cosineSimilarity is the standard dot product over magnitudes; in [0,1]
// for non-negative inputs.
func cosineSimilarity(p, q []float64) float64 {
	var dot, magP, magQ float64

	for i := range p {
		dot += p[i] * q[i]
		magP += p[i] * p[i]
		magQ += q[i] * q[i]
	}

	if magP == 0 || magQ == 0 {
		return 0
	}

	return dot / (math.Sqrt(magP) * math.Sqrt(magQ))
}

// earthMoverSimilarity is 1 minus the 1-D Wasserstein distance between the
// normalised distributions (sum of absolute cumulative differences).
func earthMoverSimilarity(p, q []float64) float64 {
	var cumP, cumQ, dist float64

	for i := range p {
		cumP += p[i]
		cumQ += q[i]
		dist += math.Abs(cumP - cumQ)
	}

	return 1 - dist
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}
