package summary

import (
	"math"
	"time"
)

// Lean converts a raw run artifact into the lean record used by every
// aggregate: per-point assessments stripped, hybrid and per-model means
// precomputed. The timestamp must come from the artifact filename.
func Lean(configID string, res RunResult, timestamp time.Time) RunRecord {
	lean := make([]CoverageScore, len(res.Scores))

	perModel := make(map[string]float64)
	perModelCount := make(map[string]int)

	for i, sc := range res.Scores {
		lean[i] = CoverageScore{ModelID: sc.ModelID, PromptID: sc.PromptID, Score: sc.Score}

		perModel[sc.ModelID] += sc.Score
		perModelCount[sc.ModelID]++
	}

	for id, total := range perModel {
		perModel[id] = total / float64(perModelCount[id])
	}

	if len(perModel) == 0 {
		perModel = nil
	}

	return RunRecord{
		ConfigID:       configID,
		RunLabel:       res.RunLabel,
		Timestamp:      timestamp.UTC(),
		Title:          res.Title,
		Tags:           res.Tags,
		Models:         res.Models,
		HybridScore:    hybridScore(res.Scores),
		PerModelScores: perModel,
		Scores:         lean,
		Timing:         res.Timing,
	}
}

// Shallow returns the record stripped of coverage detail, the form carried
// by the fleet-wide and homepage metadata entries.
func (r RunRecord) Shallow() RunRecord {
	r.Scores = nil

	return r
}

// hybridScore is the mean of all coverage scores in a run.
func hybridScore(scores []CoverageScore) float64 {
	if len(scores) == 0 {
		return 0
	}

	var total float64
	for _, sc := range scores {
		total += sc.Score
	}

	return total / float64(len(scores))
}

// MeanStdDev returns the mean and population standard deviation of vals.
func MeanStdDev(vals []float64) (mean, stdDev float64) {
	if len(vals) == 0 {
		return 0, 0
	}

	for _, v := range vals {
		mean += v
	}

	mean /= float64(len(vals))

	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}

	variance /= float64(len(vals))

	return mean, math.Sqrt(variance)
}

// MergeRun applies the standard per-config update transform: replace any
// record for the same run, prepend the new one, cap retained runs, and
// recompute the overall statistics. Replaying the same record is an
// identity operation.
func MergeRun(existing PerConfig, rec RunRecord) PerConfig {
	runs := make([]RunRecord, 0, len(existing.Runs)+1)
	runs = append(runs, rec)

	replaced := false

	for _, r := range existing.Runs {
		if r.SameRun(rec) {
			replaced = true

			continue
		}

		runs = append(runs, r)
	}

	if len(runs) > maxRetainedRuns {
		runs = runs[:maxRetainedRuns]
	}

	scores := make([]float64, len(runs))
	for i, r := range runs {
		scores[i] = r.HybridScore
	}

	mean, stdDev := MeanStdDev(scores)

	total := existing.TotalRuns
	if !replaced {
		total++
	}

	out := existing
	out.ConfigID = rec.ConfigID
	out.Runs = runs
	out.OverallMean = mean
	out.OverallStdDev = stdDev
	out.TotalRuns = total

	if rec.Title != "" {
		out.Title = rec.Title
	}

	if len(rec.Tags) > 0 {
		out.Tags = rec.Tags
	}

	return out
}
