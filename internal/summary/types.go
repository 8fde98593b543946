// Package summary defines the aggregate artifact shapes and the serialised
// incremental updater that keeps them current after every completed run.
package summary

import "time"

// Per-config summaries retain at most this many recent runs.
const maxRetainedRuns = 50

// LatestRunsCap bounds the fleet-wide most-recent-runs summary.
const LatestRunsCap = 50

// PointAssessment is one point-function verdict inside a coverage score.
// Stripped from all lean encodings.
type PointAssessment struct {
	Fn      string  `json:"fn"`
	Score   float64 `json:"score"`
	Explain string  `json:"explain,omitempty"`
}

// CoverageScore is the scored outcome of one model on one prompt.
type CoverageScore struct {
	ModelID     string            `json:"modelId"`
	PromptID    string            `json:"promptId"`
	Score       float64           `json:"score"`
	Assessments []PointAssessment `json:"assessments,omitempty"`
}

// Timing is the optional phase breakdown recorded by the pipeline.
type Timing struct {
	GenerationMS int64  `json:"generationMs"`
	EvaluationMS int64  `json:"evaluationMs"`
	SaveMS       int64  `json:"saveMs"`
	SlowestModel string `json:"slowestModel,omitempty"`
	FastestModel string `json:"fastestModel,omitempty"`
}

// RunResult is a raw run artifact as written by the pipeline runner. The
// Timestamp field inside the body is advisory; the filename-derived
// timestamp is canonical.
type RunResult struct {
	RunLabel    string          `json:"runLabel"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Models      []string        `json:"models"`
	Scores      []CoverageScore `json:"scores"`
	Timing      *Timing         `json:"timing,omitempty"`
}

// RunRecord is the lean encoding of one run: coverage scores retained with
// per-point-assessment arrays stripped.
type RunRecord struct {
	ConfigID       string             `json:"configId"`
	RunLabel       string             `json:"runLabel"`
	Timestamp      time.Time          `json:"timestamp"`
	Title          string             `json:"title,omitempty"`
	Tags           []string           `json:"tags,omitempty"`
	Models         []string           `json:"models"`
	HybridScore    float64            `json:"hybridScore"`
	PerModelScores map[string]float64 `json:"perModelScores,omitempty"`
	Scores         []CoverageScore    `json:"scores,omitempty"`
	Timing         *Timing            `json:"timing,omitempty"`
}

// SameRun reports whether two records describe the same run.
func (r RunRecord) SameRun(other RunRecord) bool {
	return r.ConfigID == other.ConfigID &&
		r.RunLabel == other.RunLabel &&
		r.Timestamp.Equal(other.Timestamp)
}

// PerConfig is the compact digest of all runs for a single blueprint.
type PerConfig struct {
	ConfigID      string      `json:"configId"`
	Title         string      `json:"title,omitempty"`
	Description   string      `json:"description,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	Runs          []RunRecord `json:"runs"`
	OverallMean   float64     `json:"overallMean"`
	OverallStdDev float64     `json:"overallStdDev"`
	TotalRuns     int         `json:"totalRuns"`
	LastUpdated   time.Time   `json:"lastUpdated"`
}

// FleetEntry is one blueprint's row in the fleet-wide summary: the single
// most recent run stripped of coverage detail, plus a total-run-count hint.
type FleetEntry struct {
	ConfigID    string     `json:"configId"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	LatestRun   *RunRecord `json:"latestRun,omitempty"`
	TotalRuns   int        `json:"totalRuns"`
}

// Fleet is the fleet-wide "all blueprints" summary, the catalogue source
// for downstream dashboards.
type Fleet struct {
	Entries     []FleetEntry `json:"entries"`
	LastUpdated time.Time    `json:"lastUpdated"`
}

// LatestRuns is the bounded most-recent-runs summary: sorted strictly
// descending by timestamp, no duplicate (configId, runLabel, timestamp)
// triples, at most LatestRunsCap entries.
type LatestRuns struct {
	Runs        []RunRecord `json:"runs"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// HeadlineStats are the fleet-level aggregates shown on the homepage.
type HeadlineStats struct {
	TotalBlueprints int     `json:"totalBlueprints"`
	TotalRuns       int     `json:"totalRuns"`
	MeanHybridScore float64 `json:"meanHybridScore"`
	DistinctModels  int     `json:"distinctModels"`
}

// DriftIndicator flags a blueprint whose latest score moved sharply against
// its own history.
type DriftIndicator struct {
	ConfigID      string  `json:"configId"`
	BaseModelID   string  `json:"baseModelId,omitempty"`
	PreviousScore float64 `json:"previousScore"`
	LatestScore   float64 `json:"latestScore"`
	Delta         float64 `json:"delta"`
}

// TopicChampion names the best-scoring base model for one tag.
type TopicChampion struct {
	Tag         string  `json:"tag"`
	BaseModelID string  `json:"baseModelId"`
	MeanScore   float64 `json:"meanScore"`
	RunCount    int     `json:"runCount"`
}

// Homepage is the hybrid drain-time structure: full recent-run detail for
// featured blueprints, metadata only for the rest, plus derived analytics.
type Homepage struct {
	Featured    []PerConfig      `json:"featured"`
	Others      []FleetEntry     `json:"others"`
	Headline    HeadlineStats    `json:"headline"`
	Drift       []DriftIndicator `json:"drift,omitempty"`
	Champions   []TopicChampion  `json:"champions,omitempty"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// BlueprintScore is a per-blueprint extremum inside a model summary.
type BlueprintScore struct {
	ConfigID string  `json:"configId"`
	Score    float64 `json:"score"`
}

// ModelSummary aggregates one base model's performance across the fleet.
type ModelSummary struct {
	BaseModelID     string          `json:"baseModelId"`
	RunCount        int             `json:"runCount"`
	MeanHybridScore float64         `json:"meanHybridScore"`
	Best            *BlueprintScore `json:"best,omitempty"`
	Worst           *BlueprintScore `json:"worst,omitempty"`
	LastUpdated     time.Time       `json:"lastUpdated"`
}

// SurveyStats aggregates demographic-survey prediction accuracy for one
// survey across models.
type SurveyStats struct {
	SurveyID        string             `json:"surveyId"`
	RunCount        int                `json:"runCount"`
	MeanHybridScore float64            `json:"meanHybridScore"`
	PerModelScores  map[string]float64 `json:"perModelScores,omitempty"`
}

// DTEFSummary is the combined demographic-survey summary; per-survey
// summaries hold a single SurveyStats each.
type DTEFSummary struct {
	Surveys     []SurveyStats `json:"surveys"`
	LastUpdated time.Time     `json:"lastUpdated"`
}
