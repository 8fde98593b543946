package backfill

import (
	"sort"
	"strings"
	"time"

	"github.com/collect-intel/dtef-app-sub001/internal/blueprint"
	"github.com/collect-intel/dtef-app-sub001/internal/models"
	"github.com/collect-intel/dtef-app-sub001/internal/summary"
)

// driftThreshold is the absolute hybrid-score delta between a blueprint's
// two most recent runs that flags a potential model drift.
const driftThreshold = 0.15

// buildFleet rebuilds the fleet-wide summary from per-config summaries,
// sorted by config id for a deterministic encoding.
func buildFleet(configs []summary.PerConfig, now time.Time) summary.Fleet {
	entries := make([]summary.FleetEntry, 0, len(configs))

	for _, pc := range configs {
		entry := summary.FleetEntry{
			ConfigID:    pc.ConfigID,
			Title:       pc.Title,
			Description: pc.Description,
			Tags:        pc.Tags,
			TotalRuns:   pc.TotalRuns,
		}

		if len(pc.Runs) > 0 {
			shallow := pc.Runs[0].Shallow()
			entry.LatestRun = &shallow
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ConfigID < entries[j].ConfigID })

	return summary.Fleet{Entries: entries, LastUpdated: now}
}

// collectRuns flattens all lean run records, newest first.
func collectRuns(configs []summary.PerConfig) []summary.RunRecord {
	var runs []summary.RunRecord

	for _, pc := range configs {
		runs = append(runs, pc.Runs...)
	}

	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })

	return runs
}

// buildLatest takes the newest lean records as the idempotent latest-N
// baseline. Coverage scores stay; only the fleet metadata strips them.
func buildLatest(runs []summary.RunRecord, now time.Time) summary.LatestRuns {
	out := make([]summary.RunRecord, 0, summary.LatestRunsCap)

	for _, r := range runs {
		if len(out) == summary.LatestRunsCap {
			break
		}

		out = append(out, r)
	}

	return summary.LatestRuns{Runs: out, LastUpdated: now}
}

// buildHomepage assembles the hybrid homepage structure: featured
// blueprints in full, the rest as metadata, and derived analytics.
// Blueprints tagged for API-only exposure are excluded throughout.
func buildHomepage(configs []summary.PerConfig, now time.Time) summary.Homepage {
	var page summary.Homepage

	visible := make([]summary.PerConfig, 0, len(configs))

	for _, pc := range configs {
		if hasTag(pc.Tags, blueprint.TagPublicAPI) {
			continue
		}

		visible = append(visible, pc)

		if hasTag(pc.Tags, blueprint.TagFeatured) {
			page.Featured = append(page.Featured, pc)

			continue
		}

		entry := summary.FleetEntry{
			ConfigID:    pc.ConfigID,
			Title:       pc.Title,
			Description: pc.Description,
			Tags:        pc.Tags,
			TotalRuns:   pc.TotalRuns,
		}

		if len(pc.Runs) > 0 {
			shallow := pc.Runs[0].Shallow()
			entry.LatestRun = &shallow
		}

		page.Others = append(page.Others, entry)
	}

	sort.Slice(page.Featured, func(i, j int) bool { return page.Featured[i].ConfigID < page.Featured[j].ConfigID })
	sort.Slice(page.Others, func(i, j int) bool { return page.Others[i].ConfigID < page.Others[j].ConfigID })

	runs := collectRuns(visible)

	page.Headline = buildHeadline(visible, runs)
	page.Drift = buildDrift(visible)
	page.Champions = buildChampions(runs)
	page.LastUpdated = now

	return page
}

func buildHeadline(configs []summary.PerConfig, runs []summary.RunRecord) summary.HeadlineStats {
	modelSet := make(map[string]struct{})

	scores := make([]float64, 0, len(runs))
	totalRuns := 0

	for _, pc := range configs {
		totalRuns += pc.TotalRuns
	}

	for _, r := range runs {
		scores = append(scores, r.HybridScore)

		for _, m := range r.Models {
			modelSet[models.BaseModelID(m)] = struct{}{}
		}
	}

	mean, _ := summary.MeanStdDev(scores)

	return summary.HeadlineStats{
		TotalBlueprints: len(configs),
		TotalRuns:       totalRuns,
		MeanHybridScore: mean,
		DistinctModels:  len(modelSet),
	}
}

// buildDrift compares each blueprint's two most recent runs and flags
// sharp movements.
func buildDrift(configs []summary.PerConfig) []summary.DriftIndicator {
	var drift []summary.DriftIndicator

	for _, pc := range configs {
		if len(pc.Runs) < 2 {
			continue
		}

		latest := pc.Runs[0].HybridScore
		previous := pc.Runs[1].HybridScore

		delta := latest - previous
		if delta > -driftThreshold && delta < driftThreshold {
			continue
		}

		drift = append(drift, summary.DriftIndicator{
			ConfigID:      pc.ConfigID,
			PreviousScore: previous,
			LatestScore:   latest,
			Delta:         delta,
		})
	}

	sort.Slice(drift, func(i, j int) bool { return drift[i].ConfigID < drift[j].ConfigID })

	return drift
}

// buildChampions names the best mean-scoring base model per non-reserved tag.
func buildChampions(runs []summary.RunRecord) []summary.TopicChampion {
	type acc struct {
		total float64
		count int
	}

	perTag := make(map[string]map[string]*acc)

	for _, r := range runs {
		for _, tag := range r.Tags {
			if strings.HasPrefix(tag, "_") {
				continue
			}

			if perTag[tag] == nil {
				perTag[tag] = make(map[string]*acc)
			}

			for modelID, score := range r.PerModelScores {
				base := models.BaseModelID(modelID)

				a := perTag[tag][base]
				if a == nil {
					a = &acc{}
					perTag[tag][base] = a
				}

				a.total += score
				a.count++
			}
		}
	}

	champions := make([]summary.TopicChampion, 0, len(perTag))

	for tag, byModel := range perTag {
		var best summary.TopicChampion

		for base, a := range byModel {
			mean := a.total / float64(a.count)

			if best.BaseModelID == "" || mean > best.MeanScore ||
				(mean == best.MeanScore && base < best.BaseModelID) {
				best = summary.TopicChampion{Tag: tag, BaseModelID: base, MeanScore: mean, RunCount: a.count}
			}
		}

		champions = append(champions, best)
	}

	sort.Slice(champions, func(i, j int) bool { return champions[i].Tag < champions[j].Tag })

	return champions
}

// buildModelSummaries aggregates per-base-model statistics across all runs:
// mean hybrid score plus the best and worst blueprint by that model's own
// mean score there.
func buildModelSummaries(configs []summary.PerConfig, now time.Time) []summary.ModelSummary {
	type perConfigAcc struct {
		total float64
		count int
	}

	type modelAcc struct {
		total     float64
		count     int
		perConfig map[string]*perConfigAcc
	}

	byModel := make(map[string]*modelAcc)

	for _, pc := range configs {
		for _, r := range pc.Runs {
			for modelID, score := range r.PerModelScores {
				base := models.BaseModelID(modelID)

				m := byModel[base]
				if m == nil {
					m = &modelAcc{perConfig: make(map[string]*perConfigAcc)}
					byModel[base] = m
				}

				m.total += score
				m.count++

				c := m.perConfig[pc.ConfigID]
				if c == nil {
					c = &perConfigAcc{}
					m.perConfig[pc.ConfigID] = c
				}

				c.total += score
				c.count++
			}
		}
	}

	out := make([]summary.ModelSummary, 0, len(byModel))

	for base, m := range byModel {
		ms := summary.ModelSummary{
			BaseModelID:     base,
			RunCount:        m.count,
			MeanHybridScore: m.total / float64(m.count),
			LastUpdated:     now,
		}

		for configID, c := range m.perConfig {
			mean := c.total / float64(c.count)
			score := summary.BlueprintScore{ConfigID: configID, Score: mean}

			if ms.Best == nil || mean > ms.Best.Score ||
				(mean == ms.Best.Score && configID < ms.Best.ConfigID) {
				best := score
				ms.Best = &best
			}

			if ms.Worst == nil || mean < ms.Worst.Score ||
				(mean == ms.Worst.Score && configID < ms.Worst.ConfigID) {
				worst := score
				ms.Worst = &worst
			}
		}

		out = append(out, ms)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].BaseModelID < out[j].BaseModelID })

	return out
}

// buildSurveyStats aggregates demographic-survey runs per survey id.
// Returns nil when no run carries the survey tag.
func buildSurveyStats(configs []summary.PerConfig) []summary.SurveyStats {
	type surveyAcc struct {
		total    float64
		count    int
		perModel map[string]*[2]float64 // total, count
	}

	bySurvey := make(map[string]*surveyAcc)

	for _, pc := range configs {
		if !hasTag(pc.Tags, blueprint.TagDTEF) {
			continue
		}

		id := SurveyID(pc.ConfigID)

		s := bySurvey[id]
		if s == nil {
			s = &surveyAcc{perModel: make(map[string]*[2]float64)}
			bySurvey[id] = s
		}

		for _, r := range pc.Runs {
			s.total += r.HybridScore
			s.count++

			for modelID, score := range r.PerModelScores {
				base := models.BaseModelID(modelID)

				acc := s.perModel[base]
				if acc == nil {
					acc = &[2]float64{}
					s.perModel[base] = acc
				}

				acc[0] += score
				acc[1]++
			}
		}
	}

	out := make([]summary.SurveyStats, 0, len(bySurvey))

	for id, s := range bySurvey {
		if s.count == 0 {
			continue
		}

		perModel := make(map[string]float64, len(s.perModel))
		for base, acc := range s.perModel {
			perModel[base] = acc[0] / acc[1]
		}

		out = append(out, summary.SurveyStats{
			SurveyID:        id,
			RunCount:        s.count,
			MeanHybridScore: s.total / float64(s.count),
			PerModelScores:  perModel,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SurveyID < out[j].SurveyID })

	return out
}

// SurveyID derives the survey identifier from a demographic blueprint's
// config id: the segment after the leading "dtef" segment when present,
// otherwise the first segment.
func SurveyID(configID string) string {
	segments := strings.Split(configID, blueprint.IDDelimiter)

	if segments[0] == blueprint.TagDTEF && len(segments) > 1 {
		return segments[1]
	}

	return segments[0]
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}

	return false
}
