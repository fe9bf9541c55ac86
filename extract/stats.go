package extract

import (
	"strings"

	"github.com/hupe1980/agentsim/core"
)

// computeStatistics derives the heuristic statistics from the interaction
// records. Empty input yields all-zero statistics, never an error.
func (e *Extractor) computeStatistics(records []core.InteractionRecord) *core.ExtractionResult {
	result := &core.ExtractionResult{
		Engagement: make(map[string]float64),
		Themes:     make([]core.ThemeCandidate, 0, len(e.opts.Themes)),
	}
	for _, theme := range e.opts.Themes {
		result.Themes = append(result.Themes, core.ThemeCandidate{Theme: theme})
	}

	counts := make(map[string]int)
	lengths := make(map[string]int)
	totalLength := 0

	for _, rec := range records {
		length := len([]rune(rec.Utterance))
		counts[rec.Agent]++
		lengths[rec.Agent] += length
		totalLength += length

		result.Sentiment = bucketSentiment(result.Sentiment, rec.Utterance, e.opts.PositiveKeywords, e.opts.NegativeKeywords)
	}

	result.Stats.Participants = len(counts)
	result.Stats.TotalUtterances = len(records)
	if len(records) > 0 {
		result.Stats.MeanUtteranceLength = float64(totalLength) / float64(len(records))
	}

	for agent, count := range counts {
		avgLength := float64(lengths[agent]) / float64(count)
		result.Engagement[agent] = engagementScore(count, avgLength)
	}
	return result
}

// engagementScore is a bounded function of utterance count and average
// length: frequent speakers saturate the count term at five utterances,
// long-winded ones the length term at 100 characters. Clipped to [0,1].
func engagementScore(count int, avgLength float64) float64 {
	score := min(float64(count)*0.2, 1.0) + min(avgLength/100.0, 0.5)
	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

// bucketSentiment assigns one utterance to a sentiment bucket by keyword
// containment on the lowercased text. Positive wins when both match;
// everything else is neutral. Intentionally simple.
func bucketSentiment(dist core.SentimentDistribution, utterance string, positive, negative []string) core.SentimentDistribution {
	lowered := strings.ToLower(utterance)
	for _, kw := range positive {
		if strings.Contains(lowered, kw) {
			dist.Positive++
			return dist
		}
	}
	for _, kw := range negative {
		if strings.Contains(lowered, kw) {
			dist.Negative++
			return dist
		}
	}
	dist.Neutral++
	return dist
}
