package core

// ParticipantStats aggregates simple participation counts over a transcript.
type ParticipantStats struct {
	// Participants is the number of distinct speakers with recorded
	// utterances.
	Participants int `json:"participants"`
	// TotalUtterances is the number of interaction records.
	TotalUtterances int `json:"total_utterances"`
	// MeanUtteranceLength is the mean character length of utterances,
	// zero when there are none.
	MeanUtteranceLength float64 `json:"mean_utterance_length"`
}

// SentimentDistribution buckets utterances by keyword matching. The counting
// is intentionally simple; it is a heuristic, not sentiment analysis.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// ThemeCandidate names a candidate discussion theme with its frequency.
// Frequencies stay zero absent deeper analysis.
type ThemeCandidate struct {
	Theme     string `json:"theme"`
	Frequency int    `json:"frequency"`
}

// ExtractionResult carries the engine's structured output plus derived
// statistics. A failed extraction sets Error instead of discarding the
// transcript the statistics were computed from.
type ExtractionResult struct {
	// Raw is the engine-native structured extraction output; nil when the
	// extraction failed or was not requested.
	Raw map[string]any `json:"raw,omitempty"`
	// Stats aggregates participation over the interaction records.
	Stats ParticipantStats `json:"stats"`
	// Sentiment buckets utterances into positive/negative/neutral.
	Sentiment SentimentDistribution `json:"sentiment"`
	// Engagement maps cleaned agent names to scores clipped to [0,1].
	Engagement map[string]float64 `json:"engagement"`
	// Themes is the fixed candidate theme list.
	Themes []ThemeCandidate `json:"themes"`
	// Error carries the extraction failure, if any, as text.
	Error string `json:"error,omitempty"`
}
