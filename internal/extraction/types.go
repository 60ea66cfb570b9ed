package extraction

// TagExtractor derives topical tags from conversational text.
type TagExtractor interface {
	// ExtractTags returns the normalized, deduplicated tags found in text,
	// sorted. Empty or low-information text yields an empty slice.
	ExtractTags(text string) []string
}

// ScoredPhrase is a candidate keyword phrase with its RAKE score.
type ScoredPhrase struct {
	Phrase string  `json:"phrase"`
	Score  float64 `json:"score"`
}
