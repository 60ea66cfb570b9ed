package extraction

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultMinScore is the lowest RAKE score a phrase needs to become a tag.
const DefaultMinScore = 3.0

// tokenPattern splits text into runs of word characters and runs of
// everything else that is not whitespace.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]+`)

// RakeExtractor scores candidate phrases with RAKE: text is cut into
// phrases at stop words and punctuation, each word scores degree/frequency
// over the phrases it appears in, and a phrase scores the sum of its words.
type RakeExtractor struct {
	minScore  float64
	stopwords map[string]struct{}
	banned    []string
}

// Option configures a RakeExtractor.
type Option func(*RakeExtractor)

// WithMinScore sets the score threshold for tags.
func WithMinScore(score float64) Option {
	return func(r *RakeExtractor) { r.minScore = score }
}

// WithBanned replaces the banned phrase list.
func WithBanned(phrases ...string) Option {
	return func(r *RakeExtractor) {
		r.banned = r.banned[:0]
		for _, p := range phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				r.banned = append(r.banned, p)
			}
		}
	}
}

// NewTagExtractor returns a RAKE extractor using the English stop-word list,
// DefaultBanned and DefaultMinScore unless overridden.
func NewTagExtractor(opts ...Option) *RakeExtractor {
	r := &RakeExtractor{
		minScore:  DefaultMinScore,
		stopwords: make(map[string]struct{}, len(englishStopwords)),
		banned:    append([]string(nil), DefaultBanned...),
	}
	for _, w := range englishStopwords {
		r.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank returns every candidate phrase in text with its score, highest
// first. Ties are ordered alphabetically. No threshold or banned filtering
// is applied.
func (r *RakeExtractor) Rank(text string) []ScoredPhrase {
	phrases := r.phrases(text)
	if len(phrases) == 0 {
		return nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, p := range phrases {
		for _, w := range p {
			freq[w]++
			degree[w] += len(p)
		}
	}

	seen := make(map[string]struct{}, len(phrases))
	ranked := make([]ScoredPhrase, 0, len(phrases))
	for _, p := range phrases {
		joined := strings.Join(p, " ")
		if _, dup := seen[joined]; dup {
			continue
		}
		seen[joined] = struct{}{}

		var score float64
		for _, w := range p {
			score += float64(degree[w]) / float64(freq[w])
		}
		ranked = append(ranked, ScoredPhrase{Phrase: joined, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Phrase < ranked[j].Phrase
	})
	return ranked
}

// ExtractTags returns phrases scoring at least the threshold that are not
// banned, lowercased and sorted.
func (r *RakeExtractor) ExtractTags(text string) []string {
	tags := []string{}
	for _, sp := range r.Rank(text) {
		if sp.Score < r.minScore {
			continue
		}
		phrase := strings.TrimSpace(sp.Phrase)
		if phrase == "" || r.isBanned(phrase) {
			continue
		}
		tags = append(tags, phrase)
	}
	sort.Strings(tags)
	return tags
}

func (r *RakeExtractor) isBanned(phrase string) bool {
	for _, b := range r.banned {
		if strings.Contains(phrase, b) {
			return true
		}
	}
	return false
}

// phrases tokenizes lowercased text and groups consecutive content words.
// Stop words and punctuation runs end the current phrase.
func (r *RakeExtractor) phrases(text string) [][]string {
	var (
		out     [][]string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
			current = nil
		}
	}

	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if r.isDelimiter(tok) {
			flush()
			continue
		}
		current = append(current, tok)
	}
	flush()
	return out
}

func (r *RakeExtractor) isDelimiter(tok string) bool {
	if _, stop := r.stopwords[tok]; stop {
		return true
	}
	// The pattern yields either a pure word run or a pure non-word run, so
	// checking the first rune is enough.
	return !isWordRune([]rune(tok)[0])
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

var _ TagExtractor = (*RakeExtractor)(nil)
