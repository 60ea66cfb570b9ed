// Package summarize produces extractive summaries of conversation history.
package summarize

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
)

// ErrModelUnavailable reports a summarizer failure. It matches
// embeddings.ErrModelUnavailable under errors.Is.
var ErrModelUnavailable = fmt.Errorf("summarizer: %w", embeddings.ErrModelUnavailable)

// DefaultSentences is the default summary length.
const DefaultSentences = 5

const (
	defaultThreshold = 0.1
	defaultEpsilon   = 0.1
	maxIterations    = 1000
)

// Summarizer selects up to n sentences from text.
type Summarizer interface {
	Summarize(ctx context.Context, text string, n int) (string, error)
}

// LexRank ranks sentences by eigenvector centrality in a graph whose edges
// join sentences with idf-weighted cosine similarity above a threshold.
type LexRank struct {
	threshold float64
	epsilon   float64
}

// LexRankOption configures LexRank.
type LexRankOption func(*LexRank)

// WithThreshold sets the similarity above which two sentences are linked.
func WithThreshold(t float64) LexRankOption {
	return func(l *LexRank) { l.threshold = t }
}

// WithEpsilon sets the power iteration convergence bound.
func WithEpsilon(e float64) LexRankOption {
	return func(l *LexRank) { l.epsilon = e }
}

// NewLexRank returns a LexRank summarizer.
func NewLexRank(opts ...LexRankOption) *LexRank {
	l := &LexRank{threshold: defaultThreshold, epsilon: defaultEpsilon}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Summarize returns the n highest ranked sentences of text joined by
// newlines, in the order they appear in text. Text without sentences
// yields "".
func (l *LexRank) Summarize(ctx context.Context, text string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	scores, err := l.Rank(sentences)
	if err != nil {
		return "", err
	}

	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})
	order = order[:min(n, len(order))]
	slices.Sort(order)

	picked := make([]string, len(order))
	for i, idx := range order {
		picked[i] = sentences[idx]
	}
	return strings.Join(picked, "\n"), nil
}

// Rank scores each sentence. Scores sum to at most one.
func (l *LexRank) Rank(sentences []string) ([]float64, error) {
	words := make([][]string, len(sentences))
	for i, s := range sentences {
		words[i] = tokenize(s)
	}

	tf := make([]map[string]float64, len(words))
	for i, ws := range words {
		tf[i] = termFrequencies(ws)
	}
	idf := inverseDocumentFrequencies(words)

	n := len(sentences)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		degree := 0.0
		for j := range n {
			if cosine(words[i], words[j], tf[i], tf[j], idf) > l.threshold {
				matrix[i][j] = 1
				degree++
			}
		}
		if degree == 0 {
			degree = 1
		}
		for j := range n {
			matrix[i][j] /= degree
		}
	}

	scores, err := l.powerMethod(matrix)
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (l *LexRank) powerMethod(matrix [][]float64) ([]float64, error) {
	n := len(matrix)
	p := make([]float64, n)
	for i := range p {
		p[i] = 1 / float64(n)
	}

	for range maxIterations {
		next := make([]float64, n)
		for i := range n {
			for j := range n {
				next[j] += matrix[i][j] * p[i]
			}
		}
		var delta float64
		for i := range n {
			d := next[i] - p[i]
			delta += d * d
		}
		p = next
		if math.IsNaN(delta) {
			return nil, fmt.Errorf("%w: ranking diverged", ErrModelUnavailable)
		}
		if math.Sqrt(delta) <= l.epsilon {
			break
		}
	}
	return p, nil
}

func termFrequencies(words []string) map[string]float64 {
	counts := make(map[string]float64, len(words))
	var peak float64
	for _, w := range words {
		counts[w]++
		peak = max(peak, counts[w])
	}
	for w := range counts {
		counts[w] /= peak
	}
	return counts
}

func inverseDocumentFrequencies(sentences [][]string) map[string]float64 {
	df := make(map[string]int)
	for _, ws := range sentences {
		seen := make(map[string]bool, len(ws))
		for _, w := range ws {
			if !seen[w] {
				seen[w] = true
				df[w]++
			}
		}
	}
	n := float64(len(sentences))
	idf := make(map[string]float64, len(df))
	for w, c := range df {
		idf[w] = math.Log(n / float64(1+c))
	}
	return idf
}

func cosine(w1, w2 []string, tf1, tf2 map[string]float64, idf map[string]float64) float64 {
	var num float64
	for w := range tf1 {
		if t2, ok := tf2[w]; ok {
			num += tf1[w] * t2 * idf[w] * idf[w]
		}
	}
	var d1, d2 float64
	for _, w := range w1 {
		v := tf1[w] * idf[w]
		d1 += v * v
	}
	for _, w := range w2 {
		v := tf2[w] * idf[w]
		d2 += v * v
	}
	if d1 == 0 || d2 == 0 {
		return 0
	}
	return num / (math.Sqrt(d1) * math.Sqrt(d2))
}

// tokenize lowercases s and returns its words, dropping tokens with no
// letter or digit.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// SplitSentences splits text into sentences. Blank lines end a paragraph
// and always end a sentence; single newlines are read as spaces.
func SplitSentences(text string) []string {
	var sentences []string
	for _, para := range splitParagraphs(text) {
		sentences = append(sentences, splitParagraph(para)...)
	}
	return sentences
}

func splitParagraphs(text string) []string {
	var (
		paras   []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			paras = append(paras, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paras
}

func splitParagraph(para string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	runes := []rune(para)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Absorb runs like "?!" or "..." and closing quotes.
		for i+1 < len(runes) && strings.ContainsRune(".!?\"')]", runes[i+1]) {
			i++
			current.WriteRune(runes[i])
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
