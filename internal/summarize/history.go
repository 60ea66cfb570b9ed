package summarize

import (
	"context"
	"strings"

	"github.com/fyrsmithlabs/recall/internal/memlog"
)

// Sentinel is returned instead of a summary when there is too little
// history to summarize.
const Sentinel = " "

// DefaultMinWords is the history size below which no summary is attempted.
const DefaultMinWords = 50

// Reader is the part of the memory log the summarizer needs.
type Reader interface {
	ReadAll(ctx context.Context, key string) ([]memlog.Record, error)
}

// History summarizes a user's whole log.
type History struct {
	reader     Reader
	summarizer Summarizer
	sentences  int
	minWords   int
}

// HistoryOption configures History.
type HistoryOption func(*History)

// WithSentences sets the summary length.
func WithSentences(n int) HistoryOption {
	return func(h *History) { h.sentences = n }
}

// WithMinWords sets the minimum history size in words.
func WithMinWords(n int) HistoryOption {
	return func(h *History) { h.minWords = n }
}

// NewHistory returns a History reading from reader. A nil summarizer uses
// LexRank.
func NewHistory(reader Reader, summarizer Summarizer, opts ...HistoryOption) *History {
	if summarizer == nil {
		summarizer = NewLexRank()
	}
	h := &History{
		reader:     reader,
		summarizer: summarizer,
		sentences:  DefaultSentences,
		minWords:   DefaultMinWords,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SummarizeUserHistory summarizes every exchange in key's log. An empty log
// or one shorter than the minimum word count yields Sentinel without
// running the summarizer.
func (h *History) SummarizeUserHistory(ctx context.Context, key string) (string, error) {
	records, err := h.reader.ReadAll(ctx, key)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return Sentinel, nil
	}

	blocks := make([]string, len(records))
	for i, r := range records {
		blocks[i] = r.Render()
	}
	full := strings.Join(blocks, "\n\n")
	if len(strings.Fields(full)) < h.minWords {
		return Sentinel, nil
	}

	return h.summarizer.Summarize(ctx, full, h.sentences)
}
