// Package tagmatch finds past exchanges whose tags resemble tags in new
// input.
package tagmatch

import (
	"context"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/fyrsmithlabs/recall/internal/extraction"
	"github.com/fyrsmithlabs/recall/internal/memlog"
)

// DefaultThreshold is the minimum similarity ratio for a tag to match.
const DefaultThreshold = 0.4

// Reader is the part of the memory log the matcher needs.
type Reader interface {
	ReadAll(ctx context.Context, key string) ([]memlog.Record, error)
}

// Matcher resolves tags against a user's log.
type Matcher struct {
	reader    Reader
	extractor extraction.TagExtractor
	threshold float64
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold overrides DefaultThreshold.
func WithThreshold(t float64) Option {
	return func(m *Matcher) { m.threshold = t }
}

// New returns a Matcher reading from reader and extracting query tags with
// extractor.
func New(reader Reader, extractor extraction.TagExtractor, opts ...Option) *Matcher {
	m := &Matcher{
		reader:    reader,
		extractor: extractor,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Threshold returns the configured match threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Matches reports whether any candidate's similarity ratio to queryTag is at
// least threshold. Comparison ignores case.
func Matches(queryTag string, candidates []string, threshold float64) bool {
	q := strings.Split(strings.ToLower(queryTag), "")
	sm := difflib.NewMatcher(nil, q)
	for _, c := range candidates {
		sm.SetSeq1(strings.Split(strings.ToLower(c), ""))
		if sm.RealQuickRatio() >= threshold &&
			sm.QuickRatio() >= threshold &&
			sm.Ratio() >= threshold {
			return true
		}
	}
	return false
}

// RetrieveByTag returns the records in key's log with a tag matching
// queryTag, in log order.
func (m *Matcher) RetrieveByTag(ctx context.Context, queryTag, key string) ([]memlog.Record, error) {
	records, err := m.reader.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	return m.filter(queryTag, records), nil
}

// TriggerMemoryCheck extracts tags from input and maps each tag that
// matches at least one record to those records. The log is read once.
func (m *Matcher) TriggerMemoryCheck(ctx context.Context, input, key string) (map[string][]memlog.Record, error) {
	triggered := make(map[string][]memlog.Record)

	tags := m.extractor.ExtractTags(input)
	if len(tags) == 0 {
		return triggered, nil
	}

	records, err := m.reader.ReadAll(ctx, key)
	if err != nil {
		return nil, err
	}
	for _, tag := range tags {
		if hits := m.filter(tag, records); len(hits) > 0 {
			triggered[tag] = hits
		}
	}
	return triggered, nil
}

func (m *Matcher) filter(queryTag string, records []memlog.Record) []memlog.Record {
	var out []memlog.Record
	for _, r := range records {
		if Matches(queryTag, r.Tags, m.threshold) {
			out = append(out, r)
		}
	}
	return out
}
