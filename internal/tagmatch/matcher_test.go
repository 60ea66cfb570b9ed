package tagmatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recall/internal/extraction"
	"github.com/fyrsmithlabs/recall/internal/memlog"
)

type staticReader struct {
	records []memlog.Record
	err     error
	reads   int
}

func (s *staticReader) ReadAll(context.Context, string) ([]memlog.Record, error) {
	s.reads++
	return s.records, s.err
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		candidates []string
		threshold  float64
		want       bool
	}{
		{name: "close word", query: "anxiety", candidates: []string{"anxious feelings", "work stress"}, threshold: 0.4, want: true},
		{name: "unrelated", query: "anxiety", candidates: []string{"unrelated topic"}, threshold: 0.4, want: false},
		{name: "case insensitive", query: "Kubernetes", candidates: []string{"KUBERNETES"}, threshold: 1, want: true},
		{name: "no candidates", query: "anything", candidates: nil, threshold: 0.4, want: false},
		{name: "zero threshold", query: "a", candidates: []string{"zzz"}, threshold: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.query, tt.candidates, tt.threshold))
		})
	}
}

func TestRetrieveByTag(t *testing.T) {
	reader := &staticReader{records: []memlog.Record{
		{User: "u1", Assistant: "a1", Tags: []string{"anxious feelings"}},
		{User: "u2", Assistant: "a2", Tags: []string{"garden tomatoes"}},
		{User: "u3", Assistant: "a3", Tags: nil},
		{User: "u4", Assistant: "a4", Tags: []string{"social anxiety"}},
	}}
	m := New(reader, extraction.NewTagExtractor())

	got, err := m.RetrieveByTag(context.Background(), "Anxiety", "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "u1", got[0].User)
	assert.Equal(t, "u4", got[1].User)
}

func TestRetrieveByTag_ReadError(t *testing.T) {
	reader := &staticReader{err: memlog.ErrStorage}
	m := New(reader, extraction.NewTagExtractor())

	_, err := m.RetrieveByTag(context.Background(), "x", "alice")
	assert.True(t, errors.Is(err, memlog.ErrStorage))
}

func TestTriggerMemoryCheck(t *testing.T) {
	reader := &staticReader{records: []memlog.Record{
		{User: "k8s?", Assistant: "yes", Tags: []string{"kubernetes autoscaling"}},
		{User: "food", Assistant: "pasta", Tags: []string{"italian cooking"}},
	}}
	m := New(reader, extraction.NewTagExtractor())

	got, err := m.TriggerMemoryCheck(context.Background(),
		"I need help with kubernetes autoscaling. Kubernetes autoscaling is hard.", "alice")
	require.NoError(t, err)

	require.Contains(t, got, "kubernetes autoscaling")
	assert.Len(t, got["kubernetes autoscaling"], 1)
	for tag, records := range got {
		assert.NotEmpty(t, records, tag)
	}
	assert.Equal(t, 1, reader.reads)
}

func TestTriggerMemoryCheck_NoTags(t *testing.T) {
	reader := &staticReader{}
	m := New(reader, extraction.NewTagExtractor())

	got, err := m.TriggerMemoryCheck(context.Background(), "Hello! Thanks, nice to meet you.", "alice")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, reader.reads)
}

func TestWithThreshold(t *testing.T) {
	m := New(&staticReader{}, extraction.NewTagExtractor(), WithThreshold(0.9))
	assert.Equal(t, 0.9, m.Threshold())
}
