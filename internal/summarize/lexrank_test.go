package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "  \n\n ", want: nil},
		{name: "simple", text: "One. Two! Three?", want: []string{"One.", "Two!", "Three?"}},
		{name: "no terminal punctuation", text: "just words", want: []string{"just words"}},
		{name: "decimal stays", text: "Pi is 3.14 roughly. Yes.", want: []string{"Pi is 3.14 roughly.", "Yes."}},
		{name: "runs and quotes", text: `He said "stop!" Then left...  Fine`, want: []string{`He said "stop!"`, "Then left...", "Fine"}},
		{
			name: "single newline joins, blank line splits",
			text: "User: hi\nAssistant: hello there\n\nUser: bye",
			want: []string{"User: hi Assistant: hello there", "User: bye"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.text))
		})
	}
}

// star has one sentence sharing a word with three others and one sentence
// sharing nothing.
var star = []string{
	"Gardening tomatoes requires sunlight.",
	"Tomatoes taste sweet.",
	"Sunlight warms soil.",
	"Gardening relaxes people.",
	"Bicycles need oil.",
}

func TestLexRank_Rank(t *testing.T) {
	scores, err := NewLexRank().Rank(star)
	require.NoError(t, err)
	require.Len(t, scores, 5)

	var sum float64
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	for i := 1; i < len(scores); i++ {
		assert.Greater(t, scores[0], scores[i], "hub outranks sentence %d", i)
	}
	assert.InDelta(t, scores[1], scores[2], 1e-9)
	assert.InDelta(t, scores[1], scores[3], 1e-9)
}

func TestLexRank_Summarize(t *testing.T) {
	got, err := NewLexRank().Summarize(context.Background(), strings.Join(star, " "), 1)
	require.NoError(t, err)
	assert.Equal(t, star[0], got)

	// The isolated sentence keeps its initial share and ranks second; it
	// comes first in the output because it comes first in the text.
	reordered := strings.Join([]string{star[4], star[1], star[0], star[2], star[3]}, " ")
	got, err = NewLexRank().Summarize(context.Background(), reordered, 2)
	require.NoError(t, err)
	assert.Equal(t, star[4]+"\n"+star[0], got)
}

func TestLexRank_SummarizeEdgeCases(t *testing.T) {
	lr := NewLexRank()
	ctx := context.Background()

	got, err := lr.Summarize(ctx, "", 5)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = lr.Summarize(ctx, "Only one. And two.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Only one.\nAnd two.", got)

	got, err = lr.Summarize(ctx, "Some text.", 0)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = lr.Summarize(cancelled, "Some text.", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrModelUnavailable(t *testing.T) {
	assert.True(t, errors.Is(ErrModelUnavailable, embeddings.ErrModelUnavailable))
}
