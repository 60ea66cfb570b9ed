package semantic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/memlog"
)

type countingEmbedder struct {
	embeddings.Embedder
	calls atomic.Int32
}

func (c *countingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.Embedder.EmbedDocuments(ctx, texts)
}

func (c *countingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Embedder.EmbedQuery(ctx, text)
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, embeddings.ErrModelUnavailable
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, embeddings.ErrModelUnavailable
}

func hashIndex(t *testing.T) (*Index, *countingEmbedder) {
	t.Helper()
	h, err := embeddings.NewHashProvider(384)
	require.NoError(t, err)
	c := &countingEmbedder{Embedder: h}
	return New(c), c
}

func TestRetrieveSimilar_Ranking(t *testing.T) {
	ix, _ := hashIndex(t)
	records := []memlog.Record{
		{User: "I love hiking", Assistant: "Hiking is a great way to stay fit."},
		{User: "I enjoy programming", Assistant: "Programming is a useful skill."},
		{User: "I love mountains", Assistant: "Mountains have beautiful trails."},
	}

	got, err := ix.RetrieveSimilar(context.Background(), "mountain trails", records, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, records[1].Render(), got[0])
	assert.Equal(t, records[2].Render(), got[0])
}

func TestRetrieveSimilar_UserOnlyRecords(t *testing.T) {
	ix, _ := hashIndex(t)
	records := []memlog.Record{
		{User: "I love hiking"},
		{User: "I enjoy programming"},
		{User: "I love mountains"},
	}

	got, err := ix.RetrieveSimilar(context.Background(), "mountain trails", records, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEqual(t, records[1].Render(), got[0])
	assert.Equal(t, records[2].Render(), got[0])
}

func TestRetrieveSimilar_OrderAndLimit(t *testing.T) {
	ix, _ := hashIndex(t)
	records := []memlog.Record{
		{User: "a", Assistant: "b"},
		{User: "c", Assistant: "d"},
	}

	got, err := ix.RetrieveSimilar(context.Background(), "anything", records, 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.ElementsMatch(t, []string{records[0].Render(), records[1].Render()}, got)
}

func TestRank_DescendingSimilarity(t *testing.T) {
	ix, _ := hashIndex(t)
	records := []memlog.Record{
		{User: "weather today", Assistant: "sunny"},
		{User: "sleep problems", Assistant: "try a routine"},
		{User: "deep sleep problems at night", Assistant: "sleep hygiene helps sleep"},
	}

	matches, err := ix.Rank(context.Background(), "sleep problems", records, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Similarity, matches[i].Similarity)
	}
	assert.Equal(t, 0, matches[2].Index)
}

func TestRetrieveSimilar_EmptySkipsEmbedder(t *testing.T) {
	ix, c := hashIndex(t)

	got, err := ix.RetrieveSimilar(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	got, err = ix.RetrieveSimilar(context.Background(), "query", []memlog.Record{{User: "x", Assistant: "y"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, c.calls.Load())
}

func TestRetrieveSimilar_FeaturelessQuery(t *testing.T) {
	ix, _ := hashIndex(t)
	records := []memlog.Record{{User: "a", Assistant: "b"}, {User: "c", Assistant: "d"}}

	got, err := ix.RetrieveSimilar(context.Background(), "?!", records, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{records[0].Render()}, got)
}

func TestRetrieveSimilar_ModelUnavailable(t *testing.T) {
	ix := New(failingEmbedder{})

	_, err := ix.RetrieveSimilar(context.Background(), "q", []memlog.Record{{User: "a", Assistant: "b"}}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, embeddings.ErrModelUnavailable))
}
