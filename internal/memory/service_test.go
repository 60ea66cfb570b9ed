package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/recall/internal/embeddings"
	"github.com/fyrsmithlabs/recall/internal/logging"
	"github.com/fyrsmithlabs/recall/internal/memlog"
	"github.com/fyrsmithlabs/recall/internal/summarize"
	"github.com/fyrsmithlabs/recall/internal/telemetry"
)

type fixture struct {
	svc   *Service
	store *memlog.FileStore
	log   *logging.TestLogger
	tel   *telemetry.TestTelemetry
}

func newFixture(t *testing.T, embedder embeddings.Embedder, opts ...Option) *fixture {
	t.Helper()
	log := logging.NewTestLogger()
	tel := telemetry.NewTestTelemetry()

	store, err := memlog.NewFileStore(t.TempDir(), log.Logger)
	require.NoError(t, err)

	if embedder == nil {
		h, err := embeddings.NewHashProvider(384)
		require.NoError(t, err)
		embedder = h
	}

	opts = append([]Option{
		WithLogger(log.Logger),
		WithTracer(tel.Tracer("test")),
		WithMeter(tel.Meter("test")),
	}, opts...)
	svc, err := NewService(store, embedder, opts...)
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, log: log, tel: tel}
}

type brokenEmbedder struct{}

func (brokenEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: onnx session lost", embeddings.ErrModelUnavailable)
}

func (brokenEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("%w: onnx session lost", embeddings.ErrModelUnavailable)
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, string, int) (string, error) {
	return "", summarize.ErrModelUnavailable
}

func TestAppend_RoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.svc.Append(ctx, "alice", "hello", "hi")
	require.NoError(t, err)
	assert.Empty(t, rec.Tags)

	records, err := f.store.ReadAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].User)
	assert.Equal(t, "hi", records[0].Assistant)

	f.log.AssertLogged(t, zapcore.InfoLevel, "exchange stored")
	f.log.AssertNoText(t, "hello")
	f.tel.AssertSpan(t, "memory.Append")
	n, ok := f.tel.Sum(t, "recall.memory.appends_total")
	assert.True(t, ok)
	assert.EqualValues(t, 1, n)
}

func TestAppend_ExtractsTags(t *testing.T) {
	f := newFixture(t, nil)

	rec, err := f.svc.Append(context.Background(), "alice",
		"I need help with kubernetes autoscaling.",
		"Kubernetes autoscaling uses the horizontal pod autoscaler.")
	require.NoError(t, err)
	assert.Contains(t, rec.Tags, "kubernetes autoscaling")
}

func TestAppend_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Append(ctx, "alice", "  ", "\n")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = f.svc.Append(ctx, "alice", "", "a reply about kubernetes clusters")
	assert.ErrorIs(t, err, ErrEmptyInput)

	records, err := f.store.ReadAll(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.svc.Append(ctx, "../etc", "a", "b")
	assert.ErrorIs(t, err, memlog.ErrInvalidUserKey)
	f.log.AssertLogged(t, zapcore.ErrorLevel, "append failed")
}

func TestAppend_BlankReplyStored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	rec, err := f.svc.Append(ctx, "dave", "are you there?", "")
	require.NoError(t, err)
	assert.Equal(t, "are you there?", rec.User)

	records, err := f.store.ReadAll(ctx, "dave")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "are you there?", records[0].User)
	assert.Empty(t, records[0].Assistant)
}

func TestClearThenAppend(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := range 3 {
		_, err := f.svc.Append(ctx, "bob", fmt.Sprintf("q%d", i), "a")
		require.NoError(t, err)
	}
	require.NoError(t, f.svc.Clear(ctx, "bob"))

	latest, err := f.svc.LatestN(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Empty(t, latest)

	_, err = f.svc.Append(ctx, "bob", "again", "yes")
	require.NoError(t, err)
	latest, err = f.svc.LatestN(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "again", latest[0].User)
}

func TestLatestN_Order(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := range 5 {
		_, err := f.svc.Append(ctx, "carol", fmt.Sprintf("q%d", i), "a")
		require.NoError(t, err)
	}

	tests := []struct {
		n    int
		want []string
	}{
		{n: 2, want: []string{"q3", "q4"}},
		{n: 5, want: []string{"q0", "q1", "q2", "q3", "q4"}},
		{n: 9, want: []string{"q0", "q1", "q2", "q3", "q4"}},
		{n: 0, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got, err := f.svc.LatestN(ctx, "carol", tt.n)
			require.NoError(t, err)
			users := make([]string, len(got))
			for i, r := range got {
				users[i] = r.User
			}
			assert.Equal(t, tt.want, users)
		})
	}
}

func seed(t *testing.T, svc *Service, key string) {
	t.Helper()
	exchanges := [][2]string{
		{"I love hiking in the hills.", "Hiking is a wonderful way to stay active outdoors."},
		{"I enjoy programming in Go.", "Go is a pleasant language for building services."},
		{"I love mountains and their trails.", "Mountain trails offer great views and fresh air."},
		{"My social anxiety gets worse at parties.", "Social anxiety is common and breathing exercises can help a lot."},
	}
	for _, ex := range exchanges {
		_, err := svc.Append(context.Background(), key, ex[0], ex[1])
		require.NoError(t, err)
	}
}

func TestBuildContext(t *testing.T) {
	f := newFixture(t, nil, WithTopK(2))
	seed(t, f.svc, "dave")

	c, err := f.svc.BuildContext(context.Background(), "dave", "Any tips for mountain trails? My anxiety is bad.")
	require.NoError(t, err)

	require.Len(t, c.Semantic, 2)
	assert.NotContains(t, c.Semantic[0], "programming")
	assert.Empty(t, c.Degraded)
	assert.NotEqual(t, summarize.Sentinel, c.GlobalSummary)
	assert.NotEmpty(t, c.ShortTerm)

	var triggered []string
	for tag, records := range c.Triggered {
		triggered = append(triggered, tag)
		assert.NotEmpty(t, records)
	}
	assert.NotEmpty(t, triggered)

	f.tel.AssertSpan(t, "memory.BuildContext")
	f.tel.AssertSpan(t, "semantic.Rank")
}

func TestBuildContext_EmptyLog(t *testing.T) {
	f := newFixture(t, nil)

	c, err := f.svc.BuildContext(context.Background(), "erin", "what do you remember?")
	require.NoError(t, err)
	assert.Empty(t, c.Semantic)
	assert.NotNil(t, c.Semantic)
	assert.Empty(t, c.Triggered)
	assert.Equal(t, summarize.Sentinel, c.GlobalSummary)
	assert.Equal(t, "", c.ShortTerm)
	assert.Empty(t, c.Degraded)
}

func TestBuildContext_Degrades(t *testing.T) {
	f := newFixture(t, brokenEmbedder{}, WithSummarizer(failingSummarizer{}))
	seed(t, f.svc, "frank")

	before, err := f.store.ReadAll(context.Background(), "frank")
	require.NoError(t, err)

	c, err := f.svc.BuildContext(context.Background(), "frank", "How do I handle social anxiety?")
	require.NoError(t, err)

	assert.Empty(t, c.Semantic)
	assert.Contains(t, c.Degraded, BranchSemantic)
	assert.Contains(t, c.Degraded, BranchSummary)
	assert.NotContains(t, c.Degraded, BranchTriggered)
	assert.NotEmpty(t, c.Triggered, "tag branch still answers")
	assert.Equal(t, summarize.Sentinel, c.GlobalSummary)

	f.log.AssertLogged(t, zapcore.WarnLevel, "retrieval branch degraded")
	n, ok := f.tel.Sum(t, "recall.memory.degraded_total")
	assert.True(t, ok)
	assert.EqualValues(t, 2, n)

	after, err := f.store.ReadAll(context.Background(), "frank")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestBuildContext_Errors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.BuildContext(context.Background(), "gina", "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = f.svc.BuildContext(context.Background(), ".hidden", "query")
	assert.True(t, errors.Is(err, memlog.ErrInvalidUserKey))
}

func TestSummarizeUserHistory(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	got, err := f.svc.SummarizeUserHistory(ctx, "hank")
	require.NoError(t, err)
	assert.Equal(t, summarize.Sentinel, got)

	seed(t, f.svc, "hank")
	got, err = f.svc.SummarizeUserHistory(ctx, "hank")
	require.NoError(t, err)
	assert.NotEqual(t, summarize.Sentinel, got)
	assert.LessOrEqual(t, len(strings.Split(got, "\n")), summarize.DefaultSentences)
}

func TestShortTerm(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, ex := range [][2]string{
		{"first", "one"},
		{"second\nline", "two"},
		{"", "orphan reply"},
		{"fourth", " four \n"},
	} {
		require.NoError(t, f.store.Append(ctx, "ivy", memlog.Record{User: ex[0], Assistant: ex[1]}))
	}

	got, err := f.svc.ShortTerm(ctx, "ivy", 0)
	require.NoError(t, err)
	assert.Equal(t, "User: second line\nAssistant: two\n\nUser: fourth\nAssistant: four", got)

	got, err = f.svc.ShortTerm(ctx, "nobody", 3)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestExtractTags(t *testing.T) {
	f := newFixture(t, nil)
	assert.Empty(t, f.svc.ExtractTags("Hello! Thanks, nice to meet you."))
}

func TestNewService_Validation(t *testing.T) {
	h, err := embeddings.NewHashProvider(8)
	require.NoError(t, err)

	_, err = NewService(nil, h)
	assert.Error(t, err)

	store, err := memlog.NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = NewService(store, nil)
	assert.Error(t, err)
}
