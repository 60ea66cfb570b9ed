package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func teiServer(t *testing.T, handler func(w http.ResponseWriter, req teiRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeVectors(w http.ResponseWriter, n int) {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1, 0}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Truncate)
		writeVectors(w, len(req.Inputs))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL + "/", APIKey: "k"})
	require.NoError(t, err)
	defer p.Close()

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{2, 1, 0}, vecs[2])
	assert.Equal(t, "Bearer k", auth.Load())
	assert.Equal(t, 384, p.Dimension())
	assert.Equal(t, DefaultModel, p.Model())
}

func TestTEIProvider_Batches(t *testing.T) {
	var calls atomic.Int32
	srv := teiServer(t, func(w http.ResponseWriter, req teiRequest) {
		calls.Add(1)
		assert.LessOrEqual(t, len(req.Inputs), teiBatchSize)
		writeVectors(w, len(req.Inputs))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	texts := make([]string, teiBatchSize+5)
	for i := range texts {
		texts[i] = "t"
	}
	vecs, err := p.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.EqualValues(t, 2, calls.Load())
}

func TestTEIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := teiServer(t, func(w http.ResponseWriter, req teiRequest) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeVectors(w, len(req.Inputs))
	})

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTEIProvider_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		calls  int32
	}{
		{name: "client error is not retried", status: http.StatusBadRequest, body: `{"error":"bad"}`, calls: 1},
		{name: "persistent server error", status: http.StatusInternalServerError, body: "boom", calls: 2},
		{name: "malformed body", status: http.StatusOK, body: "not json", calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := teiServer(t, func(w http.ResponseWriter, _ teiRequest) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, MaxRetries: 1})
			require.NoError(t, err)

			_, err = p.EmbedQuery(context.Background(), "hello")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrModelUnavailable)
			assert.Equal(t, tt.calls, calls.Load())
		})
	}
}

func TestTEIProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: url, MaxRetries: 1, Timeout: time.Second})
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestTEIProvider_InvalidConfig(t *testing.T) {
	_, err := NewTEIProvider(TEIConfig{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
