package http

import "github.com/fyrsmithlabs/recall/internal/memlog"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AppendRequest is the request body for POST /v1/users/:key/memories.
type AppendRequest struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// RecordResponse wraps a single stored record.
type RecordResponse struct {
	Record memlog.Record `json:"record"`
}

// RecordsResponse is the response body for GET /v1/users/:key/memories.
type RecordsResponse struct {
	Records []memlog.Record `json:"records"`
}

// ContextRequest is the request body for POST /v1/users/:key/context.
type ContextRequest struct {
	Query string `json:"query"`
}

// ContextResponse carries the retrieved context and the prompt built from
// it.
type ContextResponse struct {
	Semantic      []string                   `json:"semantic"`
	Triggered     map[string][]memlog.Record `json:"triggered"`
	GlobalSummary string                     `json:"global_summary"`
	ShortTerm     string                     `json:"short_term"`
	Degraded      map[string]string          `json:"degraded,omitempty"`
	Prompt        string                     `json:"prompt"`
}

// SummaryResponse is the response body for GET /v1/users/:key/summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// ShortTermResponse is the response body for GET /v1/users/:key/short-term.
type ShortTermResponse struct {
	ShortTerm string `json:"short_term"`
}

// TagsRequest is the request body for POST /v1/tags.
type TagsRequest struct {
	Text string `json:"text"`
}

// TagsResponse is the response body for POST /v1/tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}
