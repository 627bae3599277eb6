package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/internal/orchestrator"
	"github.com/reviewloop/internal/ratelimit"
	"github.com/reviewloop/internal/reviewer"
	"github.com/reviewloop/pkg/models"
)

type stubCaller struct {
	response  string
	callCount int
}

func (s *stubCaller) Complete(ctx context.Context, model, instruction, code string) (*models.Completion, error) {
	s.callCount++
	return &models.Completion{
		Text:  s.response,
		Usage: models.TokenUsage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
	}, nil
}

func newTestServer(response string, limit int) (*Server, *stubCaller, *ratelimit.Limiter) {
	caller := &stubCaller{response: response}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), limit)
	orch := orchestrator.New(reviewer.New(3), caller, limiter)
	return NewServer(0, orch, limiter), caller, limiter
}

func doRequest(s *Server, method, path, deviceID, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set(deviceIDHeader, deviceID)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const validResponse = `{"issues":[{"line":2,"severity":"warning","message":"Possible division by zero"}]}`

func TestHandleReviewSuccess(t *testing.T) {
	server, _, _ := newTestServer(validResponse, 10)

	rec := doRequest(server, http.MethodPost, "/api/v1/review", "d1",
		`{"code": "def divide(a,b): return a/b", "model": "test-model"}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var outcome models.ReviewOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
	require.NotNil(t, outcome.Content)
	require.Len(t, outcome.Content.Issues, 1)
	assert.Equal(t, 2, outcome.Content.Issues[0].Line)
}

func TestHandleReviewRequiresDeviceID(t *testing.T) {
	server, caller, _ := newTestServer(validResponse, 10)

	rec := doRequest(server, http.MethodPost, "/api/v1/review", "", `{"code": "x = 1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, caller.callCount)
}

func TestHandleReviewRequiresCode(t *testing.T) {
	server, caller, _ := newTestServer(validResponse, 10)

	rec := doRequest(server, http.MethodPost, "/api/v1/review", "d1", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, caller.callCount)
}

func TestHandleReviewQuotaExceeded(t *testing.T) {
	server, caller, limiter := newTestServer(validResponse, 1)

	rec := doRequest(server, http.MethodPost, "/api/v1/review", "d1", `{"code": "x = 1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, limiter.Check("d1").Remaining)
	callsBefore := caller.callCount

	rec = doRequest(server, http.MethodPost, "/api/v1/review", "d1", `{"code": "x = 1"}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, callsBefore, caller.callCount, "no upstream call once rate limited")

	var body struct {
		Error   string `json:"error"`
		Limit   int    `json:"limit"`
		Used    int    `json:"used"`
		ResetAt string `json:"resetAt"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Limit)
	assert.Equal(t, 1, body.Used)
	assert.NotEmpty(t, body.ResetAt)
}

func TestHandleReviewRemapsPartialSubmission(t *testing.T) {
	// Model reports line 2 of the submitted block; with the block
	// starting at document line 10 (offset 9) of a 12-line file, the
	// finding lands on absolute line 11.
	server, _, _ := newTestServer(validResponse, 10)

	rec := doRequest(server, http.MethodPost, "/api/v1/review", "d1",
		`{"code": "a\nb", "lineOffset": 9, "totalLines": 12}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var outcome models.ReviewOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	require.Len(t, outcome.Content.Issues, 1)
	assert.Equal(t, 11, outcome.Content.Issues[0].Line)
}

func TestHandleReviewDropsOutOfDocumentFindings(t *testing.T) {
	server, _, _ := newTestServer(validResponse, 10)

	// Document only has 10 lines; remapped line 11 is outside and the
	// finding is silently dropped.
	rec := doRequest(server, http.MethodPost, "/api/v1/review", "d1",
		`{"code": "a\nb", "lineOffset": 9, "totalLines": 10}`)

	require.Equal(t, http.StatusOK, rec.Code)

	var outcome models.ReviewOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.Content.Issues)
}

func TestHandleQuota(t *testing.T) {
	server, _, limiter := newTestServer(validResponse, 5)
	limiter.Increment("d1")

	rec := doRequest(server, http.MethodGet, "/api/v1/quota", "d1", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.QuotaStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Used)
	assert.Equal(t, 5, status.Limit)
	assert.Equal(t, 4, status.Remaining)

	// Reading quota must not consume it.
	rec = doRequest(server, http.MethodGet, "/api/v1/quota", "d1", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Used)
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(validResponse, 5)

	rec := doRequest(server, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
