package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/internal/ratelimit"
	"github.com/reviewloop/internal/reviewer"
	"github.com/reviewloop/pkg/models"
)

const validPayload = `{"issues":[{"line":1,"severity":"warning","message":"Possible division by zero"}]}`

// Spy completion caller: counts invocations and replays a fixed script.
type spyCaller struct {
	response  string
	err       error
	callCount int
}

func (s *spyCaller) Complete(ctx context.Context, model, instruction, code string) (*models.Completion, error) {
	s.callCount++
	if s.err != nil {
		return nil, s.err
	}
	return &models.Completion{
		Text:  s.response,
		Usage: models.TokenUsage{PromptTokens: 8, CompletionTokens: 4, TotalTokens: 12},
	}, nil
}

func newLimiter(limit int) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.NewMemoryStore(), limit)
}

func TestProxiedPathConsumesQuotaOnSuccess(t *testing.T) {
	shared := &spyCaller{response: validPayload}
	limiter := newLimiter(10)
	orch := New(reviewer.New(3), shared, limiter)

	for i := 0; i < 10; i++ {
		outcome, err := orch.Review(context.Background(), Request{
			Code: "code", Model: "test-model", DeviceID: "d1",
		})
		require.NoError(t, err)
		require.True(t, outcome.Success)
	}

	assert.Equal(t, 0, limiter.Check("d1").Remaining)
	assert.Equal(t, 10, shared.callCount)
}

func TestProxiedPathShortCircuitsWhenExhausted(t *testing.T) {
	shared := &spyCaller{response: validPayload}
	limiter := newLimiter(2)
	orch := New(reviewer.New(3), shared, limiter)

	for i := 0; i < 2; i++ {
		_, err := orch.Review(context.Background(), Request{Code: "code", DeviceID: "d1"})
		require.NoError(t, err)
	}
	callsBefore := shared.callCount

	_, err := orch.Review(context.Background(), Request{Code: "code", DeviceID: "d1"})

	var rateErr *RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 2, rateErr.Used)
	assert.Equal(t, 2, rateErr.Limit)
	assert.False(t, rateErr.ResetAt.IsZero())
	// No upstream call once the quota is exhausted.
	assert.Equal(t, callsBefore, shared.callCount)
}

func TestProxiedPathFailedReviewDoesNotConsumeQuota(t *testing.T) {
	shared := &spyCaller{response: `{"wrong": true}`}
	limiter := newLimiter(5)
	orch := New(reviewer.New(2), shared, limiter)

	outcome, err := orch.Review(context.Background(), Request{Code: "code", DeviceID: "d1"})

	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Len(t, outcome.Attempts, 2)
	assert.Equal(t, 0, limiter.Check("d1").Used)
}

func TestProxiedPathSaturationSurfacesUpstreamError(t *testing.T) {
	shared := &spyCaller{err: errors.New("429 too many requests from provider")}
	limiter := newLimiter(5)
	orch := New(reviewer.New(3), shared, limiter)

	outcome, err := orch.Review(context.Background(), Request{Code: "code", DeviceID: "d1"})

	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Contains(t, upstreamErr.Message, "429")
	// The attempt history still comes back for diagnosis.
	assert.Len(t, outcome.Attempts, 1)
	// A failed review never burns quota.
	assert.Equal(t, 0, limiter.Check("d1").Used)
}

func TestDirectPathBypassesQuota(t *testing.T) {
	own := &spyCaller{response: validPayload}
	limiter := newLimiter(1)
	limiter.Increment("d1") // exhausted
	orch := New(reviewer.New(3), nil, limiter)

	outcome, err := orch.Review(context.Background(), Request{
		Code: "code", Model: "test-model", Caller: own, DeviceID: "d1",
	})

	require.NoError(t, err)
	require.True(t, outcome.Success)
	assert.Equal(t, 1, own.callCount)
	// Quota untouched by the direct path.
	assert.Equal(t, 1, limiter.Check("d1").Used)
}

func TestBothPathsYieldIdenticalOutcomeShape(t *testing.T) {
	direct := &spyCaller{response: validPayload}
	shared := &spyCaller{response: validPayload}
	limiter := newLimiter(10)
	orch := New(reviewer.New(3), shared, limiter)

	directOutcome, err := orch.Review(context.Background(), Request{Code: "code", Caller: direct})
	require.NoError(t, err)
	proxiedOutcome, err := orch.Review(context.Background(), Request{Code: "code", DeviceID: "d1"})
	require.NoError(t, err)

	if diff := cmp.Diff(directOutcome, proxiedOutcome); diff != "" {
		t.Errorf("outcome shapes diverge between paths (-direct +proxied):\n%s", diff)
	}
}

func TestProxiedPathRequiresDeviceID(t *testing.T) {
	orch := New(reviewer.New(3), &spyCaller{response: validPayload}, newLimiter(5))

	_, err := orch.Review(context.Background(), Request{Code: "code"})

	require.Error(t, err)
	var rateErr *RateLimitedError
	assert.False(t, errors.As(err, &rateErr))
}

func TestRateLimitedErrorMessage(t *testing.T) {
	resetAt := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	err := &RateLimitedError{Used: 10, Limit: 10, ResetAt: resetAt}

	assert.Contains(t, err.Error(), "10/10")
	assert.Contains(t, err.Error(), "2026-03-15")
}
