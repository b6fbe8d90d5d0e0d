package llm

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/postflow/llm/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type scriptedProvider struct {
	mu        sync.Mutex
	calls     int
	responses []func() (*ChatResponse, error)
}

func (s *scriptedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i]()
}

func (s *scriptedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func (s *scriptedProvider) Name() string { return "scripted" }

type usageRecord struct {
	status                   string
	model                    string
	promptTokens, completion int
}

type recorderStub struct {
	records []usageRecord
}

func (r *recorderStub) RecordLLMRequest(provider, model, status string, _ time.Duration, prompt, completion int) {
	r.records = append(r.records, usageRecord{status: status, model: model, promptTokens: prompt, completion: completion})
}

func okResponse() (*ChatResponse, error) {
	return &ChatResponse{
		Model:   "qwen3-max",
		Choices: []ChatChoice{{Message: Message{Role: RoleAssistant, Content: "done"}}},
		Usage:   ChatUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
	}, nil
}

func rateLimited() (*ChatResponse, error) {
	return nil, &Error{Code: ErrRateLimited, HTTPStatus: http.StatusTooManyRequests, Retryable: true}
}

func unauthorized() (*ChatResponse, error) {
	return nil, &Error{Code: ErrUnauthorized, HTTPStatus: http.StatusUnauthorized}
}

func fastPolicy() *retry.RetryPolicy {
	return &retry.RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func TestInstrumentedProvider_RetriesRetryableErrors(t *testing.T) {
	inner := &scriptedProvider{responses: []func() (*ChatResponse, error){rateLimited, rateLimited, okResponse}}
	rec := &recorderStub{}
	core, logs := observer.New(zap.InfoLevel)

	p := NewInstrumentedProvider(inner, zap.New(core), WithRetryPolicy(fastPolicy()), WithUsageRecorder(rec))
	resp, err := p.Completion(context.Background(), &ChatRequest{Model: "qwen3-max"})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 13, resp.Usage.TotalTokens)

	require.Len(t, rec.records, 1)
	assert.Equal(t, usageRecord{status: "success", model: "qwen3-max", promptTokens: 10, completion: 3}, rec.records[0])

	entries := logs.FilterMessage("llm completion").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 10, entries[0].ContextMap()["prompt_tokens"])
	assert.EqualValues(t, 3, entries[0].ContextMap()["completion_tokens"])
}

func TestInstrumentedProvider_DoesNotRetryPermanentErrors(t *testing.T) {
	inner := &scriptedProvider{responses: []func() (*ChatResponse, error){unauthorized, okResponse}}
	rec := &recorderStub{}

	p := NewInstrumentedProvider(inner, nil, WithRetryPolicy(fastPolicy()), WithUsageRecorder(rec))
	_, err := p.Completion(context.Background(), &ChatRequest{Model: "qwen3-max"})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.False(t, IsRetryable(err))
	require.Len(t, rec.records, 1)
	assert.Equal(t, "error", rec.records[0].status)
}

func TestInstrumentedProvider_WithoutRetry(t *testing.T) {
	inner := &scriptedProvider{responses: []func() (*ChatResponse, error){rateLimited, okResponse}}

	p := NewInstrumentedProvider(inner, zap.NewNop())
	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "scripted", p.Name())
}

func TestChatResponse_FirstContent(t *testing.T) {
	var nilResp *ChatResponse
	_, err := nilResp.FirstContent()
	assert.Error(t, err)

	resp := &ChatResponse{Choices: []ChatChoice{{Message: Message{Content: "  \n"}}}}
	_, err = resp.FirstContent()
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, ErrEmptyResponse, llmErr.Code)

	resp.Choices[0].Message.Content = " ok "
	content, err := resp.FirstContent()
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
}
