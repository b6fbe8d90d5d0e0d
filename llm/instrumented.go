package llm

import (
	"context"
	"time"

	"github.com/BaSui01/postflow/llm/retry"
	"go.uber.org/zap"
)

// UsageRecorder receives one record per completion attempt sequence.
type UsageRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// InstrumentedProvider wraps a Provider with retry on retryable errors and
// token usage logging.
type InstrumentedProvider struct {
	inner    Provider
	retryer  retry.Retryer
	recorder UsageRecorder
	logger   *zap.Logger
}

// InstrumentOption configures an InstrumentedProvider.
type InstrumentOption func(*InstrumentedProvider)

// WithRetryPolicy enables retries. Only errors marked Retryable are retried.
func WithRetryPolicy(policy *retry.RetryPolicy) InstrumentOption {
	return func(p *InstrumentedProvider) {
		if policy == nil {
			return
		}
		policy.ShouldRetry = IsRetryable
		p.retryer = retry.NewBackoffRetryer(policy, p.logger)
	}
}

// WithUsageRecorder records request outcome and token usage.
func WithUsageRecorder(r UsageRecorder) InstrumentOption {
	return func(p *InstrumentedProvider) { p.recorder = r }
}

// NewInstrumentedProvider creates the wrapper.
func NewInstrumentedProvider(inner Provider, logger *zap.Logger, opts ...InstrumentOption) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &InstrumentedProvider{
		inner:  inner,
		logger: logger.With(zap.String("component", "llm"), zap.String("provider", inner.Name())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ Provider = (*InstrumentedProvider)(nil)

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Completion calls the inner provider, retrying when configured.
func (p *InstrumentedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	call := func() (*ChatResponse, error) { return p.inner.Completion(ctx, req) }
	var (
		resp *ChatResponse
		err  error
	)
	if p.retryer != nil {
		resp, err = retry.DoWithResultTyped[*ChatResponse](p.retryer, ctx, call)
	} else {
		resp, err = call()
	}
	duration := time.Since(start)

	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}

	if err != nil {
		p.logger.Warn("llm completion failed",
			zap.String("model", model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		if p.recorder != nil {
			p.recorder.RecordLLMRequest(p.inner.Name(), model, "error", duration, 0, 0)
		}
		return nil, err
	}

	p.logger.Info("llm completion",
		zap.String("model", model),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	if p.recorder != nil {
		p.recorder.RecordLLMRequest(p.inner.Name(), model, "success", duration,
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, nil
}
