package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPolicy(maxRetries int) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:   maxRetries,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     20 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestBackoffRetryer_Do(t *testing.T) {
	errTemp := errors.New("temporary")

	tests := []struct {
		name       string
		maxRetries int
		failFirst  int
		wantErr    bool
		wantCalls  int
	}{
		{name: "first call succeeds", maxRetries: 3, failFirst: 0, wantCalls: 1},
		{name: "succeeds on third call", maxRetries: 3, failFirst: 2, wantCalls: 3},
		{name: "retries exhausted", maxRetries: 2, failFirst: 10, wantErr: true, wantCalls: 3},
		{name: "no retries", maxRetries: 0, failFirst: 1, wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewBackoffRetryer(fastPolicy(tt.maxRetries), zap.NewNop())
			calls := 0
			err := r.Do(context.Background(), func() error {
				calls++
				if calls <= tt.failFirst {
					return errTemp
				}
				return nil
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errTemp)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackoffRetryer_ContextCanceled(t *testing.T) {
	policy := fastPolicy(5)
	policy.InitialDelay = time.Second
	policy.MaxDelay = time.Second
	r := NewBackoffRetryer(policy, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		return errors.New("always")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestBackoffRetryer_ShouldRetry(t *testing.T) {
	transient := errors.New("transient")
	permanent := errors.New("permanent")

	policy := fastPolicy(3)
	policy.ShouldRetry = func(err error) bool { return errors.Is(err, transient) }
	r := NewBackoffRetryer(policy, zap.NewNop())

	t.Run("retryable error", func(t *testing.T) {
		calls := 0
		err := r.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return transient
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error returned as is", func(t *testing.T) {
		calls := 0
		err := r.Do(context.Background(), func() error {
			calls++
			return permanent
		})
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	})
}

func TestBackoffRetryer_DelayCalculation(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}, zap.NewNop()).(*backoffRetryer)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
	}
	for i, d := range want {
		assert.Equal(t, d, r.calculateDelay(i+1), "attempt %d", i+1)
	}
}

func TestBackoffRetryer_JitterStaysInBounds(t *testing.T) {
	r := NewBackoffRetryer(&RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}, zap.NewNop()).(*backoffRetryer)

	for i := 0; i < 50; i++ {
		d := r.calculateDelay(2)
		assert.GreaterOrEqual(t, d, 150*time.Millisecond)
		assert.LessOrEqual(t, d, 250*time.Millisecond)
	}
}

func TestBackoffRetryer_OnRetryCallback(t *testing.T) {
	var attempts []int
	policy := fastPolicy(2)
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
		assert.Greater(t, delay, time.Duration(0))
	}
	r := NewBackoffRetryer(policy, zap.NewNop())

	calls := 0
	_ = r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("again")
		}
		return nil
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoWithResultTyped(t *testing.T) {
	type summary struct{ Text string }

	r := NewBackoffRetryer(fastPolicy(2), zap.NewNop())

	calls := 0
	val, err := DoWithResultTyped[summary](r, context.Background(), func() (summary, error) {
		calls++
		if calls == 1 {
			return summary{}, errors.New("not yet")
		}
		return summary{Text: "done"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", val.Text)

	zero, err := DoWithResultTyped[*summary](NewBackoffRetryer(fastPolicy(0), zap.NewNop()), context.Background(),
		func() (*summary, error) { return nil, errors.New("fail") })
	assert.Error(t, err)
	assert.Nil(t, zero)
}
