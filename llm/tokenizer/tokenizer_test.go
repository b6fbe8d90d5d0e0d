package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer()

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short ascii rounds up to one", text: "hi", want: 1},
		{name: "ascii", text: strings.Repeat("a", 40), want: 10},
		{name: "cjk", text: "你好世界你好", want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CountTokens(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimator_Truncate(t *testing.T) {
	e := NewEstimatorTokenizer()

	out, err := e.Truncate(strings.Repeat("a", 100), 10)
	require.NoError(t, err)
	assert.Len(t, out, 40)

	out, err = e.Truncate("short", 10)
	require.NoError(t, err)
	assert.Equal(t, "short", out)

	out, err = e.Truncate("你好世界你好世界", 3)
	require.NoError(t, err)
	assert.Equal(t, "你好世界", out)

	out, err = e.Truncate("anything", 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestForModel(t *testing.T) {
	assert.Equal(t, "estimator", ForModel("qwen3-max").Name())
	assert.Equal(t, "tiktoken[o200k_base]", ForModel("gpt-4o-mini").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", ForModel("gpt-4-turbo").Name())
}

type brokenTokenizer struct{}

func (brokenTokenizer) CountTokens(string) (int, error)      { return 0, errors.New("offline") }
func (brokenTokenizer) Truncate(string, int) (string, error) { return "", errors.New("offline") }
func (brokenTokenizer) Name() string                         { return "broken" }

func TestFallbackTokenizer(t *testing.T) {
	f := &fallbackTokenizer{primary: brokenTokenizer{}, fallback: NewEstimatorTokenizer()}

	n, err := f.CountTokens(strings.Repeat("a", 8))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out, err := f.Truncate(strings.Repeat("a", 8), 1)
	require.NoError(t, err)
	assert.Equal(t, "aaaa", out)
}

func TestFitInput(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := zap.New(core)

	text := strings.Repeat("word ", 100)
	out := FitInput(NewEstimatorTokenizer(), text, 10, logger)
	assert.Len(t, out, 40)
	assert.Equal(t, 1, logs.FilterMessage("input truncated to token budget").Len())

	assert.Equal(t, text, FitInput(NewEstimatorTokenizer(), text, 0, logger))
	assert.Equal(t, "ok", FitInput(brokenTokenizer{}, "ok", 1, logger))
	assert.Equal(t, 1, logs.FilterMessage("token truncation failed, sending full input").Len())
}
