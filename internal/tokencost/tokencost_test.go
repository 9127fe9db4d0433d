package tokencost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 0, CountTokens("   "))
	assert.Equal(t, 1, CountTokens("hi"))
	assert.Equal(t, 2, CountTokens("12345678"))
	assert.Equal(t, 3, CountTokens("123456789"))
}

func TestEstimateCost(t *testing.T) {
	// 8 characters -> 2 tokens at gpt-4 input pricing of $0.03/1K.
	estimate, err := EstimateCost("12345678", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 2, estimate.Tokens)
	assert.InDelta(t, 0.00006, estimate.InputCost, 1e-12)
	assert.InDelta(t, 0.00012, estimate.OutputCost, 1e-12)
	assert.Greater(t, estimate.TotalCost, estimate.InputCost)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	_, err := EstimateCost("text", "gpt-unknown")
	assert.Error(t, err)
}
