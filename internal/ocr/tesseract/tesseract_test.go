package tesseract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanConfidence(t *testing.T) {
	assert.Nil(t, MeanConfidence(nil))
	assert.Nil(t, MeanConfidence([]float64{-1, -1}))

	got := MeanConfidence([]float64{90, -1, 70})
	require.NotNil(t, got)
	assert.InDelta(t, 0.8, *got, 1e-9)
}
