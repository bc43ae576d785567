package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  bool
	}{
		{"all words present", "The flow stamps each record.", "stamps record", true},
		{"case and punctuation ignored", "Badger, SQLite; and more!", "sqlite BADGER", true},
		{"missing word", "flows run in priority order", "flows retry", false},
		{"only stop words", "anything at all", "the of and", false},
		{"empty query", "text", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.text, tt.query))
		})
	}
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", Preview("short\n  text", 80))
	assert.Equal(t, "abcde...", Preview("abcdefgh", 5))
	assert.Equal(t, "héllo...", Preview("héllo wörld", 5))
	assert.Equal(t, "no limit here", Preview("no limit here", 0))
}

func TestNormalize(t *testing.T) {
	result := Normalize([]float32{3, 4})
	require.Len(t, result, 2)
	assert.InDelta(t, 0.6, result[0], 1e-6)
	assert.InDelta(t, 0.8, result[1], 1e-6)

	assert.Equal(t, []float32{0, 0, 0}, Normalize([]float32{0, 0, 0}))
	assert.Empty(t, Normalize(nil))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-6)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))

	n := Normalize([]float32{1, 1})
	assert.InDelta(t, 1/math.Sqrt2, float64(n[0]), 1e-6)
}

func TestToVector(t *testing.T) {
	v, ok := toVector([]any{1.0, 0.5, float32(2)})
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0.5, 2}, v)

	v, ok = toVector([]float64{0.25})
	require.True(t, ok)
	assert.Equal(t, []float32{0.25}, v)

	_, ok = toVector([]any{"x"})
	assert.False(t, ok)

	_, ok = toVector("nope")
	assert.False(t, ok)
}
