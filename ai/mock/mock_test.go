package mock

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorDeterministicUnit(t *testing.T) {
	a := Vector("hello", 16)
	assert.Equal(t, a, Vector("hello", 16))
	assert.NotEqual(t, a, Vector("world", 16))

	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	vec, err := m.EmbedText(ctx, "text")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimensions)

	vecs, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 2, m.CallCount())

	m.EmbedTextFunc = func(context.Context, string) ([]float32, error) { return []float32{1}, nil }
	vec, _ = m.EmbedText(ctx, "text")
	assert.Equal(t, []float32{1}, vec)

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.EmbedTextFunc)
}

func TestMockConceptExtractor(t *testing.T) {
	m := NewMockConceptExtractor()
	concepts, err := m.ExtractConcepts(context.Background(), "Paris, paris! Eiffel tower is tall and famous")
	require.NoError(t, err)

	require.Len(t, concepts, maxConcepts)
	assert.Equal(t, "paris", concepts[0].Name)
	assert.Equal(t, 10, concepts[0].Importance)
	assert.Equal(t, "eiffel", concepts[1].Name)
	assert.Equal(t, "product", concepts[1].Type)
}

func TestMockSummarizer(t *testing.T) {
	m := NewMockSummarizer()
	summary, err := m.Summarize(context.Background(), "  First sentence. Second one.")
	require.NoError(t, err)
	assert.Equal(t, "First sentence.", summary)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider()
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockExtractor(), p.ConceptExtractor())
	assert.Same(t, p.GetMockSummarizer(), p.Summarizer())

	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
}
