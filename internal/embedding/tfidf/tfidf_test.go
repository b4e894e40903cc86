package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
)

func fit(t *testing.T, corpus ...string) domain.Embedder {
	t.Helper()
	e, err := NewEmbedder().Fit(context.Background(), corpus)
	require.NoError(t, err)
	return e
}

func TestEmbed_Unprepared(t *testing.T) {
	e := NewEmbedder()
	assert.Equal(t, 0, e.Dimension())
	_, err := e.Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestFit_DoesNotMutateReceiver(t *testing.T) {
	base := NewEmbedder()
	fitted := fit(t, "Paris is the capital of France.")
	_, err := base.Fit(context.Background(), []string{"Tokyo is the capital of Japan."})
	require.NoError(t, err)
	assert.Equal(t, 0, base.Dimension())
	assert.Equal(t, 3, fitted.Dimension()) // paris, capital, france
}

func TestFit_EmptyCorpus(t *testing.T) {
	_, err := NewEmbedder().Fit(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestEmbed_OrderAndShape(t *testing.T) {
	e := fit(t, "Paris is the capital of France.", "Tokyo is the capital of Japan.")
	vecs, err := e.Embed(context.Background(), []string{"Tokyo Japan", "", "Paris"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, e.Dimension())
	}
	assert.True(t, embedding.IsZero(vecs[1]))

	norm := 0.0
	for _, x := range vecs[0] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbed_UnknownTermsGiveZeroVector(t *testing.T) {
	e := fit(t, "Paris is the capital of France.")
	vecs, err := e.Embed(context.Background(), []string{"qwzx vbnm"})
	require.NoError(t, err)
	assert.True(t, embedding.IsZero(vecs[0]))
}

func TestEmbed_Deterministic(t *testing.T) {
	e := fit(t, "alpha beta gamma.", "beta delta.")
	a, err := e.Embed(context.Background(), []string{"beta gamma"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"beta gamma"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
