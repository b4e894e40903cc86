// Package hashing implements a corpus-free embedder using signed feature hashing.
package hashing

import (
	"context"
	"hash/fnv"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
	"ragchat/internal/textproc"
)

// DefaultDimension is used when NewEmbedder gets a non-positive dimension.
const DefaultDimension = 384

// Embedder hashes each term into one of dimension buckets with a sign taken
// from the top hash bit, then L2-normalizes the counts.
type Embedder struct {
	dimension int
}

var _ domain.Embedder = (*Embedder)(nil)

func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Name() string { return "hashing" }

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := make([]float64, e.dimension)
		for _, term := range textproc.Terms(text) {
			h := fnv.New64a()
			_, _ = h.Write([]byte(term))
			sum := h.Sum64()
			sign := 1.0
			if sum>>63 == 1 {
				sign = -1.0
			}
			vec[sum%uint64(e.dimension)] += sign
		}
		embedding.Normalize(vec)
		out[i] = vec
	}
	return out, nil
}
