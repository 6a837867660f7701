package vectordb

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimension is the size of HashEmbedding vectors.
const DefaultDimension = 384

// Embedder turns texts into vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	Dimension() int
}

// HashEmbedding is a deterministic bag-of-characters embedding: every rune
// increments one hashed bucket and the vector is L2-normalized. It needs
// no model and keeps indexing available offline.
type HashEmbedding struct {
	dim int
}

// NewHashEmbedding returns an embedding of dim buckets, or
// DefaultDimension when dim <= 0.
func NewHashEmbedding(dim int) *HashEmbedding {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedding{dim: dim}
}

// Dimension implements Embedder.
func (h *HashEmbedding) Dimension() int { return h.dim }

// Embed implements Embedder.
func (h *HashEmbedding) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *HashEmbedding) vector(text string) []float64 {
	vec := make([]float64, h.dim)
	hasher := fnv.New32a()
	for _, r := range text {
		hasher.Reset()
		_, _ = hasher.Write([]byte(string(r)))
		vec[hasher.Sum32()%uint32(h.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}
