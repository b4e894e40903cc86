package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ragchat/internal/domain"
)

// Index is a simple in-memory vector index using brute-force L2 distance.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float64
}

var _ domain.Index = (*Index)(nil)

func NewIndex() *Index { return &Index{} }

// Init sets the dimension and drops any stored vectors.
func (s *Index) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidInput, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	return nil
}

// Add appends vectors; their ids continue from the current size.
func (s *Index) Add(_ context.Context, vectors [][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return fmt.Errorf("%w: index not initialized", domain.ErrIndexNotBuilt)
	}
	for i, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: vector %d has %d components, index has %d", domain.ErrDimensionMismatch, i, len(v), s.dimension)
		}
	}
	for _, v := range vectors {
		s.vectors = append(s.vectors, append([]float64(nil), v...))
	}
	return nil
}

// Search returns up to k distances and ids, nearest first. Ties keep
// insertion order.
func (s *Index) Search(_ context.Context, query []float64, k int) ([]float64, []int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return nil, nil, domain.ErrIndexNotBuilt
	}
	if len(query) != s.dimension {
		return nil, nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}
	if k <= 0 {
		return []float64{}, []int{}, nil
	}
	dists := make([]float64, len(s.vectors))
	for i := range s.vectors {
		dists[i] = squaredL2(s.vectors[i], query)
	}
	idxs := argsortAsc(dists)
	if k > len(idxs) {
		k = len(idxs)
	}
	outD := make([]float64, k)
	outI := make([]int, k)
	for i := 0; i < k; i++ {
		outI[i] = idxs[i]
		outD[i] = math.Sqrt(dists[idxs[i]])
	}
	return outD, outI, nil
}

func (s *Index) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *Index) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func squaredL2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func argsortAsc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	quicksort(idxs, vals, 0, len(idxs)-1)
	return idxs
}

// less orders by value, then by id, so equal distances sort deterministically.
func less(vals []float64, a, b int) bool {
	if vals[a] != vals[b] {
		return vals[a] < vals[b]
	}
	return a < b
}

func quicksort(idxs []int, vals []float64, lo, hi int) {
	if lo >= hi {
		return
	}
	i, j := lo, hi
	pivot := idxs[(lo+hi)/2]
	for i <= j {
		for less(vals, idxs[i], pivot) {
			i++
		}
		for less(vals, pivot, idxs[j]) {
			j--
		}
		if i <= j {
			idxs[i], idxs[j] = idxs[j], idxs[i]
			i++
			j--
		}
	}
	if lo < j {
		quicksort(idxs, vals, lo, j)
	}
	if i < hi {
		quicksort(idxs, vals, i, hi)
	}
}
