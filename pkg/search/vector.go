package search

import (
	"math"
	"sync"
)

// VectorIndex is a brute-force cosine similarity index. Linear scans
// are fine at fact-store scale; swap-in of an ANN structure stays
// behind the same Add/Search surface.
type VectorIndex struct {
	mu   sync.RWMutex
	vecs map[string][]float32
}

// NewVectorIndex returns an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vecs: make(map[string][]float32)}
}

// Add stores a copy of vec under id, replacing any existing entry.
func (ix *VectorIndex) Add(id string, vec []float32) {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	ix.mu.Lock()
	ix.vecs[id] = cp
	ix.mu.Unlock()
}

// Remove deletes the vector with the given ID, if present.
func (ix *VectorIndex) Remove(id string) {
	ix.mu.Lock()
	delete(ix.vecs, id)
	ix.mu.Unlock()
}

// Len returns the number of indexed vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vecs)
}

// Search returns up to topK entries ranked by cosine similarity to
// query, best first, with ascending-ID tie-breaks. Entries whose
// dimensions do not match the query are skipped. topK <= 0 means
// unlimited.
func (ix *VectorIndex) Search(query []float32, topK int) []ScoredDoc {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ranked := make([]ScoredDoc, 0, len(ix.vecs))
	for id, vec := range ix.vecs {
		if len(vec) != len(query) {
			continue
		}
		ranked = append(ranked, ScoredDoc{ID: id, Score: Cosine(query, vec)})
	}
	sortScoredDocs(ranked)
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

// Cosine returns the cosine similarity of two equal-length vectors, or
// 0 when either has zero magnitude or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
