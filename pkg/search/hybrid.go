package search

import (
	"context"
	"fmt"
)

// Reciprocal Rank Fusion constants. Ranks are 1-based: the top result
// of a list contributes weight/(k+1).
const (
	RRFK                 = 60
	DefaultVectorWeight  = 0.7
	DefaultKeywordWeight = 0.3
)

// FuseRRF merges a vector ranking and a keyword ranking with
// Reciprocal Rank Fusion. Each document scores
// w_v/(k+rank_v) + w_b/(k+rank_b), summing only the lists it appears
// in. The fused list is sorted by score descending with ascending-ID
// tie-breaks.
func FuseRRF(vector, keyword []ScoredDoc, vectorWeight, keywordWeight float64) []ScoredDoc {
	fused := make(map[string]float64, len(vector)+len(keyword))
	for i, doc := range vector {
		fused[doc.ID] += vectorWeight / float64(RRFK+i+1)
	}
	for i, doc := range keyword {
		fused[doc.ID] += keywordWeight / float64(RRFK+i+1)
	}

	out := make([]ScoredDoc, 0, len(fused))
	for id, score := range fused {
		out = append(out, ScoredDoc{ID: id, Score: score})
	}
	sortScoredDocs(out)
	return out
}

// overfetchMultiplier widens both candidate lists before fusion so a
// document ranked deep in one list can still surface in the merge.
const overfetchMultiplier = 3

// SearcherOption configures a HybridSearcher.
type SearcherOption func(*HybridSearcher)

// WithKeywordWeight sets the keyword share of the RRF merge, in [0,1].
// The vector share is the complement.
func WithKeywordWeight(w float64) SearcherOption {
	return func(h *HybridSearcher) {
		h.keywordWeight = w
		h.vectorWeight = 1 - w
	}
}

// HybridSearcher pairs a BM25 index with an embedder-fed vector index
// and answers queries with their RRF fusion. A nil embedder degrades
// to keyword-only search.
type HybridSearcher struct {
	bm25          *BM25Index
	vectors       *VectorIndex
	embedder      Embedder
	vectorWeight  float64
	keywordWeight float64
}

// NewHybridSearcher returns a searcher with empty indexes and the
// default 0.7/0.3 vector/keyword weights.
func NewHybridSearcher(embedder Embedder, opts ...SearcherOption) *HybridSearcher {
	h := &HybridSearcher{
		bm25:          NewBM25Index(),
		vectors:       NewVectorIndex(),
		embedder:      embedder,
		vectorWeight:  DefaultVectorWeight,
		keywordWeight: DefaultKeywordWeight,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Index adds content to both indexes. The keyword index is updated
// first, so on embedding failure the document is still
// keyword-searchable; callers may treat the returned error as a
// degradation rather than a loss.
func (h *HybridSearcher) Index(ctx context.Context, id, content string) error {
	h.bm25.Add(id, content)
	if h.embedder == nil {
		return nil
	}
	embs, err := h.embedder.Embed(ctx, []string{content})
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}
	if len(embs) > 0 {
		h.vectors.Add(id, embs[0])
	}
	return nil
}

// Remove deletes the document from both indexes.
func (h *HybridSearcher) Remove(id string) {
	h.bm25.Remove(id)
	h.vectors.Remove(id)
}

// Len returns the number of keyword-indexed documents.
func (h *HybridSearcher) Len() int { return h.bm25.Len() }

// Search fuses vector and keyword rankings for the query and returns
// up to topK results.
func (h *HybridSearcher) Search(ctx context.Context, query string, topK int) ([]ScoredDoc, error) {
	fetch := topK
	if topK > 0 {
		fetch = topK * overfetchMultiplier
	}

	keyword := h.bm25.Search(query, fetch)

	var vector []ScoredDoc
	if h.embedder != nil {
		embs, err := h.embedder.Embed(ctx, []string{query})
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if len(embs) > 0 {
			vector = h.vectors.Search(embs[0], fetch)
		}
	}

	fused := FuseRRF(vector, keyword, h.vectorWeight, h.keywordWeight)
	if topK > 0 && len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
