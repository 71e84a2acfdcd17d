package search

import (
	"context"
	"strings"
)

// DefaultRecallLimit bounds recall results when the caller does not
// ask for a specific count.
const DefaultRecallLimit = 5

// RecallStage identifies which stage of progressive recall produced a
// result set.
type RecallStage string

const (
	StageExact   RecallStage = "exact"
	StageKeyword RecallStage = "keyword"
	StageHybrid  RecallStage = "hybrid"
)

// RecallResult is the outcome of a staged recall: the stage that
// produced hits and the hits themselves.
type RecallResult struct {
	Stage RecallStage  `json:"stage"`
	Facts []ScoredFact `json:"facts"`
}

// Recall runs progressive retrieval over the tenant's facts: exact
// substring match first, then BM25 keyword search, then hybrid RRF
// fusion. Earlier stages are cheaper and higher precision; the first
// stage with hits wins. Only the hybrid stage can fail, and only when
// query embedding fails.
func (s *FactStore) Recall(ctx context.Context, tenantID, query string, topK int) (RecallResult, error) {
	if topK <= 0 {
		topK = DefaultRecallLimit
	}

	if exact := s.exactMatches(tenantID, query, topK); len(exact) > 0 {
		return RecallResult{Stage: StageExact, Facts: exact}, nil
	}
	if keyword := s.keywordMatches(tenantID, query, topK); len(keyword) > 0 {
		return RecallResult{Stage: StageKeyword, Facts: keyword}, nil
	}

	facts, err := s.Search(ctx, tenantID, query, topK)
	if err != nil {
		return RecallResult{}, err
	}
	return RecallResult{Stage: StageHybrid, Facts: facts}, nil
}

// exactMatches returns facts whose content contains the query,
// case-insensitively, newest first with score 1.
func (s *FactStore) exactMatches(tenantID, query string, topK int) []ScoredFact {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}

	matched := s.List(tenantID, "", 0)
	out := make([]ScoredFact, 0, topK)
	for _, fact := range matched {
		if !strings.Contains(strings.ToLower(fact.Content), needle) {
			continue
		}
		out = append(out, ScoredFact{Fact: fact, Score: 1})
		if len(out) == topK {
			break
		}
	}
	return out
}

func (s *FactStore) keywordMatches(tenantID, query string, topK int) []ScoredFact {
	s.mu.Lock()
	tenant, ok := s.tenants[tenantID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.resolve(tenantID, tenant.searcher.bm25.Search(query, topK))
}
