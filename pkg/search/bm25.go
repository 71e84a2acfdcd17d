// Package search implements the retrieval stack behind progressive
// recall: an incrementally maintained Okapi BM25 keyword index, a
// brute-force cosine vector index, and Reciprocal Rank Fusion to merge
// the two rankings over a tenant-scoped fact store.
package search

import (
	"math"
	"sort"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
)

// Okapi BM25 parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// stopWords is the fixed 56-word English list dropped during tokenization.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "all", "an", "and", "any", "are", "as",
		"at", "be", "been", "but", "by", "can", "could", "did",
		"do", "for", "from", "had", "has", "have", "he", "her",
		"his", "how", "i", "if", "in", "into", "is", "it",
		"its", "no", "not", "of", "on", "or", "our", "she",
		"so", "some", "that", "the", "their", "then", "there", "these",
		"they", "this", "to", "was", "we", "what", "when", "with",
	} {
		stopWords[w] = struct{}{}
	}
}

// Tokenize case-folds the input, extracts runs of word characters
// (letters, digits, underscore), and removes stop words. A fresh Caser
// per call: Casers are stateful and not safe for concurrent use.
func Tokenize(text string) []string {
	lower := cases.Fold().String(text)
	var tokens []string
	start := -1
	for i, r := range lower {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			appendToken(&tokens, lower[start:i])
			start = -1
		}
	}
	if start >= 0 {
		appendToken(&tokens, lower[start:])
	}
	return tokens
}

func appendToken(tokens *[]string, tok string) {
	if _, skip := stopWords[tok]; !skip {
		*tokens = append(*tokens, tok)
	}
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ScoredDoc is a document ID with a retrieval score. Higher is better.
type ScoredDoc struct {
	ID    string
	Score float64
}

type bm25Doc struct {
	terms  map[string]int
	length int
}

// BM25Index is an in-memory Okapi BM25 index. Corpus statistics
// (per-term document frequency, total length, average length) are
// maintained incrementally, so a single insert costs only the distinct
// terms of the inserted document.
type BM25Index struct {
	mu       sync.RWMutex
	docs     map[string]*bm25Doc
	postings map[string]map[string]int // term -> doc ID -> term frequency
	totalLen int
}

// NewBM25Index returns an empty index.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs:     make(map[string]*bm25Doc),
		postings: make(map[string]map[string]int),
	}
}

// Add indexes content under id, replacing any existing document with
// the same ID.
func (ix *BM25Index) Add(id, content string) {
	tokens := Tokenize(content)
	terms := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		terms[tok]++
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)
	ix.docs[id] = &bm25Doc{terms: terms, length: len(tokens)}
	ix.totalLen += len(tokens)
	for term, tf := range terms {
		posting := ix.postings[term]
		if posting == nil {
			posting = make(map[string]int)
			ix.postings[term] = posting
		}
		posting[id] = tf
	}
}

// Remove deletes the document with the given ID, if present.
func (ix *BM25Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *BM25Index) removeLocked(id string) {
	doc, ok := ix.docs[id]
	if !ok {
		return
	}
	for term := range doc.terms {
		posting := ix.postings[term]
		delete(posting, id)
		if len(posting) == 0 {
			delete(ix.postings, term)
		}
	}
	ix.totalLen -= doc.length
	delete(ix.docs, id)
}

// Len returns the number of indexed documents.
func (ix *BM25Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores every document sharing at least one term with the query
// and returns up to topK results, best first. Ties break on ascending
// document ID so rankings are deterministic. topK <= 0 means unlimited.
func (ix *BM25Index) Search(query string, topK int) []ScoredDoc {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(ix.totalLen) / float64(n)

	scores := make(map[string]float64)
	seen := make(map[string]struct{}, len(queryTerms))
	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		posting := ix.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (float64(n)-df+0.5)/(df+0.5))
		for id, tf := range posting {
			doc := ix.docs[id]
			norm := 1 - bm25B + bm25B*float64(doc.length)/avgLen
			freq := float64(tf)
			scores[id] += idf * (freq * (bm25K1 + 1)) / (freq + bm25K1*norm)
		}
	}

	ranked := make([]ScoredDoc, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, ScoredDoc{ID: id, Score: score})
	}
	sortScoredDocs(ranked)
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func sortScoredDocs(docs []ScoredDoc) {
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].ID < docs[j].ID
	})
}
