package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praetorworks/praetor/pkg/models"
)

var (
	// ErrFactNotFound is returned when a fact ID does not exist for
	// the tenant.
	ErrFactNotFound = errors.New("fact not found")
	// ErrEmptyFact is returned when the content to remember is blank.
	ErrEmptyFact = errors.New("fact content is empty")
)

// HashContent returns the canonical content hash used to deduplicate
// facts within a tenant.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// ScoredFact pairs a stored fact with its retrieval score.
type ScoredFact struct {
	Fact  models.Fact
	Score float64
}

type tenantFacts struct {
	byID     map[string]models.Fact
	byHash   map[string]string // content hash -> fact ID
	searcher *HybridSearcher
}

// FactStore keeps tenant-scoped facts deduplicated by content hash,
// with a hybrid index per tenant behind a shared embedder. The store
// lock covers only the fact maps; indexing and embedding happen
// outside it.
type FactStore struct {
	mu       sync.Mutex
	tenants  map[string]*tenantFacts
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewFactStore returns an empty store. A nil embedder leaves facts
// keyword-searchable only.
func NewFactStore(embedder Embedder, logger *slog.Logger) *FactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactStore{
		tenants:  make(map[string]*tenantFacts),
		embedder: embedder,
		logger:   logger.With("component", "fact_store"),
		now:      time.Now,
	}
}

// SetClock overrides the store's time source.
func (s *FactStore) SetClock(now func() time.Time) { s.now = now }

func (s *FactStore) tenantLocked(tenantID string) *tenantFacts {
	t, ok := s.tenants[tenantID]
	if !ok {
		t = &tenantFacts{
			byID:     make(map[string]models.Fact),
			byHash:   make(map[string]string),
			searcher: NewHybridSearcher(s.embedder),
		}
		s.tenants[tenantID] = t
	}
	return t
}

// Remember stores content as a fact for the tenant. When a fact with
// the same content hash already exists, the existing fact is returned
// and created is false. Embedding failures degrade the new fact to
// keyword-only retrieval; they never lose it.
func (s *FactStore) Remember(ctx context.Context, tenantID, content string, tags []string, source string) (models.Fact, bool, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return models.Fact{}, false, ErrEmptyFact
	}
	hash := HashContent(trimmed)

	s.mu.Lock()
	tenant := s.tenantLocked(tenantID)
	if id, dup := tenant.byHash[hash]; dup {
		existing := tenant.byID[id]
		s.mu.Unlock()
		return existing, false, nil
	}
	fact := models.Fact{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		Content:     trimmed,
		ContentHash: hash,
		Tags:        append([]string(nil), tags...),
		Source:      source,
		CreatedAt:   s.now().UTC(),
	}
	tenant.byID[fact.ID] = fact
	tenant.byHash[hash] = fact.ID
	searcher := tenant.searcher
	s.mu.Unlock()

	if err := searcher.Index(ctx, fact.ID, trimmed); err != nil {
		s.logger.Warn("fact stored without vector index",
			"tenant_id", tenantID, "fact_id", fact.ID, "error", err)
	}
	return fact, true, nil
}

// Forget removes a fact and its index entries.
func (s *FactStore) Forget(tenantID, factID string) error {
	s.mu.Lock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		s.mu.Unlock()
		return ErrFactNotFound
	}
	fact, ok := tenant.byID[factID]
	if !ok {
		s.mu.Unlock()
		return ErrFactNotFound
	}
	delete(tenant.byID, factID)
	delete(tenant.byHash, fact.ContentHash)
	searcher := tenant.searcher
	s.mu.Unlock()

	searcher.Remove(factID)
	return nil
}

// Get returns a fact by ID.
func (s *FactStore) Get(tenantID, factID string) (models.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return models.Fact{}, ErrFactNotFound
	}
	fact, ok := tenant.byID[factID]
	if !ok {
		return models.Fact{}, ErrFactNotFound
	}
	return fact, nil
}

// List returns the tenant's facts newest first, optionally filtered to
// those carrying tag. limit <= 0 means unlimited.
func (s *FactStore) List(tenantID, tag string, limit int) []models.Fact {
	s.mu.Lock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	facts := make([]models.Fact, 0, len(tenant.byID))
	for _, f := range tenant.byID {
		if tag != "" && !hasTag(f.Tags, tag) {
			continue
		}
		facts = append(facts, f)
	}
	s.mu.Unlock()

	sort.Slice(facts, func(i, j int) bool {
		if !facts[i].CreatedAt.Equal(facts[j].CreatedAt) {
			return facts[i].CreatedAt.After(facts[j].CreatedAt)
		}
		return facts[i].ID < facts[j].ID
	})
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return facts
}

// Count returns the tenant's fact count.
func (s *FactStore) Count(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return 0
	}
	return len(tenant.byID)
}

// Search runs hybrid retrieval over the tenant's facts. Index entries
// whose fact has been forgotten mid-flight are skipped.
func (s *FactStore) Search(ctx context.Context, tenantID, query string, topK int) ([]ScoredFact, error) {
	s.mu.Lock()
	tenant, ok := s.tenants[tenantID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	docs, err := tenant.searcher.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	return s.resolve(tenantID, docs), nil
}

func (s *FactStore) resolve(tenantID string, docs []ScoredDoc) []ScoredFact {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant, ok := s.tenants[tenantID]
	if !ok {
		return nil
	}
	out := make([]ScoredFact, 0, len(docs))
	for _, doc := range docs {
		fact, ok := tenant.byID[doc.ID]
		if !ok {
			continue
		}
		out = append(out, ScoredFact{Fact: fact, Score: doc.Score})
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
