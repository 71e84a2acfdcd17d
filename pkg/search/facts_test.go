package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactStore(t *testing.T) *FactStore {
	t.Helper()
	s := NewFactStore(NewLocalEmbedder(), nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seq := 0
	s.SetClock(func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Second)
	})
	return s
}

func TestFactStore_RememberAndDedup(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	fact, created, err := s.Remember(ctx, "acme", "deploys happen on tuesdays", []string{"ops"}, "runlog")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, fact.ID)
	assert.Equal(t, "acme", fact.TenantID)
	assert.Equal(t, HashContent("deploys happen on tuesdays"), fact.ContentHash)
	assert.Equal(t, []string{"ops"}, fact.Tags)
	assert.False(t, fact.CreatedAt.IsZero())

	// Same content, modulo surrounding whitespace, is a duplicate.
	dup, created, err := s.Remember(ctx, "acme", "  deploys happen on tuesdays  ", nil, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fact.ID, dup.ID)
	assert.Equal(t, 1, s.Count("acme"))
}

func TestFactStore_TenantsIsolated(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	_, _, err := s.Remember(ctx, "acme", "shared content", nil, "")
	require.NoError(t, err)
	_, created, err := s.Remember(ctx, "globex", "shared content", nil, "")
	require.NoError(t, err)

	// The same content is not a duplicate across tenants.
	assert.True(t, created)
	assert.Equal(t, 1, s.Count("acme"))
	assert.Equal(t, 1, s.Count("globex"))

	res, err := s.Recall(ctx, "initech", "shared content", 5)
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
}

func TestFactStore_EmptyContent(t *testing.T) {
	s := newTestFactStore(t)
	_, _, err := s.Remember(context.Background(), "acme", "   ", nil, "")
	assert.ErrorIs(t, err, ErrEmptyFact)
}

func TestFactStore_Forget(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	fact, _, err := s.Remember(ctx, "acme", "postgres lives on db-1", nil, "")
	require.NoError(t, err)

	require.NoError(t, s.Forget("acme", fact.ID))
	assert.Equal(t, 0, s.Count("acme"))
	_, err = s.Get("acme", fact.ID)
	assert.ErrorIs(t, err, ErrFactNotFound)

	// Forgetting frees the content hash for re-remembering.
	_, created, err := s.Remember(ctx, "acme", "postgres lives on db-1", nil, "")
	require.NoError(t, err)
	assert.True(t, created)

	assert.ErrorIs(t, s.Forget("acme", "missing"), ErrFactNotFound)
	assert.ErrorIs(t, s.Forget("ghost-tenant", fact.ID), ErrFactNotFound)
}

func TestFactStore_List(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	_, _, err := s.Remember(ctx, "acme", "first fact", []string{"ops"}, "")
	require.NoError(t, err)
	_, _, err = s.Remember(ctx, "acme", "second fact", []string{"dev"}, "")
	require.NoError(t, err)
	_, _, err = s.Remember(ctx, "acme", "third fact", []string{"ops"}, "")
	require.NoError(t, err)

	all := s.List("acme", "", 0)
	require.Len(t, all, 3)
	assert.Equal(t, "third fact", all[0].Content)
	assert.Equal(t, "first fact", all[2].Content)

	ops := s.List("acme", "ops", 0)
	require.Len(t, ops, 2)

	assert.Len(t, s.List("acme", "", 2), 2)
	assert.Empty(t, s.List("unknown", "", 0))
}

func TestFactStore_Recall_ExactStage(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	_, _, err := s.Remember(ctx, "acme", "The staging cluster runs Kubernetes 1.29", nil, "")
	require.NoError(t, err)
	_, _, err = s.Remember(ctx, "acme", "Production deploys require two approvals", nil, "")
	require.NoError(t, err)

	res, err := s.Recall(ctx, "acme", "staging cluster", 5)
	require.NoError(t, err)
	assert.Equal(t, StageExact, res.Stage)
	require.Len(t, res.Facts, 1)
	assert.Contains(t, res.Facts[0].Fact.Content, "staging cluster")
	assert.Equal(t, 1.0, res.Facts[0].Score)
}

func TestFactStore_Recall_KeywordStage(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	_, _, err := s.Remember(ctx, "acme", "rollback procedure for failed deploys", nil, "")
	require.NoError(t, err)

	// Word order breaks the substring match but not the keyword index.
	res, err := s.Recall(ctx, "acme", "deploys rollback", 5)
	require.NoError(t, err)
	assert.Equal(t, StageKeyword, res.Stage)
	require.Len(t, res.Facts, 1)
}

func TestFactStore_Recall_HybridStage(t *testing.T) {
	s := newTestFactStore(t)
	ctx := context.Background()

	_, _, err := s.Remember(ctx, "acme", "incident postmortems are stored in the wiki", nil, "")
	require.NoError(t, err)

	// No shared tokens with the stored fact: exact and keyword both
	// miss, so recall falls through to the hybrid stage.
	res, err := s.Recall(ctx, "acme", "outage retrospective location", 5)
	require.NoError(t, err)
	assert.Equal(t, StageHybrid, res.Stage)
}

func TestHashContent_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, HashContent("x"), HashContent("  x \n"))
	assert.NotEqual(t, HashContent("x"), HashContent("y"))
	assert.Len(t, HashContent("x"), 64)
}
