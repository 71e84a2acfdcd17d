package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorworks/praetor/pkg/search"
)

func TestFactService_RememberAndRecall(t *testing.T) {
	ctx := context.Background()
	svc := NewFactService(search.NewFactStore(nil, nil), nil, nil)

	fact, created, err := svc.Remember(ctx, "acme", "the staging cluster runs postgres 16", []string{"infra"}, "runbook")
	require.NoError(t, err)
	assert.True(t, created)

	// Same content is deduplicated.
	dup, created, err := svc.Remember(ctx, "acme", "the staging cluster runs postgres 16", nil, "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, fact.ID, dup.ID)

	hits, err := svc.Recall(ctx, "acme", "staging postgres", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, fact.ID, hits[0].Fact.ID)
}

func TestFactService_RememberValidation(t *testing.T) {
	svc := NewFactService(search.NewFactStore(nil, nil), nil, nil)

	_, _, err := svc.Remember(context.Background(), "acme", "   ", nil, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Recall(context.Background(), "acme", "", 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFactService_ForgetAndTenantIsolation(t *testing.T) {
	ctx := context.Background()
	svc := NewFactService(search.NewFactStore(nil, nil), nil, nil)

	fact, _, err := svc.Remember(ctx, "acme", "deploys freeze on fridays", nil, "")
	require.NoError(t, err)

	// Another tenant cannot see or forget it.
	_, err = svc.Get("globex", fact.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Forget(ctx, "globex", fact.ID), ErrNotFound)

	require.NoError(t, svc.Forget(ctx, "acme", fact.ID))
	_, err = svc.Get("acme", fact.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFactService_PersistenceAndRestore(t *testing.T) {
	ctx := context.Background()
	client := newTestDB(t)

	first := NewFactService(search.NewFactStore(nil, nil), client.Facts(), nil)
	fact, created, err := first.Remember(ctx, "acme", "the api gateway caps requests at 60 rpm", []string{"limits"}, "")
	require.NoError(t, err)
	require.True(t, created)

	// A fresh in-memory store starts empty; Restore reloads the tenant.
	second := NewFactService(search.NewFactStore(nil, nil), client.Facts(), nil)
	restored, err := second.Restore(ctx, []string{"acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	facts := second.List("acme", "", 10)
	require.Len(t, facts, 1)
	assert.Equal(t, fact.Content, facts[0].Content)
}

func TestFactService_ListByTag(t *testing.T) {
	ctx := context.Background()
	svc := NewFactService(search.NewFactStore(nil, nil), nil, nil)

	_, _, err := svc.Remember(ctx, "acme", "fact one", []string{"infra"}, "")
	require.NoError(t, err)
	_, _, err = svc.Remember(ctx, "acme", "fact two", []string{"billing"}, "")
	require.NoError(t, err)

	assert.Len(t, svc.List("acme", "infra", 10), 1)
	assert.Len(t, svc.List("acme", "", 10), 2)
}
