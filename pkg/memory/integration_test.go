// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

func TestStoreAndGetRoundTrip(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	stored, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type:       "solution",
		Title:      "Fix",
		Content:    "Use backoff",
		Tags:       []string{"Redis", "Timeout"},
		Importance: 0.8,
		Confidence: 0.9,
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.Equal(t, 1, stored.Version)

	got, _, err := c.GetMemory(ctx, stored.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Fix", got.Title)
	assert.Equal(t, "Use backoff", got.Content)
	assert.Equal(t, []string{"redis", "timeout"}, got.Tags, "tags lowercased on store")
	assert.Equal(t, 1, got.Version)
	assert.Equal(t, time.UTC, got.CreatedAt.Location(), "timestamps surface as UTC")
}

func TestGetMemoryNotFound(t *testing.T) {
	c := newTestClient(t, false)
	_, _, err := c.GetMemory(context.Background(), "missing", false)
	assert.ErrorIs(t, err, tools.ErrNotFound)
}

func TestStoreMemoryValidation(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	_, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "nonsense", Title: "t", Content: "c",
	})
	assert.ErrorIs(t, err, tools.ErrValidation)

	_, err = c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "task", Title: "t", Content: strings.Repeat("x", tools.MaxContentLength+1),
	})
	assert.ErrorIs(t, err, tools.ErrValidation)
	assert.Contains(t, err.Error(), "character limit")
}

func TestUpdateMemoryPartial(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()
	m := mustStore(t, c, "task", "original")

	newTitle := "renamed"
	updated, err := c.UpdateMemory(ctx, tools.UpdateMemoryRequest{ID: m.ID, Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, m.Content, updated.Content, "unset fields unchanged")
	assert.Equal(t, 2, updated.Version)

	// No-op update still bumps the version.
	again, err := c.UpdateMemory(ctx, tools.UpdateMemoryRequest{ID: m.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, again.Version)
}

func TestUpdateMemoryNotFound(t *testing.T) {
	c := newTestClient(t, false)
	title := "x"
	_, err := c.UpdateMemory(context.Background(), tools.UpdateMemoryRequest{ID: "missing", Title: &title})
	assert.ErrorIs(t, err, tools.ErrNotFound)
}

func TestDeleteMemoryCascades(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "problem", "a")
	b := mustStore(t, c, "solution", "b")
	mustLink(t, c, b.ID, a.ID, "SOLVES")

	require.NoError(t, c.DeleteMemory(ctx, a.ID))

	_, _, err := c.GetMemory(ctx, a.ID, false)
	assert.ErrorIs(t, err, tools.ErrNotFound)

	rels, err := c.GetRelationshipHistory(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, rels, "relationships touching the deleted memory are gone")

	assert.ErrorIs(t, c.DeleteMemory(ctx, a.ID), tools.ErrNotFound)
}

func TestCycleRejectedAndAllowed(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "task", "A")
	b := mustStore(t, c, "task", "B")
	d := mustStore(t, c, "task", "C")
	mustLink(t, c, a.ID, b.ID, "DEPENDS_ON")
	mustLink(t, c, b.ID, d.ID, "DEPENDS_ON")

	_, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: d.ID, ToMemoryID: a.ID, Type: "DEPENDS_ON",
		Strength: 0.5, Confidence: 0.5,
	})
	require.ErrorIs(t, err, tools.ErrCycle)

	var cycErr *tools.CycleError
	require.ErrorAs(t, err, &cycErr)
	require.Len(t, cycErr.Path, 4, "three nodes plus the closing repeat")
	assert.Equal(t, cycErr.Path[0], cycErr.Path[len(cycErr.Path)-1])
	assert.ElementsMatch(t, []string{a.ID, b.ID, d.ID}, cycErr.Path[:3])

	// Same edge succeeds when cycles are allowed.
	permissive := newTestClient(t, true)
	pa := mustStore(t, permissive, "task", "A")
	pb := mustStore(t, permissive, "task", "B")
	mustLink(t, permissive, pa.ID, pb.ID, "DEPENDS_ON")
	mustLink(t, permissive, pb.ID, pa.ID, "DEPENDS_ON")
}

func TestSymmetricTypesSkipCycleCheck(t *testing.T) {
	c := newTestClient(t, false)
	a := mustStore(t, c, "general", "A")
	b := mustStore(t, c, "general", "B")
	mustLink(t, c, a.ID, b.ID, "SIMILAR_TO")
	mustLink(t, c, b.ID, a.ID, "SIMILAR_TO")
}

func TestCreateRelationshipSelfLoop(t *testing.T) {
	c := newTestClient(t, false)
	a := mustStore(t, c, "general", "A")
	_, err := c.CreateRelationship(context.Background(), tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: a.ID, Type: "RELATED_TO",
	})
	assert.ErrorIs(t, err, tools.ErrRelationship)
}

func TestCreateRelationshipMissingEndpoint(t *testing.T) {
	c := newTestClient(t, false)
	a := mustStore(t, c, "general", "A")
	_, err := c.CreateRelationship(context.Background(), tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: "missing", Type: "RELATED_TO",
	})
	assert.ErrorIs(t, err, tools.ErrNotFound)
}

func TestContextExtractionOnCreate(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "solution", "auth fix")
	b := mustStore(t, c, "problem", "auth broken")
	r, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: b.ID, Type: "PARTIALLY_SOLVES",
		Strength: 0.6, Confidence: 0.8,
		Context: "partially implements auth module, only works in production, verified by E2E tests",
	})
	require.NoError(t, err)

	var structured struct {
		Text       string   `json:"text"`
		Scope      *string  `json:"scope"`
		Components []string `json:"components"`
		Conditions []string `json:"conditions"`
		Evidence   []string `json:"evidence"`
		Temporal   *string  `json:"temporal"`
		Exceptions []string `json:"exceptions"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.Properties.ContextJSON), &structured))
	require.NotNil(t, structured.Scope)
	assert.Equal(t, "partial", *structured.Scope)
	assert.Equal(t, []string{"auth module"}, structured.Components)
	assert.Equal(t, []string{"production"}, structured.Conditions)
	assert.Equal(t, []string{"E2E tests"}, structured.Evidence)
	assert.Nil(t, structured.Temporal)
	assert.Empty(t, structured.Exceptions)
}

func TestBitemporalScenario(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "solution", "old fix")
	b := mustStore(t, c, "problem", "the problem")
	d := mustStore(t, c, "solution", "new fix")

	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	oldEdge, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: b.ID, Type: "SOLVES",
		Strength: 0.8, Confidence: 0.9, ValidFrom: &jan,
	})
	require.NoError(t, err)

	c.now = func() time.Time { return jun }
	_, err = c.InvalidateRelationship(ctx, oldEdge.ID, d.ID)
	require.NoError(t, err)

	newEdge, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: d.ID, ToMemoryID: b.ID, Type: "SOLVES",
		Strength: 0.9, Confidence: 0.9, ValidFrom: &jun,
	})
	require.NoError(t, err)

	march := c.QueryAsOfMust(t, ctx, b.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, march, 1)
	assert.Equal(t, oldEdge.ID, march[0].Relationship.ID)

	august := c.QueryAsOfMust(t, ctx, b.ID, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, august, 1)
	assert.Equal(t, newEdge.ID, august[0].Relationship.ID)

	history, err := c.GetRelationshipHistory(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, oldEdge.ID, history[0].ID, "ordered by valid_from")
	assert.Equal(t, newEdge.ID, history[1].ID)
}

// QueryAsOfMust wraps QueryAsOf for test readability.
func (c *Client) QueryAsOfMust(t *testing.T, ctx context.Context, id string, asOf time.Time) []tools.RelatedMemory {
	t.Helper()
	got, err := c.QueryAsOf(ctx, id, asOf)
	if err != nil {
		t.Fatalf("query as of: %v", err)
	}
	return got
}

func TestInvalidateIdempotent(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "general", "A")
	b := mustStore(t, c, "general", "B")
	r := mustLink(t, c, a.ID, b.ID, "RELATED_TO")

	first, err := c.InvalidateRelationship(ctx, r.ID, "")
	require.NoError(t, err)
	require.NotNil(t, first.ValidUntil)

	second, err := c.InvalidateRelationship(ctx, r.ID, "")
	require.NoError(t, err)
	assert.Equal(t, *first.ValidUntil, *second.ValidUntil, "second call is a no-op")
}

func TestReinforceRelationship(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "general", "A")
	b := mustStore(t, c, "general", "B")
	r := mustLink(t, c, a.ID, b.ID, "RELATED_TO")

	boosted, err := c.ReinforceRelationship(ctx, r.ID, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, boosted.Properties.Strength, 1e-9)
	assert.Equal(t, 2, boosted.Properties.EvidenceCount)

	capped, err := c.ReinforceRelationship(ctx, r.ID, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 1.0, capped.Properties.Strength, "strength caps at 1.0")

	_, err = c.InvalidateRelationship(ctx, r.ID, "")
	require.NoError(t, err)
	_, err = c.ReinforceRelationship(ctx, r.ID, 0.1)
	assert.ErrorIs(t, err, tools.ErrRelationship, "invalidated relationships cannot be reinforced")
}

func TestDefaultTraversalHidesInvalidated(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "general", "A")
	b := mustStore(t, c, "general", "B")
	d := mustStore(t, c, "general", "C")
	keep := mustLink(t, c, a.ID, b.ID, "RELATED_TO")
	drop := mustLink(t, c, a.ID, d.ID, "RELATED_TO")
	_, err := c.InvalidateRelationship(ctx, drop.ID, "")
	require.NoError(t, err)

	related, err := c.GetRelatedMemories(ctx, a.ID, tools.TraversalOptions{})
	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, keep.ID, related[0].Relationship.ID)
	assert.Nil(t, related[0].Relationship.ValidUntil)
}

func TestTraversalDepthAndOrdering(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	root := mustStore(t, c, "general", "root")
	near1 := mustStore(t, c, "general", "near1")
	near2 := mustStore(t, c, "general", "near2")
	far := mustStore(t, c, "general", "far")

	weak, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: root.ID, ToMemoryID: near1.ID, Type: "RELATED_TO",
		Strength: 0.3, Confidence: 0.5,
	})
	require.NoError(t, err)
	strong, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: root.ID, ToMemoryID: near2.ID, Type: "RELATED_TO",
		Strength: 0.9, Confidence: 0.5,
	})
	require.NoError(t, err)
	mustLink(t, c, near1.ID, far.ID, "LEADS_TO")

	depth1, err := c.GetRelatedMemories(ctx, root.ID, tools.TraversalOptions{MaxDepth: 1})
	require.NoError(t, err)
	require.Len(t, depth1, 2)
	assert.Equal(t, strong.ID, depth1[0].Relationship.ID, "strength DESC within a depth")
	assert.Equal(t, weak.ID, depth1[1].Relationship.ID)

	depth2, err := c.GetRelatedMemories(ctx, root.ID, tools.TraversalOptions{MaxDepth: 2})
	require.NoError(t, err)
	require.Len(t, depth2, 3)
	assert.Equal(t, far.ID, depth2[2].Memory.ID)
	assert.Equal(t, 2, depth2[2].Depth)
}

func TestSearchPagination(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	const n = 237
	for i := 0; i < n; i++ {
		_, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
			Type:    "general",
			Title:   fmt.Sprintf("memory %03d", i),
			Content: "filler",
		})
		require.NoError(t, err)
	}

	page, err := c.SearchMemories(ctx, tools.SearchQuery{Limit: 50, Offset: 100})
	require.NoError(t, err)
	assert.Len(t, page.Items, 50)
	assert.Equal(t, n, page.TotalCount)
	assert.True(t, page.HasMore)
	require.NotNil(t, page.NextOffset)
	assert.Equal(t, 150, *page.NextOffset)

	tail, err := c.SearchMemories(ctx, tools.SearchQuery{Limit: 50, Offset: 220})
	require.NoError(t, err)
	assert.Len(t, tail.Items, 17)
	assert.False(t, tail.HasMore)
	assert.Nil(t, tail.NextOffset)

	beyond, err := c.SearchMemories(ctx, tools.SearchQuery{Limit: 50, Offset: 500})
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, n, beyond.TotalCount)
}

func TestSearchTolerances(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	_, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "solution", Title: "Connection pooling",
		Content: "Reuse database connections to cut latency",
	})
	require.NoError(t, err)

	strict, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "database connections", Tolerance: "strict",
	})
	require.NoError(t, err)
	assert.Len(t, strict.Items, 1)

	strictMiss, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "connections database", Tolerance: "strict",
	})
	require.NoError(t, err)
	assert.Empty(t, strictMiss.Items, "strict requires the whole phrase")

	normal, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "connections elsewhere", Tolerance: "normal",
	})
	require.NoError(t, err)
	assert.Len(t, normal.Items, 1, "normal matches on any token")

	fuzzy, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "latencey", Tolerance: "fuzzy",
	})
	require.NoError(t, err)
	assert.Len(t, fuzzy.Items, 1, "fuzzy tolerates one edit per token")

	fuzzyMiss, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "ltnc", Tolerance: "fuzzy",
	})
	require.NoError(t, err)
	assert.Empty(t, fuzzyMiss.Items)
}

func TestSearchFuzzyMultibyte(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	_, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "general", Title: "Team notes",
		Content: "Ask rené about the café deployment",
	})
	require.NoError(t, err)

	// A dropped accent is one rune edit, not two byte edits.
	for _, query := range []string{"cafe", "rene"} {
		hits, err := c.SearchMemories(ctx, tools.SearchQuery{
			Query: query, Tolerance: "fuzzy",
		})
		require.NoError(t, err)
		assert.Len(t, hits.Items, 1, "query %q should fuzzy-match", query)
	}
}

func TestSearchMatchModes(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	_, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "solution", Title: "redis retry", Content: "x", Tags: []string{"redis"},
	})
	require.NoError(t, err)
	_, err = c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "problem", Title: "postgres deadlock", Content: "x", Tags: []string{"postgres"},
	})
	require.NoError(t, err)

	all, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "redis", MemoryTypes: []string{"problem"}, MatchMode: "all",
	})
	require.NoError(t, err)
	assert.Empty(t, all.Items, "all-mode requires every filter to hold")

	any, err := c.SearchMemories(ctx, tools.SearchQuery{
		Query: "redis", MemoryTypes: []string{"problem"}, MatchMode: "any",
	})
	require.NoError(t, err)
	assert.Len(t, any.Items, 2, "any-mode accepts a row matching one filter")

	tagged, err := c.SearchMemories(ctx, tools.SearchQuery{Tags: []string{"REDIS"}})
	require.NoError(t, err)
	assert.Len(t, tagged.Items, 1, "tag filters are case-insensitive")
}

func TestWhatChanged(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "general", "A")
	b := mustStore(t, c, "general", "B")

	early := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return early }
	old := mustLink(t, c, a.ID, b.ID, "CAUSES")

	c.now = func() time.Time { return late }
	_, err := c.InvalidateRelationship(ctx, old.ID, "")
	require.NoError(t, err)
	fresh := mustLink(t, c, a.ID, b.ID, "LEADS_TO")

	changes, err := c.WhatChanged(ctx, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, changes.Created, 1)
	assert.Equal(t, fresh.ID, changes.Created[0].ID)
	require.Len(t, changes.Invalidated, 1)
	assert.Equal(t, old.ID, changes.Invalidated[0].ID)
}

func TestRecentActivity(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	first := mustStore(t, c, "general", "first")
	mustStore(t, c, "general", "second")
	third := mustStore(t, c, "general", "third")

	title := "first again"
	_, err := c.UpdateMemory(ctx, tools.UpdateMemoryRequest{ID: first.ID, Title: &title})
	require.NoError(t, err)

	recent, err := c.GetRecentActivity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, first.ID, recent[0].ID, "most recently touched first")
	assert.Equal(t, third.ID, recent[1].ID)
}

func TestEntityTimeline(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	m1, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "fix", Title: "first redis fix", Content: "x",
		Context: tools.MemoryContext{Technologies: []string{"Redis"}},
	})
	require.NoError(t, err)
	_, err = c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "fix", Title: "unrelated", Content: "x",
	})
	require.NoError(t, err)
	m3, err := c.StoreMemory(ctx, tools.StoreMemoryRequest{
		Type: "problem", Title: "later redis problem", Content: "x",
		Tags: []string{"redis"},
	})
	require.NoError(t, err)

	timeline, err := c.TrackEntityTimeline(ctx, "redis")
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, m1.ID, timeline[0].ID, "chronological order")
	assert.Equal(t, m3.ID, timeline[1].ID)
}

func TestSearchRelationshipsByContext(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "solution", "A")
	b := mustStore(t, c, "problem", "B")
	d := mustStore(t, c, "problem", "D")

	hit, err := c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: b.ID, Type: "SOLVES",
		Strength: 0.8, Confidence: 0.9,
		Context: "only works in production",
	})
	require.NoError(t, err)
	_, err = c.CreateRelationship(ctx, tools.CreateRelationshipRequest{
		FromMemoryID: a.ID, ToMemoryID: d.ID, Type: "ADDRESSES",
		Strength: 0.5, Confidence: 0.5,
		Context: "verified by unit tests",
	})
	require.NoError(t, err)

	found, err := c.SearchRelationshipsByContext(ctx, "production", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, hit.ID, found[0].ID)
}

func TestGetStats(t *testing.T) {
	c := newTestClient(t, false)
	ctx := context.Background()

	a := mustStore(t, c, "task", "A")
	b := mustStore(t, c, "task", "B")
	mustStore(t, c, "solution", "S")
	r := mustLink(t, c, a.ID, b.ID, "PRECEDES")
	_, err := c.InvalidateRelationship(ctx, r.ID, "")
	require.NoError(t, err)

	stats, err := c.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MemoryCount)
	assert.Equal(t, 1, stats.RelationshipCount)
	assert.Equal(t, 0, stats.CurrentRelationships)
	assert.Equal(t, 2, stats.MemoriesByType["task"])
	assert.Equal(t, "sqlite", stats.Backend)
	assert.True(t, stats.Healthy)
}

func TestBackendErrorsClassified(t *testing.T) {
	c := newTestClient(t, false)
	// Force a closed backend to observe the classified error kind.
	require.NoError(t, c.backend.Close())

	_, _, err := c.GetMemory(context.Background(), "any", false)
	require.Error(t, err)
	assert.False(t, errors.Is(err, tools.ErrValidation))
}
