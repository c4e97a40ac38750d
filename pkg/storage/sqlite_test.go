// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

func newTestBackend(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func testMemory(id, memType, title string) *tools.Memory {
	return &tools.Memory{
		ID:         id,
		Type:       memType,
		Title:      title,
		Content:    "content of " + title,
		Tags:       []string{"test"},
		Importance: 0.5,
		Confidence: 0.8,
	}
}

func TestSchemaIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idem.db")

	b1, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = b1.StoreMemory(ctx, testMemory("m1", "task", "first"))
	require.NoError(t, err)
	require.NoError(t, b1.EnsureSchema(ctx))
	require.NoError(t, b1.Close())

	// Reopen: schema application must not disturb existing data.
	b2, err := NewSQLiteBackend(SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer b2.Close()

	got, err := b2.GetMemory(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Title)

	count, err := b2.CountMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStoreMemoryUpsert(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	first, err := b.StoreMemory(ctx, testMemory("m1", "task", "original"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.False(t, first.CreatedAt.IsZero())

	updated := testMemory("m1", "task", "changed")
	second, err := b.StoreMemory(ctx, updated)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version, "replace increments version")
	assert.Equal(t, first.CreatedAt, second.CreatedAt, "replace preserves created_at")
	assert.True(t, second.UpdatedAt.After(second.CreatedAt) || second.UpdatedAt.Equal(second.CreatedAt))

	got, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Title)
}

func TestGetMemoryAbsent(t *testing.T) {
	b := newTestBackend(t)
	got, err := b.GetMemory(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteCascadesRelationships(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := b.StoreMemory(ctx, testMemory(id, "general", id))
		require.NoError(t, err)
	}
	now := time.Now().UTC()
	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "r1", FromMemoryID: "a", ToMemoryID: "b", Type: "CAUSES",
		Properties: tools.RelationshipProperties{Strength: 0.7, Confidence: 0.9, EvidenceCount: 1},
		ValidFrom:  now, RecordedAt: now, CreatedAt: now,
	}))
	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "r2", FromMemoryID: "b", ToMemoryID: "c", Type: "LEADS_TO",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.9, EvidenceCount: 1},
		ValidFrom:  now, RecordedAt: now, CreatedAt: now,
	}))

	deleted, err := b.DeleteMemory(ctx, "b")
	require.NoError(t, err)
	assert.True(t, deleted)

	rels, err := b.AllRelationships(ctx)
	require.NoError(t, err)
	assert.Empty(t, rels, "every relationship touching b is gone")

	deleted, err = b.DeleteMemory(ctx, "b")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports no row")
}

func TestListMemoriesFilterAndOrder(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	low := testMemory("low", "task", "low importance")
	low.Importance = 0.2
	high := testMemory("high", "task", "high importance")
	high.Importance = 0.9
	other := testMemory("other", "solution", "a solution")
	other.Importance = 0.9
	for _, m := range []*tools.Memory{low, high, other} {
		_, err := b.StoreMemory(ctx, m)
		require.NoError(t, err)
	}

	all, err := b.ListMemories(ctx, MemoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 0.9, all[0].Importance)
	assert.Equal(t, "low", all[2].ID, "importance DESC puts the weak row last")

	min := 0.5
	tasks, err := b.ListMemories(ctx, MemoryFilter{Types: []string{"task"}, MinImportance: &min})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "high", tasks[0].ID)
}

func TestListMemoriesProjectPath(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	m := testMemory("p1", "project", "proj")
	m.Context.ProjectPath = "/work/api"
	_, err := b.StoreMemory(ctx, m)
	require.NoError(t, err)
	_, err = b.StoreMemory(ctx, testMemory("p2", "project", "other proj"))
	require.NoError(t, err)

	got, err := b.ListMemories(ctx, MemoryFilter{ProjectPath: "/work/api"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0].ID)
}

func TestRelationshipTemporalVisibility(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := b.StoreMemory(ctx, testMemory(id, "general", id))
		require.NoError(t, err)
	}

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	until := base.Add(48 * time.Hour)
	invalidated := &tools.Relationship{
		ID: "r-old", FromMemoryID: "a", ToMemoryID: "b", Type: "SOLVES",
		Properties: tools.RelationshipProperties{Strength: 0.8, Confidence: 0.9, EvidenceCount: 1},
		ValidFrom:  base, ValidUntil: &until, RecordedAt: base, CreatedAt: base,
	}
	require.NoError(t, b.CreateRelationship(ctx, invalidated))
	current := &tools.Relationship{
		ID: "r-new", FromMemoryID: "a", ToMemoryID: "b", Type: "SUPERSEDES",
		Properties: tools.RelationshipProperties{Strength: 0.9, Confidence: 0.9, EvidenceCount: 1},
		ValidFrom:  until, RecordedAt: until, CreatedAt: until,
	}
	require.NoError(t, b.CreateRelationship(ctx, current))

	// Current view: only the non-invalidated row.
	rels, err := b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "r-new", rels[0].ID)

	// As-of inside the old row's validity window.
	asOf := base.Add(time.Hour)
	rels, err = b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", AsOf: &asOf})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "r-old", rels[0].ID)

	// As-of exactly at valid_until: the old row is no longer visible.
	rels, err = b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", AsOf: &until})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "r-new", rels[0].ID)

	// History view returns both.
	rels, err = b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", IncludeInvalidated: true})
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestRelationshipDirectionAndTypes(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := b.StoreMemory(ctx, testMemory(id, "general", id))
		require.NoError(t, err)
	}
	now := time.Now().UTC()
	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "out", FromMemoryID: "a", ToMemoryID: "b", Type: "CAUSES",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.5, EvidenceCount: 1},
		ValidFrom:  now, RecordedAt: now, CreatedAt: now,
	}))
	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "in", FromMemoryID: "c", ToMemoryID: "a", Type: "SOLVES",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.5, EvidenceCount: 1},
		ValidFrom:  now, RecordedAt: now, CreatedAt: now,
	}))

	outs, err := b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", Direction: DirectionOut})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, "out", outs[0].ID)

	ins, err := b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", Direction: DirectionIn})
	require.NoError(t, err)
	require.Len(t, ins, 1)
	assert.Equal(t, "in", ins[0].ID)

	both, err := b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a"})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	typed, err := b.GetRelationships(ctx, RelationshipQuery{MemoryID: "a", Types: []string{"SOLVES"}})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "in", typed[0].ID)
}

func TestUpdateRelationship(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := b.StoreMemory(ctx, testMemory(id, "general", id))
		require.NoError(t, err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	r := &tools.Relationship{
		ID: "r1", FromMemoryID: "a", ToMemoryID: "b", Type: "CAUSES",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.5, EvidenceCount: 1},
		ValidFrom:  now, RecordedAt: now, CreatedAt: now,
	}
	require.NoError(t, b.CreateRelationship(ctx, r))

	until := now.Add(time.Hour)
	r.ValidUntil = &until
	r.InvalidatedBy = "r2"
	r.Properties.Strength = 0.6
	require.NoError(t, b.UpdateRelationship(ctx, r))

	got, err := b.GetRelationship(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ValidUntil)
	assert.Equal(t, until, *got.ValidUntil)
	assert.Equal(t, "r2", got.InvalidatedBy)
	assert.Equal(t, 0.6, got.Properties.Strength)
}

func TestChangedSince(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		_, err := b.StoreMemory(ctx, testMemory(id, "general", id))
		require.NoError(t, err)
	}

	early := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	invalidatedAt := time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)

	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "r-early", FromMemoryID: "a", ToMemoryID: "b", Type: "CAUSES",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.5, EvidenceCount: 1},
		ValidFrom:  early, ValidUntil: &invalidatedAt, RecordedAt: early, CreatedAt: early,
	}))
	require.NoError(t, b.CreateRelationship(ctx, &tools.Relationship{
		ID: "r-late", FromMemoryID: "a", ToMemoryID: "b", Type: "SOLVES",
		Properties: tools.RelationshipProperties{Strength: 0.5, Confidence: 0.5, EvidenceCount: 1},
		ValidFrom:  late, RecordedAt: late, CreatedAt: late,
	}))

	since := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	created, invalidated, err := b.ChangedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "r-late", created[0].ID)
	require.Len(t, invalidated, 1)
	assert.Equal(t, "r-early", invalidated[0].ID)
}

func TestClosedBackendRejectsCalls(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "double close is safe")

	_, err := b.GetMemory(context.Background(), "m1")
	assert.Error(t, err)
	assert.Error(t, b.Ping(context.Background()))
}

func TestInMemoryBackend(t *testing.T) {
	b, err := NewSQLiteBackend(SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	_, err = b.StoreMemory(ctx, testMemory("m1", "task", "ephemeral"))
	require.NoError(t, err)
	got, err := b.GetMemory(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
}
