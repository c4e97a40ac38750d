// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"time"
)

// Querier is the interface that MemoryGraph tools use to interact with
// the memory graph. It abstracts over the memory facade so that tools
// can be tested with a mock implementation.
type Querier interface {
	// Memory operations
	StoreMemory(ctx context.Context, req StoreMemoryRequest) (*Memory, error)
	GetMemory(ctx context.Context, id string, includeRelationships bool) (*Memory, []Relationship, error)
	UpdateMemory(ctx context.Context, req UpdateMemoryRequest) (*Memory, error)
	DeleteMemory(ctx context.Context, id string) error
	SearchMemories(ctx context.Context, q SearchQuery) (*PaginatedResult, error)
	GetRecentActivity(ctx context.Context, limit int) ([]Memory, error)
	TrackEntityTimeline(ctx context.Context, entity string) ([]Memory, error)

	// Relationship operations
	CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (*Relationship, error)
	GetRelatedMemories(ctx context.Context, id string, opts TraversalOptions) ([]RelatedMemory, error)
	SearchRelationshipsByContext(ctx context.Context, query string, limit int) ([]Relationship, error)
	ReinforceRelationship(ctx context.Context, id string, strengthBoost float64) (*Relationship, error)
	SuggestRelationshipType(ctx context.Context, fromID, toID string) ([]TypeSuggestion, error)

	// Bi-temporal operations
	InvalidateRelationship(ctx context.Context, id, invalidatedBy string) (*Relationship, error)
	GetRelationshipHistory(ctx context.Context, memoryID string) ([]Relationship, error)
	WhatChanged(ctx context.Context, since time.Time) (*ChangeSet, error)
	QueryAsOf(ctx context.Context, memoryID string, asOf time.Time) ([]RelatedMemory, error)

	// Analytics
	FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]PathStep, error)
	AnalyzeClusters(ctx context.Context, threshold float64) ([]Cluster, error)
	FindBridges(ctx context.Context) ([]Bridge, error)
	AnalyzeGraphMetrics(ctx context.Context) (*GraphMetrics, error)

	// Stats and health
	GetStats(ctx context.Context) (*GraphStats, error)
	Ping(ctx context.Context) error
}

// Migrator abstracts the migration engine for the two migration tools.
// Implemented in cmd, where backend construction from configuration lives.
type Migrator interface {
	Migrate(ctx context.Context, source, target string, dryRun bool) (*MigrationReport, error)
	Validate(ctx context.Context, source, target string) (*ValidationReport, error)
}
