// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"time"
)

// MockQuerier implements Querier with overridable function fields.
// Unset fields return zero values.
type MockQuerier struct {
	StoreMemoryFunc                  func(ctx context.Context, req StoreMemoryRequest) (*Memory, error)
	GetMemoryFunc                    func(ctx context.Context, id string, includeRelationships bool) (*Memory, []Relationship, error)
	UpdateMemoryFunc                 func(ctx context.Context, req UpdateMemoryRequest) (*Memory, error)
	DeleteMemoryFunc                 func(ctx context.Context, id string) error
	SearchMemoriesFunc               func(ctx context.Context, q SearchQuery) (*PaginatedResult, error)
	GetRecentActivityFunc            func(ctx context.Context, limit int) ([]Memory, error)
	TrackEntityTimelineFunc          func(ctx context.Context, entity string) ([]Memory, error)
	CreateRelationshipFunc           func(ctx context.Context, req CreateRelationshipRequest) (*Relationship, error)
	GetRelatedMemoriesFunc           func(ctx context.Context, id string, opts TraversalOptions) ([]RelatedMemory, error)
	SearchRelationshipsByContextFunc func(ctx context.Context, query string, limit int) ([]Relationship, error)
	ReinforceRelationshipFunc        func(ctx context.Context, id string, strengthBoost float64) (*Relationship, error)
	SuggestRelationshipTypeFunc      func(ctx context.Context, fromID, toID string) ([]TypeSuggestion, error)
	InvalidateRelationshipFunc       func(ctx context.Context, id, invalidatedBy string) (*Relationship, error)
	GetRelationshipHistoryFunc       func(ctx context.Context, memoryID string) ([]Relationship, error)
	WhatChangedFunc                  func(ctx context.Context, since time.Time) (*ChangeSet, error)
	QueryAsOfFunc                    func(ctx context.Context, memoryID string, asOf time.Time) ([]RelatedMemory, error)
	FindPathFunc                     func(ctx context.Context, fromID, toID string, maxDepth int) ([]PathStep, error)
	AnalyzeClustersFunc              func(ctx context.Context, threshold float64) ([]Cluster, error)
	FindBridgesFunc                  func(ctx context.Context) ([]Bridge, error)
	AnalyzeGraphMetricsFunc          func(ctx context.Context) (*GraphMetrics, error)
	GetStatsFunc                     func(ctx context.Context) (*GraphStats, error)
	PingFunc                         func(ctx context.Context) error
}

var _ Querier = (*MockQuerier)(nil)

func (m *MockQuerier) StoreMemory(ctx context.Context, req StoreMemoryRequest) (*Memory, error) {
	if m.StoreMemoryFunc != nil {
		return m.StoreMemoryFunc(ctx, req)
	}
	return &Memory{}, nil
}

func (m *MockQuerier) GetMemory(ctx context.Context, id string, includeRelationships bool) (*Memory, []Relationship, error) {
	if m.GetMemoryFunc != nil {
		return m.GetMemoryFunc(ctx, id, includeRelationships)
	}
	return &Memory{}, nil, nil
}

func (m *MockQuerier) UpdateMemory(ctx context.Context, req UpdateMemoryRequest) (*Memory, error) {
	if m.UpdateMemoryFunc != nil {
		return m.UpdateMemoryFunc(ctx, req)
	}
	return &Memory{}, nil
}

func (m *MockQuerier) DeleteMemory(ctx context.Context, id string) error {
	if m.DeleteMemoryFunc != nil {
		return m.DeleteMemoryFunc(ctx, id)
	}
	return nil
}

func (m *MockQuerier) SearchMemories(ctx context.Context, q SearchQuery) (*PaginatedResult, error) {
	if m.SearchMemoriesFunc != nil {
		return m.SearchMemoriesFunc(ctx, q)
	}
	return &PaginatedResult{}, nil
}

func (m *MockQuerier) GetRecentActivity(ctx context.Context, limit int) ([]Memory, error) {
	if m.GetRecentActivityFunc != nil {
		return m.GetRecentActivityFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockQuerier) TrackEntityTimeline(ctx context.Context, entity string) ([]Memory, error) {
	if m.TrackEntityTimelineFunc != nil {
		return m.TrackEntityTimelineFunc(ctx, entity)
	}
	return nil, nil
}

func (m *MockQuerier) CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (*Relationship, error) {
	if m.CreateRelationshipFunc != nil {
		return m.CreateRelationshipFunc(ctx, req)
	}
	return &Relationship{}, nil
}

func (m *MockQuerier) GetRelatedMemories(ctx context.Context, id string, opts TraversalOptions) ([]RelatedMemory, error) {
	if m.GetRelatedMemoriesFunc != nil {
		return m.GetRelatedMemoriesFunc(ctx, id, opts)
	}
	return nil, nil
}

func (m *MockQuerier) SearchRelationshipsByContext(ctx context.Context, query string, limit int) ([]Relationship, error) {
	if m.SearchRelationshipsByContextFunc != nil {
		return m.SearchRelationshipsByContextFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockQuerier) ReinforceRelationship(ctx context.Context, id string, strengthBoost float64) (*Relationship, error) {
	if m.ReinforceRelationshipFunc != nil {
		return m.ReinforceRelationshipFunc(ctx, id, strengthBoost)
	}
	return &Relationship{}, nil
}

func (m *MockQuerier) SuggestRelationshipType(ctx context.Context, fromID, toID string) ([]TypeSuggestion, error) {
	if m.SuggestRelationshipTypeFunc != nil {
		return m.SuggestRelationshipTypeFunc(ctx, fromID, toID)
	}
	return nil, nil
}

func (m *MockQuerier) InvalidateRelationship(ctx context.Context, id, invalidatedBy string) (*Relationship, error) {
	if m.InvalidateRelationshipFunc != nil {
		return m.InvalidateRelationshipFunc(ctx, id, invalidatedBy)
	}
	return &Relationship{}, nil
}

func (m *MockQuerier) GetRelationshipHistory(ctx context.Context, memoryID string) ([]Relationship, error) {
	if m.GetRelationshipHistoryFunc != nil {
		return m.GetRelationshipHistoryFunc(ctx, memoryID)
	}
	return nil, nil
}

func (m *MockQuerier) WhatChanged(ctx context.Context, since time.Time) (*ChangeSet, error) {
	if m.WhatChangedFunc != nil {
		return m.WhatChangedFunc(ctx, since)
	}
	return &ChangeSet{Since: since}, nil
}

func (m *MockQuerier) QueryAsOf(ctx context.Context, memoryID string, asOf time.Time) ([]RelatedMemory, error) {
	if m.QueryAsOfFunc != nil {
		return m.QueryAsOfFunc(ctx, memoryID, asOf)
	}
	return nil, nil
}

func (m *MockQuerier) FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]PathStep, error) {
	if m.FindPathFunc != nil {
		return m.FindPathFunc(ctx, fromID, toID, maxDepth)
	}
	return nil, nil
}

func (m *MockQuerier) AnalyzeClusters(ctx context.Context, threshold float64) ([]Cluster, error) {
	if m.AnalyzeClustersFunc != nil {
		return m.AnalyzeClustersFunc(ctx, threshold)
	}
	return nil, nil
}

func (m *MockQuerier) FindBridges(ctx context.Context) ([]Bridge, error) {
	if m.FindBridgesFunc != nil {
		return m.FindBridgesFunc(ctx)
	}
	return nil, nil
}

func (m *MockQuerier) AnalyzeGraphMetrics(ctx context.Context) (*GraphMetrics, error) {
	if m.AnalyzeGraphMetricsFunc != nil {
		return m.AnalyzeGraphMetricsFunc(ctx)
	}
	return &GraphMetrics{}, nil
}

func (m *MockQuerier) GetStats(ctx context.Context) (*GraphStats, error) {
	if m.GetStatsFunc != nil {
		return m.GetStatsFunc(ctx)
	}
	return &GraphStats{}, nil
}

func (m *MockQuerier) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// MockMigrator implements Migrator with overridable function fields.
type MockMigrator struct {
	MigrateFunc  func(ctx context.Context, source, target string, dryRun bool) (*MigrationReport, error)
	ValidateFunc func(ctx context.Context, source, target string) (*ValidationReport, error)
}

var _ Migrator = (*MockMigrator)(nil)

func (m *MockMigrator) Migrate(ctx context.Context, source, target string, dryRun bool) (*MigrationReport, error) {
	if m.MigrateFunc != nil {
		return m.MigrateFunc(ctx, source, target, dryRun)
	}
	return &MigrationReport{Source: source, Target: target, DryRun: dryRun}, nil
}

func (m *MockMigrator) Validate(ctx context.Context, source, target string) (*ValidationReport, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx, source, target)
	}
	return &ValidationReport{Source: source, Target: target}, nil
}
