// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

// Error kinds reported by backends. Wrapped by the concrete errors so
// callers classify with errors.Is.
var (
	ErrDatabaseLocked   = errors.New("database locked")
	ErrConnectionFailed = errors.New("connection failed")
	ErrIntegrity        = errors.New("integrity violation")
)

// Direction selects which relationships of a memory to fetch.
type Direction int

const (
	DirectionBoth Direction = iota
	DirectionOut
	DirectionIn
)

// MemoryFilter holds the cheap predicates a backend can evaluate
// natively. Text matching, tags, and pagination stay in the facade.
type MemoryFilter struct {
	Types         []string
	MinImportance *float64
	MaxImportance *float64
	MinConfidence *float64
	ProjectPath   string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// RelationshipQuery selects relationships touching a memory.
//
// AsOf applies the temporal visibility rule valid_from <= as_of AND
// (valid_until IS NULL OR valid_until > as_of). When AsOf is nil and
// IncludeInvalidated is false, only current rows are returned. When
// IncludeInvalidated is true every row is returned regardless of AsOf.
type RelationshipQuery struct {
	MemoryID           string
	Direction          Direction
	Types              []string
	AsOf               *time.Time
	IncludeInvalidated bool
}

// Backend is the capability set every storage backend implements.
// Backends are dumb: all graph semantics (validation, cycle detection,
// search matching, pagination) live in the memory facade.
type Backend interface {
	// StoreMemory upserts a memory by id. On replace the backend
	// preserves created_at, refreshes updated_at, and increments the
	// persisted version. New rows keep supplied timestamps and version.
	StoreMemory(ctx context.Context, m *tools.Memory) (*tools.Memory, error)

	// GetMemory returns the memory or nil when absent.
	GetMemory(ctx context.Context, id string) (*tools.Memory, error)

	// DeleteMemory removes a memory and, by cascade, every relationship
	// touching it. Reports whether a row was deleted.
	DeleteMemory(ctx context.Context, id string) (bool, error)

	// ListMemories returns memories passing the filter, ordered by
	// importance DESC, updated_at DESC, id ASC.
	ListMemories(ctx context.Context, f MemoryFilter) ([]tools.Memory, error)

	// AllMemories returns every memory ordered by (created_at, id).
	AllMemories(ctx context.Context) ([]tools.Memory, error)

	CountMemories(ctx context.Context) (int, error)

	CreateRelationship(ctx context.Context, r *tools.Relationship) error

	// GetRelationship returns the relationship or nil when absent.
	GetRelationship(ctx context.Context, id string) (*tools.Relationship, error)

	// UpdateRelationship persists mutated properties and temporal fields.
	UpdateRelationship(ctx context.Context, r *tools.Relationship) error

	GetRelationships(ctx context.Context, q RelationshipQuery) ([]tools.Relationship, error)

	// AllRelationships returns every relationship, including invalidated
	// rows, ordered by (created_at, id).
	AllRelationships(ctx context.Context) ([]tools.Relationship, error)

	// ChangedSince returns relationships recorded at or after since, and
	// relationships invalidated at or after since.
	ChangedSince(ctx context.Context, since time.Time) (created, invalidated []tools.Relationship, err error)

	// Ping verifies the backend answers a trivial query.
	Ping(ctx context.Context) error

	// IsCypherCapable reports whether the backend accepts graph text
	// queries. The embedded and cloud backends do not.
	IsCypherCapable() bool

	Close() error
}

// CypherBackend is the extension implemented by graph-native backends.
// Never exposed to MCP clients; used internally by query-building paths.
type CypherBackend interface {
	Backend
	ExecuteCypher(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}
