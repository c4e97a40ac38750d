// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import "time"

// ToolResult represents the result of a tool execution.
type ToolResult struct {
	Text    string
	IsError bool
}

// NewResult creates a successful tool result.
func NewResult(text string) *ToolResult {
	return &ToolResult{Text: text}
}

// NewError creates an error tool result.
func NewError(text string) *ToolResult {
	return &ToolResult{Text: text, IsError: true}
}

// --- Memory types ---

// ValidMemoryTypes enumerates the allowed memory types.
var ValidMemoryTypes = map[string]bool{
	"task": true, "code_pattern": true, "problem": true, "solution": true,
	"project": true, "technology": true, "error": true, "fix": true,
	"command": true, "file_context": true, "workflow": true,
	"general": true, "conversation": true,
}

// MemoryContext captures the development context a memory was recorded in.
type MemoryContext struct {
	ProjectPath        string            `json:"project_path,omitempty"`
	FilesInvolved      []string          `json:"files_involved,omitempty"`
	Languages          []string          `json:"languages,omitempty"`
	Frameworks         []string          `json:"frameworks,omitempty"`
	Technologies       []string          `json:"technologies,omitempty"`
	GitCommit          string            `json:"git_commit,omitempty"`
	GitBranch          string            `json:"git_branch,omitempty"`
	WorkingDirectory   string            `json:"working_directory,omitempty"`
	Timestamp          *time.Time        `json:"timestamp,omitempty"`
	SessionID          string            `json:"session_id,omitempty"`
	UserID             string            `json:"user_id,omitempty"`
	AdditionalMetadata map[string]string `json:"additional_metadata,omitempty"`

	// Multi-tenant fields. Accepted everywhere, enforced only when
	// multi-tenant mode is on.
	TenantID   string `json:"tenant_id,omitempty"`
	TeamID     string `json:"team_id,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
}

// Memory is an atomic, typed knowledge unit stored by the system.
type Memory struct {
	ID            string        `json:"id"`
	Type          string        `json:"type"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Summary       string        `json:"summary,omitempty"`
	Tags          []string      `json:"tags"`
	Importance    float64       `json:"importance"`
	Confidence    float64       `json:"confidence"`
	Effectiveness float64       `json:"effectiveness"`
	UsageCount    int           `json:"usage_count"`
	Context       MemoryContext `json:"context"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Version       int           `json:"version"`
}

// --- Relationship types ---

// RelationshipCategories maps each of the 35 relationship types to its
// semantic category.
var RelationshipCategories = map[string]string{
	// Causal
	"CAUSES": "causal", "LEADS_TO": "causal", "TRIGGERS": "causal",
	"PREVENTS": "causal", "BLOCKS": "causal",
	// Solution
	"SOLVES": "solution", "ADDRESSES": "solution", "MITIGATES": "solution",
	"WORKAROUND_FOR": "solution", "PARTIALLY_SOLVES": "solution",
	// Context
	"OCCURRED_IN": "context", "APPLIES_TO": "context", "USED_IN": "context",
	"PART_OF": "context", "BELONGS_TO": "context",
	// Learning
	"LEARNED_FROM": "learning", "DERIVED_FROM": "learning",
	"GENERALIZES": "learning", "SPECIALIZES": "learning",
	"EVOLVED_INTO": "learning",
	// Similarity
	"SIMILAR_TO": "similarity", "RELATED_TO": "similarity",
	"VARIANT_OF": "similarity", "ANALOGY_TO": "similarity",
	"PARALLEL_TO": "similarity", "OPPOSITE_OF": "similarity",
	// Workflow
	"DEPENDS_ON": "workflow", "REQUIRES": "workflow", "FOLLOWS": "workflow",
	"PRECEDES": "workflow", "ENABLES": "workflow", "WORKS_WITH": "workflow",
	// Quality
	"DEPRECATED_BY": "quality", "SUPERSEDES": "quality",
	"CONTRADICTS": "quality",
}

// SymmetricRelationshipTypes are the types whose semantics imply no
// ordering. Cycle detection skips edges of these types.
var SymmetricRelationshipTypes = map[string]bool{
	"SIMILAR_TO": true, "RELATED_TO": true, "VARIANT_OF": true,
	"ANALOGY_TO": true, "PARALLEL_TO": true, "OPPOSITE_OF": true,
	"WORKS_WITH": true,
}

// ValidRelationshipType reports whether t is one of the 35 known types.
func ValidRelationshipType(t string) bool {
	_, ok := RelationshipCategories[t]
	return ok
}

// OrderingRelationshipType reports whether edges of type t participate in
// cycle detection.
func OrderingRelationshipType(t string) bool {
	return ValidRelationshipType(t) && !SymmetricRelationshipTypes[t]
}

// RelationshipProperties holds the mutable payload of a relationship.
type RelationshipProperties struct {
	Strength       float64   `json:"strength"`
	Confidence     float64   `json:"confidence"`
	EvidenceCount  int       `json:"evidence_count"`
	LastReinforced time.Time `json:"last_reinforced"`
	ContextJSON    string    `json:"context_json,omitempty"`
}

// Relationship is a typed, directional, bi-temporally tracked link
// between two memories.
//
// ValidFrom/ValidUntil track validity time (when the fact was true);
// RecordedAt tracks transaction time (when it was learned). A nil
// ValidUntil means the relationship is current.
type Relationship struct {
	ID            string                 `json:"id"`
	FromMemoryID  string                 `json:"from_memory_id"`
	ToMemoryID    string                 `json:"to_memory_id"`
	Type          string                 `json:"type"`
	Properties    RelationshipProperties `json:"properties"`
	ValidFrom     time.Time              `json:"valid_from"`
	ValidUntil    *time.Time             `json:"valid_until,omitempty"`
	RecordedAt    time.Time              `json:"recorded_at"`
	InvalidatedBy string                 `json:"invalidated_by,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// Current reports whether the relationship has not been invalidated.
func (r *Relationship) Current() bool {
	return r.ValidUntil == nil
}

// VisibleAt reports whether the relationship was valid at the given instant.
func (r *Relationship) VisibleAt(t time.Time) bool {
	if r.ValidFrom.After(t) {
		return false
	}
	return r.ValidUntil == nil || r.ValidUntil.After(t)
}

// --- Request types ---

// StoreMemoryRequest contains parameters for storing a memory.
type StoreMemoryRequest struct {
	Type       string        `json:"type"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	Summary    string        `json:"summary"`
	Tags       []string      `json:"tags"`
	Importance float64       `json:"importance"`
	Confidence float64       `json:"confidence"`
	Context    MemoryContext `json:"context"`
}

// UpdateMemoryRequest contains parameters for updating a memory.
// Nil pointers mean "leave the field unchanged".
type UpdateMemoryRequest struct {
	ID            string         `json:"id"`
	Title         *string        `json:"title,omitempty"`
	Content       *string        `json:"content,omitempty"`
	Summary       *string        `json:"summary,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Importance    *float64       `json:"importance,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
	Effectiveness *float64       `json:"effectiveness,omitempty"`
	Context       *MemoryContext `json:"context,omitempty"`
}

// CreateRelationshipRequest contains parameters for creating a relationship.
type CreateRelationshipRequest struct {
	FromMemoryID string     `json:"from_memory_id"`
	ToMemoryID   string     `json:"to_memory_id"`
	Type         string     `json:"relationship_type"`
	Strength     float64    `json:"strength"`
	Confidence   float64    `json:"confidence"`
	Context      string     `json:"context"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
}

// SearchQuery contains parameters for searching memories.
type SearchQuery struct {
	Query         string     `json:"query"`
	MemoryTypes   []string   `json:"memory_types,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	MinImportance *float64   `json:"min_importance,omitempty"`
	MaxImportance *float64   `json:"max_importance,omitempty"`
	MinConfidence *float64   `json:"min_confidence,omitempty"`
	ProjectPath   string     `json:"project_path,omitempty"`
	DateFrom      *time.Time `json:"date_from,omitempty"`
	DateTo        *time.Time `json:"date_to,omitempty"`
	MatchMode     string     `json:"match_mode,omitempty"` // any, all
	Tolerance     string     `json:"tolerance,omitempty"`  // strict, normal, fuzzy
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}

// PaginatedResult is a page of search results.
type PaginatedResult struct {
	Items      []Memory `json:"items"`
	TotalCount int      `json:"total_count"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	HasMore    bool     `json:"has_more"`
	NextOffset *int     `json:"next_offset,omitempty"`
}

// TraversalOptions controls get_related_memories.
type TraversalOptions struct {
	MaxDepth int        `json:"max_depth"`
	Types    []string   `json:"types,omitempty"`
	AsOf     *time.Time `json:"as_of,omitempty"`
}

// RelatedMemory pairs a neighbor with the relationship that connects it.
type RelatedMemory struct {
	Memory       Memory       `json:"memory"`
	Relationship Relationship `json:"relationship"`
	Depth        int          `json:"depth"`
}

// ChangeSet is the result of what_changed: relationships recorded since
// a point in time and relationships invalidated since it.
type ChangeSet struct {
	Since       time.Time      `json:"since"`
	Created     []Relationship `json:"created"`
	Invalidated []Relationship `json:"invalidated"`
}

// --- Analytics types ---

// PathStep is one hop on a path between two memories.
type PathStep struct {
	Memory       Memory        `json:"memory"`
	Relationship *Relationship `json:"relationship,omitempty"` // nil for the first step
}

// Cluster is a weakly connected component of the strength-filtered graph.
type Cluster struct {
	Memories    []Memory `json:"memories"`
	Size        int      `json:"size"`
	AvgStrength float64  `json:"avg_strength"`
}

// Bridge is a memory whose removal would disconnect part of the graph.
type Bridge struct {
	Memory      Memory  `json:"memory"`
	Betweenness float64 `json:"betweenness"`
}

// GraphMetrics summarizes the shape of the memory graph.
type GraphMetrics struct {
	MemoryCount         int            `json:"memory_count"`
	RelationshipCount   int            `json:"relationship_count"`
	MemoriesByType      map[string]int `json:"memories_by_type"`
	RelationshipsByType map[string]int `json:"relationships_by_type"`
	AvgRelationships    float64        `json:"avg_relationships_per_memory"`
	Density             float64        `json:"density"`
	ComponentCount      int            `json:"component_count"`
}

// TypeSuggestion is a ranked relationship-type recommendation.
type TypeSuggestion struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// GraphStats is the status/health summary.
type GraphStats struct {
	MemoryCount          int            `json:"memory_count"`
	RelationshipCount    int            `json:"relationship_count"`
	CurrentRelationships int            `json:"current_relationships"`
	MemoriesByType       map[string]int `json:"memories_by_type"`
	Backend              string         `json:"backend"`
	Healthy              bool           `json:"healthy"`
}

// --- Migration types ---

// MigrationReport is the result of migrate_database.
type MigrationReport struct {
	Source        string `json:"source"`
	Target        string `json:"target"`
	DryRun        bool   `json:"dry_run"`
	Memories      int    `json:"memories"`
	Relationships int    `json:"relationships"`
	Checksum      string `json:"checksum"`
	Verified      bool   `json:"verified"`
}

// ValidationReport is the result of validate_migration.
type ValidationReport struct {
	Source             string `json:"source"`
	Target             string `json:"target"`
	SourceMemories     int    `json:"source_memories"`
	TargetMemories     int    `json:"target_memories"`
	SourceRelations    int    `json:"source_relationships"`
	TargetRelations    int    `json:"target_relationships"`
	SourceChecksum     string `json:"source_checksum"`
	TargetChecksum     string `json:"target_checksum"`
	CountsMatch        bool   `json:"counts_match"`
	ChecksumsMatch     bool   `json:"checksums_match"`
	OrderingPreserved  bool   `json:"ordering_preserved"`
}
