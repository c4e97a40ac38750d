// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"sort"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

// memoryTypeEnum returns the sorted list of valid memory types for the
// JSON schemas.
func memoryTypeEnum() []string {
	types := make([]string, 0, len(tools.ValidMemoryTypes))
	for t := range tools.ValidMemoryTypes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// relationshipTypeEnum returns the sorted list of valid relationship
// types for the JSON schemas.
func relationshipTypeEnum() []string {
	types := make([]string, 0, len(tools.RelationshipCategories))
	for t := range tools.RelationshipCategories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// getTools returns the list of all memorygraph MCP tool definitions.
func getTools() []mcpTool {
	return []mcpTool{
		{
			Name:        "store_memory",
			Description: "Store a new typed memory (solution, problem, error, decision, etc.) in the memory graph. Returns the generated memory id.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type": map[string]any{
						"type":        "string",
						"enum":        memoryTypeEnum(),
						"description": "Type of memory to store",
					},
					"title": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxTitleLength,
						"description": "Short title for the memory",
					},
					"content": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxContentLength,
						"description": "Full content of the memory",
					},
					"summary": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxSummaryLength,
						"description": "Optional one-paragraph summary",
					},
					"tags": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "maxLength": tools.MaxTagLength},
						"maxItems":    tools.MaxTagCount,
						"description": "Tags for search. Normalized to lowercase, deduplicated.",
					},
					"importance": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"default":     0.5,
						"description": "How important this memory is (0.0-1.0)",
					},
					"confidence": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     1,
						"default":     0.5,
						"description": "How confident you are in this memory (0.0-1.0)",
					},
					"context": map[string]any{
						"type":        "object",
						"description": "Development context: project_path, files_involved, languages, git_branch, session_id, etc.",
					},
				},
				"required": []string{"type", "title", "content"},
			},
		},
		{
			Name:        "get_memory",
			Description: "Retrieve a single memory by id, optionally with its relationships.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{
						"type":        "string",
						"description": "Memory id to fetch",
					},
					"include_relationships": map[string]any{
						"type":        "boolean",
						"default":     true,
						"description": "Also list the memory's current relationships",
					},
				},
				"required": []string{"memory_id"},
			},
		},
		{
			Name:        "update_memory",
			Description: "Update fields of an existing memory. Omitted fields are left unchanged. Every update bumps the version.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{
						"type":        "string",
						"description": "Memory id to update",
					},
					"title":   map[string]any{"type": "string", "maxLength": tools.MaxTitleLength},
					"content": map[string]any{"type": "string", "maxLength": tools.MaxContentLength},
					"summary": map[string]any{"type": "string", "maxLength": tools.MaxSummaryLength},
					"tags": map[string]any{
						"type":     "array",
						"items":    map[string]any{"type": "string", "maxLength": tools.MaxTagLength},
						"maxItems": tools.MaxTagCount,
					},
					"importance":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"confidence":    map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"effectiveness": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"context": map[string]any{
						"type":        "object",
						"description": "Replacement development context for the memory",
					},
				},
				"required": []string{"memory_id"},
			},
		},
		{
			Name:        "delete_memory",
			Description: "Delete a memory and all relationships attached to it.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{
						"type":        "string",
						"description": "Memory id to delete",
					},
				},
				"required": []string{"memory_id"},
			},
		},
		{
			Name:        "search_memories",
			Description: "Search memories by text, tags, types, importance, project, and date range, with pagination.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxQueryLength,
						"description": "Free-text query matched against title, content, and summary",
					},
					"tags": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "All listed tags must be present on a match",
					},
					"memory_types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": memoryTypeEnum()},
						"description": "Restrict results to these memory types",
					},
					"min_importance": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"max_importance": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"min_confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
					"project_path": map[string]any{
						"type":        "string",
						"description": "Restrict to memories recorded in this project",
					},
					"date_from": map[string]any{
						"type":        "string",
						"description": "ISO-8601 lower bound on created_at",
					},
					"date_to": map[string]any{
						"type":        "string",
						"description": "ISO-8601 upper bound on created_at",
					},
					"match_mode": map[string]any{
						"type":        "string",
						"enum":        []string{"all", "any"},
						"default":     "all",
						"description": "all: every specified filter must hold; any: at least one must",
					},
					"tolerance": map[string]any{
						"type":        "string",
						"enum":        []string{"strict", "normal", "fuzzy"},
						"default":     "normal",
						"description": "Text matching strictness",
					},
					"limit": map[string]any{
						"type":        "integer",
						"minimum":     1,
						"maximum":     tools.MaxSearchLimit,
						"default":     tools.DefaultLimit,
						"description": "Page size",
					},
					"offset": map[string]any{
						"type":        "integer",
						"minimum":     0,
						"default":     0,
						"description": "Number of matches to skip",
					},
				},
			},
		},
		{
			Name:        "recall_memories",
			Description: "Quick free-text recall. Equivalent to search_memories with normal tolerance.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxQueryLength,
						"description": "What you are trying to remember",
					},
					"limit": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": tools.MaxSearchLimit,
						"default": tools.DefaultLimit,
					},
					"offset": map[string]any{"type": "integer", "minimum": 0, "default": 0},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "get_recent_activity",
			Description: "List the most recently updated memories, or the timeline of memories mentioning an entity.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"limit": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": tools.MaxSearchLimit,
						"default": 10,
					},
					"entity": map[string]any{
						"type":        "string",
						"description": "When set, return the chronological timeline of memories whose context mentions this entity",
					},
				},
			},
		},
		{
			Name:        "create_relationship",
			Description: "Create a typed, directed relationship between two memories. Ordering types are cycle-checked.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from_memory_id": map[string]any{"type": "string"},
					"to_memory_id":   map[string]any{"type": "string"},
					"relationship_type": map[string]any{
						"type": "string",
						"enum": relationshipTypeEnum(),
					},
					"strength":   map[string]any{"type": "number", "minimum": 0, "maximum": 1, "default": 0.5},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1, "default": 0.5},
					"context": map[string]any{
						"type":        "string",
						"maxLength":   tools.MaxRelContext,
						"description": "Free-text context. Scope, conditions, evidence, and temporal markers are extracted automatically.",
					},
					"valid_from": map[string]any{
						"type":        "string",
						"description": "ISO-8601 timestamp the relationship became true. Defaults to now.",
					},
				},
				"required": []string{"from_memory_id", "to_memory_id", "relationship_type"},
			},
		},
		{
			Name:        "get_related_memories",
			Description: "Traverse current relationships outward from a memory, in both directions, up to max_depth hops.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{"type": "string"},
					"max_depth": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": 5,
						"default": 1,
					},
					"relationship_types": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string", "enum": relationshipTypeEnum()},
						"description": "Restrict traversal to these relationship types",
					},
					"as_of": map[string]any{
						"type":        "string",
						"description": "ISO-8601 timestamp; traverse relationships valid at that instant instead of now",
					},
				},
				"required": []string{"memory_id"},
			},
		},
		{
			Name:        "search_relationships_by_context",
			Description: "Find current relationships whose extracted context mentions the query terms.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "maxLength": tools.MaxQueryLength},
					"limit": map[string]any{"type": "integer", "minimum": 1, "maximum": tools.MaxSearchLimit, "default": 20},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        "reinforce_relationship",
			Description: "Strengthen a relationship that proved useful again. Bumps strength and evidence count.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"relationship_id": map[string]any{"type": "string"},
					"strength_boost": map[string]any{
						"type":    "number",
						"minimum": 0,
						"maximum": 1,
						"default": 0.1,
					},
				},
				"required": []string{"relationship_id"},
			},
		},
		{
			Name:        "suggest_relationship_type",
			Description: "Suggest plausible relationship types between two memories based on their types and tags.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from_memory_id": map[string]any{"type": "string"},
					"to_memory_id":   map[string]any{"type": "string"},
				},
				"required": []string{"from_memory_id", "to_memory_id"},
			},
		},
		{
			Name:        "query_as_of",
			Description: "Show a memory's neighborhood as the graph looked at a past instant.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{"type": "string"},
					"as_of": map[string]any{
						"type":        "string",
						"description": "ISO-8601 UTC timestamp to view the graph at",
					},
				},
				"required": []string{"memory_id", "as_of"},
			},
		},
		{
			Name:        "get_relationship_history",
			Description: "List every relationship a memory has ever had, including invalidated ones.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"memory_id": map[string]any{"type": "string"},
				},
				"required": []string{"memory_id"},
			},
		},
		{
			Name:        "what_changed",
			Description: "Summarize memories and relationships added or invalidated since a timestamp.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"since": map[string]any{
						"type":        "string",
						"description": "ISO-8601 UTC timestamp to diff against",
					},
				},
				"required": []string{"since"},
			},
		},
		{
			Name:        "find_memory_path",
			Description: "Find the shortest relationship path between two memories.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"from_memory_id": map[string]any{"type": "string"},
					"to_memory_id":   map[string]any{"type": "string"},
					"max_depth": map[string]any{
						"type":    "integer",
						"minimum": 1,
						"maximum": 10,
						"default": 6,
					},
				},
				"required": []string{"from_memory_id", "to_memory_id"},
			},
		},
		{
			Name:        "analyze_memory_clusters",
			Description: "Group memories into clusters connected by relationships at or above a strength threshold.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"threshold": map[string]any{
						"type":    "number",
						"minimum": 0,
						"maximum": 1,
						"default": 0.5,
					},
				},
			},
		},
		{
			Name:        "find_bridge_memories",
			Description: "Find memories that bridge otherwise disconnected parts of the graph.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "analyze_graph_metrics",
			Description: "Overall graph statistics: counts by type, average degree, density, components.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "migrate_database",
			Description: "Copy all memories and relationships from one backend to another, verifying the result.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_backend": map[string]any{
						"type":        "string",
						"enum":        []string{"sqlite", "cloud"},
						"description": "Backend to read from",
					},
					"target_backend": map[string]any{
						"type":        "string",
						"enum":        []string{"sqlite", "cloud"},
						"description": "Backend to write to",
					},
					"dry_run": map[string]any{
						"type":        "boolean",
						"default":     false,
						"description": "Validate the snapshot without writing anything",
					},
				},
				"required": []string{"source_backend", "target_backend"},
			},
		},
		{
			Name:        "validate_migration",
			Description: "Compare two backends: counts, checksums, and row ordering.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"source_backend": map[string]any{"type": "string", "enum": []string{"sqlite", "cloud"}},
					"target_backend": map[string]any{"type": "string", "enum": []string{"sqlite", "cloud"}},
				},
				"required": []string{"source_backend", "target_backend"},
			},
		},
	}
}
