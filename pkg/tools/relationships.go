// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"strings"
)

// CreateRelationship handles the create_relationship tool.
func CreateRelationship(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	fromID := GetStringArg(args, "from_memory_id", "")
	if fromID == "" {
		return NewError("Missing required parameter: from_memory_id")
	}
	toID := GetStringArg(args, "to_memory_id", "")
	if toID == "" {
		return NewError("Missing required parameter: to_memory_id")
	}
	relType := GetStringArg(args, "relationship_type", "")
	if relType == "" {
		return NewError("Missing required parameter: relationship_type")
	}

	req := CreateRelationshipRequest{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		Type:         relType,
		Strength:     GetFloat64Arg(args, "strength", 0.5),
		Confidence:   GetFloat64Arg(args, "confidence", 0.5),
		Context:      GetStringArg(args, "context", ""),
		ValidFrom:    GetTimeArg(args, "valid_from"),
	}

	r, err := client.CreateRelationship(ctx, req)
	if err != nil {
		return Classify(nil, "create relationship", err)
	}
	return NewResult(fmt.Sprintf("Relationship created with id `%s`.\n\n%s", r.ID, formatRelationshipLine(r)))
}

// GetRelatedMemories handles the get_related_memories tool.
func GetRelatedMemories(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}
	opts := TraversalOptions{
		MaxDepth: GetIntArg(args, "max_depth", 1),
		Types:    GetStringSliceArg(args, "relationship_types", nil),
		AsOf:     GetTimeArg(args, "as_of"),
	}

	related, err := client.GetRelatedMemories(ctx, id, opts)
	if err != nil {
		return Classify(nil, "get related memories", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d related memories.\n\n", len(related)))
	for i := range related {
		rm := &related[i]
		sb.WriteString(fmt.Sprintf("- depth %d via %s (strength %.2f): `%s` [%s] %s\n",
			rm.Depth, rm.Relationship.Type, rm.Relationship.Properties.Strength,
			rm.Memory.ID, rm.Memory.Type, Truncate(rm.Memory.Title, 80)))
	}
	return NewResult(sb.String())
}

// SearchRelationshipsByContext handles the
// search_relationships_by_context tool.
func SearchRelationshipsByContext(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	query := GetStringArg(args, "query", "")
	if query == "" {
		return NewError("Missing required parameter: query")
	}
	limit := GetIntArg(args, "limit", 20)

	rels, err := client.SearchRelationshipsByContext(ctx, query, limit)
	if err != nil {
		return Classify(nil, "search relationships by context", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d relationships with matching context.\n\n", len(rels)))
	for i := range rels {
		sb.WriteString(formatRelationshipLine(&rels[i]))
		sb.WriteString("\n")
	}
	return NewResult(sb.String())
}

// ReinforceRelationship handles the reinforce_relationship tool.
func ReinforceRelationship(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "relationship_id", "")
	if id == "" {
		return NewError("Missing required parameter: relationship_id")
	}
	boost := GetFloat64Arg(args, "strength_boost", 0.1)

	r, err := client.ReinforceRelationship(ctx, id, boost)
	if err != nil {
		return Classify(nil, "reinforce relationship", err)
	}
	return NewResult(fmt.Sprintf("Relationship `%s` reinforced: strength %.2f, evidence count %d.",
		r.ID, r.Properties.Strength, r.Properties.EvidenceCount))
}

// SuggestRelationshipType handles the suggest_relationship_type tool.
func SuggestRelationshipType(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	fromID := GetStringArg(args, "from_memory_id", "")
	if fromID == "" {
		return NewError("Missing required parameter: from_memory_id")
	}
	toID := GetStringArg(args, "to_memory_id", "")
	if toID == "" {
		return NewError("Missing required parameter: to_memory_id")
	}

	suggestions, err := client.SuggestRelationshipType(ctx, fromID, toID)
	if err != nil {
		return Classify(nil, "suggest relationship type", err)
	}

	var sb strings.Builder
	sb.WriteString("Suggested relationship types:\n\n")
	for _, s := range suggestions {
		sb.WriteString(fmt.Sprintf("- %s (confidence %.2f): %s\n", s.Type, s.Confidence, s.Reason))
	}
	return NewResult(sb.String())
}
