// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"strings"
)

// QueryAsOf handles the query_as_of tool: the neighborhood of a memory
// as the graph stood at a past instant.
func QueryAsOf(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}
	asOf := GetTimeArg(args, "as_of")
	if asOf == nil {
		return NewError("Missing or invalid parameter: as_of (expected ISO-8601 UTC timestamp)")
	}

	related, err := client.QueryAsOf(ctx, id, *asOf)
	if err != nil {
		return Classify(nil, "query as of", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Graph around `%s` as of %s: %d relationships.\n\n",
		id, FormatTime(*asOf), len(related)))
	for i := range related {
		rm := &related[i]
		sb.WriteString(fmt.Sprintf("- via %s: `%s` %s\n",
			rm.Relationship.Type, rm.Memory.ID, Truncate(rm.Memory.Title, 80)))
	}
	return NewResult(sb.String())
}

// GetRelationshipHistory handles the get_relationship_history tool.
func GetRelationshipHistory(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}

	history, err := client.GetRelationshipHistory(ctx, id)
	if err != nil {
		return Classify(nil, "get relationship history", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Relationship history for `%s` (%d rows, oldest first):\n\n", id, len(history)))
	for i := range history {
		sb.WriteString(formatRelationshipLine(&history[i]))
		sb.WriteString("\n")
	}
	return NewResult(sb.String())
}

// WhatChanged handles the what_changed tool.
func WhatChanged(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	since := GetTimeArg(args, "since")
	if since == nil {
		return NewError("Missing or invalid parameter: since (expected ISO-8601 UTC timestamp)")
	}

	changes, err := client.WhatChanged(ctx, *since)
	if err != nil {
		return Classify(nil, "determine what changed", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Changes since %s:\n\n", FormatTime(changes.Since)))
	sb.WriteString(fmt.Sprintf("### Recorded (%d)\n", len(changes.Created)))
	for i := range changes.Created {
		sb.WriteString(formatRelationshipLine(&changes.Created[i]))
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("\n### Invalidated (%d)\n", len(changes.Invalidated)))
	for i := range changes.Invalidated {
		sb.WriteString(formatRelationshipLine(&changes.Invalidated[i]))
		sb.WriteString("\n")
	}
	return NewResult(sb.String())
}
