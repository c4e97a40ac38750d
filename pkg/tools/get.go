// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"strings"
)

// GetMemory handles the get_memory tool.
func GetMemory(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}
	includeRels := GetBoolArg(args, "include_relationships", true)

	m, rels, err := client.GetMemory(ctx, id, includeRels)
	if err != nil {
		return Classify(nil, "get memory", err)
	}

	var sb strings.Builder
	sb.WriteString(formatMemoryDetail(m))
	if includeRels {
		sb.WriteString(fmt.Sprintf("\n### Relationships (%d)\n", len(rels)))
		for i := range rels {
			sb.WriteString(formatRelationshipLine(&rels[i]))
			sb.WriteString("\n")
		}
	}
	return NewResult(sb.String())
}

// GetRecentActivity handles the get_recent_activity tool. With the
// optional entity argument it returns that entity's timeline instead.
func GetRecentActivity(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	if entity := GetStringArg(args, "entity", ""); entity != "" {
		timeline, err := client.TrackEntityTimeline(ctx, entity)
		if err != nil {
			return Classify(nil, "track entity timeline", err)
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("## Timeline for %q (%d memories)\n\n", entity, len(timeline)))
		for i := range timeline {
			sb.WriteString(fmt.Sprintf("- %s %s\n", FormatTime(timeline[i].CreatedAt), Truncate(timeline[i].Title, 80)))
		}
		return NewResult(sb.String())
	}

	limit := GetIntArg(args, "limit", 10)
	memories, err := client.GetRecentActivity(ctx, limit)
	if err != nil {
		return Classify(nil, "get recent activity", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Recent activity (%d memories)\n\n", len(memories)))
	for i := range memories {
		sb.WriteString(formatMemoryLine(&memories[i]))
		sb.WriteString("\n")
	}
	return NewResult(sb.String())
}
