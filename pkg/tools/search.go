// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"strings"
)

func searchQueryFromArgs(args map[string]any) SearchQuery {
	return SearchQuery{
		Query:         GetStringArg(args, "query", ""),
		MemoryTypes:   GetStringSliceArg(args, "memory_types", nil),
		Tags:          GetStringSliceArg(args, "tags", nil),
		MinImportance: GetFloat64PtrArg(args, "min_importance"),
		MaxImportance: GetFloat64PtrArg(args, "max_importance"),
		MinConfidence: GetFloat64PtrArg(args, "min_confidence"),
		ProjectPath:   GetStringArg(args, "project_path", ""),
		DateFrom:      GetTimeArg(args, "date_from"),
		DateTo:        GetTimeArg(args, "date_to"),
		MatchMode:     GetStringArg(args, "match_mode", ""),
		Tolerance:     GetStringArg(args, "tolerance", ""),
		Limit:         GetIntArg(args, "limit", 0),
		Offset:        GetIntArg(args, "offset", 0),
	}
}

func formatSearchResult(page *PaginatedResult) *ToolResult {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d matching memories", page.TotalCount))
	if page.TotalCount > 0 {
		first := page.Offset + 1
		last := page.Offset + len(page.Items)
		sb.WriteString(fmt.Sprintf(" (showing %d-%d)", first, last))
	}
	sb.WriteString(".\n\n")
	for i := range page.Items {
		sb.WriteString(formatMemoryLine(&page.Items[i]))
		sb.WriteString("\n")
	}
	if page.HasMore && page.NextOffset != nil {
		sb.WriteString(fmt.Sprintf("\nMore results available: retry with offset=%d.\n", *page.NextOffset))
	}
	return NewResult(sb.String())
}

// SearchMemories handles the search_memories tool.
func SearchMemories(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	q := searchQueryFromArgs(args)
	page, err := client.SearchMemories(ctx, q)
	if err != nil {
		return Classify(nil, "search memories", err)
	}
	return formatSearchResult(page)
}

// RecallMemories handles the recall_memories tool, a search with normal
// tolerance for quick free-text lookups.
func RecallMemories(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	query := GetStringArg(args, "query", "")
	if query == "" {
		return NewError("Missing required parameter: query")
	}
	q := searchQueryFromArgs(args)
	q.Tolerance = "normal"
	page, err := client.SearchMemories(ctx, q)
	if err != nil {
		return Classify(nil, "recall memories", err)
	}
	return formatSearchResult(page)
}
