// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// FindMemoryPath handles the find_memory_path tool.
func FindMemoryPath(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	fromID := GetStringArg(args, "from_memory_id", "")
	if fromID == "" {
		return NewError("Missing required parameter: from_memory_id")
	}
	toID := GetStringArg(args, "to_memory_id", "")
	if toID == "" {
		return NewError("Missing required parameter: to_memory_id")
	}
	maxDepth := GetIntArg(args, "max_depth", 6)

	path, err := client.FindPath(ctx, fromID, toID, maxDepth)
	if err != nil {
		return Classify(nil, "find memory path", err)
	}
	if len(path) == 0 {
		return NewResult(fmt.Sprintf("No path between `%s` and `%s` within %d hops.", fromID, toID, maxDepth))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Path with %d hops:\n\n", len(path)-1))
	for i := range path {
		step := &path[i]
		if step.Relationship != nil {
			sb.WriteString(fmt.Sprintf("  -[%s strength=%.2f]->\n",
				step.Relationship.Type, step.Relationship.Properties.Strength))
		}
		sb.WriteString(fmt.Sprintf("`%s` [%s] %s\n", step.Memory.ID, step.Memory.Type, Truncate(step.Memory.Title, 80)))
	}
	return NewResult(sb.String())
}

// AnalyzeMemoryClusters handles the analyze_memory_clusters tool.
func AnalyzeMemoryClusters(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	threshold := GetFloat64Arg(args, "threshold", 0.5)

	clusters, err := client.AnalyzeClusters(ctx, threshold)
	if err != nil {
		return Classify(nil, "analyze memory clusters", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d clusters at strength threshold %.2f.\n\n", len(clusters), threshold))
	for i, cluster := range clusters {
		sb.WriteString(fmt.Sprintf("### Cluster %d: %d memories, avg strength %.2f\n",
			i+1, cluster.Size, cluster.AvgStrength))
		for j := range cluster.Memories {
			sb.WriteString(formatMemoryLine(&cluster.Memories[j]))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return NewResult(sb.String())
}

// FindBridgeMemories handles the find_bridge_memories tool.
func FindBridgeMemories(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	bridges, err := client.FindBridges(ctx)
	if err != nil {
		return Classify(nil, "find bridge memories", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d bridge memories.\n\n", len(bridges)))
	for i := range bridges {
		sb.WriteString(fmt.Sprintf("- betweenness %.3f: `%s` [%s] %s\n",
			bridges[i].Betweenness, bridges[i].Memory.ID, bridges[i].Memory.Type,
			Truncate(bridges[i].Memory.Title, 80)))
	}
	return NewResult(sb.String())
}

// AnalyzeGraphMetrics handles the analyze_graph_metrics tool.
func AnalyzeGraphMetrics(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	metrics, err := client.AnalyzeGraphMetrics(ctx)
	if err != nil {
		return Classify(nil, "analyze graph metrics", err)
	}

	var sb strings.Builder
	sb.WriteString("## Graph metrics\n\n")
	sb.WriteString(fmt.Sprintf("Memories: %d | Relationships: %d | Components: %d\n",
		metrics.MemoryCount, metrics.RelationshipCount, metrics.ComponentCount))
	sb.WriteString(fmt.Sprintf("Avg relationships per memory: %.2f | Density: %.4f\n\n",
		metrics.AvgRelationships, metrics.Density))

	sb.WriteString("### Memories by type\n")
	for _, line := range sortedCounts(metrics.MemoriesByType) {
		sb.WriteString(line)
	}
	sb.WriteString("\n### Relationships by type\n")
	for _, line := range sortedCounts(metrics.RelationshipsByType) {
		sb.WriteString(line)
	}
	return NewResult(sb.String())
}

func sortedCounts(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %d\n", k, counts[k]))
	}
	return lines
}
