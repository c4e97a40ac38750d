// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

// graphEdge is one current relationship viewed from a node.
type graphEdge struct {
	neighbor string
	rel      tools.Relationship
}

// materializeGraph loads the current graph into an adjacency map keyed
// by memory id. Edges appear on both endpoints; analytics treat the
// graph as undirected.
func (c *Client) materializeGraph(ctx context.Context) (map[string][]graphEdge, []tools.Memory, error) {
	memories, err := c.backend.AllMemories(ctx)
	if err != nil {
		return nil, nil, classifyBackend(err)
	}
	rels, err := c.backend.AllRelationships(ctx)
	if err != nil {
		return nil, nil, classifyBackend(err)
	}

	adj := make(map[string][]graphEdge, len(memories))
	for i := range memories {
		adj[memories[i].ID] = nil
	}
	for i := range rels {
		if !rels[i].Current() {
			continue
		}
		from, to := rels[i].FromMemoryID, rels[i].ToMemoryID
		adj[from] = append(adj[from], graphEdge{neighbor: to, rel: rels[i]})
		adj[to] = append(adj[to], graphEdge{neighbor: from, rel: rels[i]})
	}
	return adj, memories, nil
}

// FindPath returns the shortest path between two memories over current
// relationships, at most maxDepth hops. Among equally short paths the
// one with the highest accumulated strength wins. Returns an empty
// slice when no path exists.
func (c *Client) FindPath(ctx context.Context, fromID, toID string, maxDepth int) ([]tools.PathStep, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("%w: from_memory_id and to_memory_id are required", tools.ErrValidation)
	}
	if maxDepth <= 0 {
		maxDepth = 6
	}

	adj, memories, err := c.materializeGraph(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*tools.Memory, len(memories))
	for i := range memories {
		byID[memories[i].ID] = &memories[i]
	}
	if byID[fromID] == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, fromID)
	}
	if byID[toID] == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, toID)
	}
	if fromID == toID {
		return []tools.PathStep{{Memory: *byID[fromID]}}, nil
	}

	type arrival struct {
		prev     string
		rel      tools.Relationship
		strength float64
	}
	best := map[string]arrival{fromID: {strength: 0}}
	frontier := []string{fromID}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, classifyBackend(err)
		}
		next := map[string]arrival{}
		for _, id := range frontier {
			acc := best[id].strength
			for _, e := range adj[id] {
				if _, settled := best[e.neighbor]; settled {
					continue
				}
				cand := arrival{prev: id, rel: e.rel, strength: acc + e.rel.Properties.Strength}
				cur, seen := next[e.neighbor]
				if !seen || cand.strength > cur.strength {
					next[e.neighbor] = cand
				}
			}
		}
		frontier = frontier[:0]
		for id, a := range next {
			best[id] = a
			frontier = append(frontier, id)
		}
		sort.Strings(frontier)
		if _, found := best[toID]; found {
			break
		}
	}

	if _, found := best[toID]; !found {
		return []tools.PathStep{}, nil
	}

	// Walk back from the destination.
	var reversed []tools.PathStep
	for id := toID; id != fromID; id = best[id].prev {
		rel := best[id].rel
		reversed = append(reversed, tools.PathStep{Memory: *byID[id], Relationship: &rel})
	}
	path := []tools.PathStep{{Memory: *byID[fromID]}}
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}

// AnalyzeClusters returns the weakly connected components of the graph
// restricted to edges with strength >= threshold, sorted by size
// descending.
func (c *Client) AnalyzeClusters(ctx context.Context, threshold float64) ([]tools.Cluster, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be between 0.0 and 1.0", tools.ErrValidation)
	}

	adj, memories, err := c.materializeGraph(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*tools.Memory, len(memories))
	for i := range memories {
		byID[memories[i].ID] = &memories[i]
	}

	visited := make(map[string]bool, len(memories))
	var clusters []tools.Cluster
	for i := range memories {
		start := memories[i].ID
		if visited[start] {
			continue
		}
		visited[start] = true
		component := []string{start}
		var strengthSum float64
		edgeCount := 0

		stack := []string{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range adj[id] {
				if e.rel.Properties.Strength < threshold {
					continue
				}
				// Each undirected edge appears twice in adj.
				strengthSum += e.rel.Properties.Strength
				edgeCount++
				if visited[e.neighbor] {
					continue
				}
				visited[e.neighbor] = true
				component = append(component, e.neighbor)
				stack = append(stack, e.neighbor)
			}
		}

		sort.Strings(component)
		cluster := tools.Cluster{Size: len(component)}
		for _, id := range component {
			cluster.Memories = append(cluster.Memories, *byID[id])
		}
		if edgeCount > 0 {
			cluster.AvgStrength = strengthSum / float64(edgeCount)
		}
		clusters = append(clusters, cluster)
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].Memories[0].ID < clusters[j].Memories[0].ID
	})
	return clusters, nil
}

// FindBridges locates bridge edges (edges whose removal disconnects a
// component) and reports their endpoint memories scored by an
// approximation of betweenness: the fraction of node pairs whose only
// connection crosses the bridge.
func (c *Client) FindBridges(ctx context.Context) ([]tools.Bridge, error) {
	adj, memories, err := c.materializeGraph(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*tools.Memory, len(memories))
	for i := range memories {
		byID[memories[i].ID] = &memories[i]
	}
	n := len(memories)
	if n < 2 {
		return []tools.Bridge{}, nil
	}
	totalPairs := float64(n) * float64(n-1) / 2

	disc := make(map[string]int, n)
	low := make(map[string]int, n)
	subtree := make(map[string]int, n)
	scores := make(map[string]float64)
	timer := 0

	// Iterative Tarjan; recursion would overflow on long chains.
	type frame struct {
		id, parentEdge string
		edgeIdx        int
	}
	componentOf := make(map[string]int, n)
	componentSize := make(map[int]int)
	componentID := 0

	for i := range memories {
		root := memories[i].ID
		if _, seen := disc[root]; seen {
			continue
		}
		componentID++
		stack := []frame{{id: root}}
		disc[root] = timer
		low[root] = timer
		subtree[root] = 1
		componentOf[root] = componentID
		componentSize[componentID]++
		timer++

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := adj[top.id]
			if top.edgeIdx < len(edges) {
				e := edges[top.edgeIdx]
				top.edgeIdx++
				if e.rel.ID == top.parentEdge {
					continue
				}
				if d, seen := disc[e.neighbor]; seen {
					if d < low[top.id] {
						low[top.id] = d
					}
					continue
				}
				disc[e.neighbor] = timer
				low[e.neighbor] = timer
				subtree[e.neighbor] = 1
				componentOf[e.neighbor] = componentID
				componentSize[componentID]++
				timer++
				stack = append(stack, frame{id: e.neighbor, parentEdge: e.rel.ID})
				continue
			}

			done := *top
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			parent := &stack[len(stack)-1]
			if low[done.id] < low[parent.id] {
				low[parent.id] = low[done.id]
			}
			subtree[parent.id] += subtree[done.id]
			if low[done.id] > disc[parent.id] {
				// Bridge between parent.id and done.id.
				compSize := componentSize[componentOf[done.id]]
				childSide := float64(subtree[done.id])
				otherSide := float64(compSize) - childSide
				weight := childSide * otherSide / totalPairs
				scores[parent.id] += weight
				scores[done.id] += weight
			}
		}
	}

	bridges := make([]tools.Bridge, 0, len(scores))
	for id, score := range scores {
		bridges = append(bridges, tools.Bridge{Memory: *byID[id], Betweenness: score})
	}
	sort.SliceStable(bridges, func(i, j int) bool {
		if bridges[i].Betweenness != bridges[j].Betweenness {
			return bridges[i].Betweenness > bridges[j].Betweenness
		}
		return bridges[i].Memory.ID < bridges[j].Memory.ID
	})
	return bridges, nil
}

// AnalyzeGraphMetrics summarizes the shape of the current graph.
func (c *Client) AnalyzeGraphMetrics(ctx context.Context) (*tools.GraphMetrics, error) {
	adj, memories, err := c.materializeGraph(ctx)
	if err != nil {
		return nil, err
	}

	metrics := &tools.GraphMetrics{
		MemoryCount:         len(memories),
		MemoriesByType:      make(map[string]int),
		RelationshipsByType: make(map[string]int),
	}
	for i := range memories {
		metrics.MemoriesByType[memories[i].Type]++
	}

	seenEdges := make(map[string]bool)
	for _, edges := range adj {
		for _, e := range edges {
			if seenEdges[e.rel.ID] {
				continue
			}
			seenEdges[e.rel.ID] = true
			metrics.RelationshipCount++
			metrics.RelationshipsByType[e.rel.Type]++
		}
	}

	n := len(memories)
	if n > 0 {
		metrics.AvgRelationships = float64(metrics.RelationshipCount) / float64(n)
	}
	if n > 1 {
		metrics.Density = float64(metrics.RelationshipCount) / (float64(n) * float64(n-1))
	}

	// Component count over the undirected view, isolated nodes included.
	visited := make(map[string]bool, n)
	for i := range memories {
		start := memories[i].ID
		if visited[start] {
			continue
		}
		metrics.ComponentCount++
		visited[start] = true
		stack := []string{start}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, e := range adj[id] {
				if !visited[e.neighbor] {
					visited[e.neighbor] = true
					stack = append(stack, e.neighbor)
				}
			}
		}
	}
	return metrics, nil
}

// typePairSuggestions maps (from type, to type) pairs to a recommended
// relationship type.
var typePairSuggestions = map[[2]string]tools.TypeSuggestion{
	{"solution", "problem"}: {Type: "SOLVES", Confidence: 0.9, Reason: "a solution memory pointing at a problem memory"},
	{"fix", "error"}:        {Type: "SOLVES", Confidence: 0.9, Reason: "a fix memory pointing at an error memory"},
	{"fix", "problem"}:      {Type: "ADDRESSES", Confidence: 0.8, Reason: "a fix memory pointing at a problem memory"},
	{"error", "problem"}:    {Type: "TRIGGERS", Confidence: 0.7, Reason: "an error memory pointing at a problem memory"},
	{"problem", "error"}:    {Type: "CAUSES", Confidence: 0.7, Reason: "a problem memory pointing at an error memory"},
	{"task", "project"}:     {Type: "PART_OF", Confidence: 0.8, Reason: "a task memory pointing at a project memory"},
	{"task", "workflow"}:    {Type: "PART_OF", Confidence: 0.7, Reason: "a task memory pointing at a workflow memory"},
	{"command", "workflow"}: {Type: "USED_IN", Confidence: 0.7, Reason: "a command memory pointing at a workflow memory"},
	{"code_pattern", "technology"}: {Type: "APPLIES_TO", Confidence: 0.7,
		Reason: "a code pattern memory pointing at a technology memory"},
	{"code_pattern", "project"}: {Type: "USED_IN", Confidence: 0.7,
		Reason: "a code pattern memory pointing at a project memory"},
	{"solution", "technology"}: {Type: "APPLIES_TO", Confidence: 0.6,
		Reason: "a solution memory pointing at a technology memory"},
}

// SuggestRelationshipType recommends relationship types for a proposed
// edge, ranked by confidence. Heuristics look at the memory type pair
// and tag overlap; suggestions are advisory only.
func (c *Client) SuggestRelationshipType(ctx context.Context, fromID, toID string) ([]tools.TypeSuggestion, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("%w: from_memory_id and to_memory_id are required", tools.ErrValidation)
	}
	from, err := c.backend.GetMemory(ctx, fromID)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if from == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, fromID)
	}
	to, err := c.backend.GetMemory(ctx, toID)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if to == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, toID)
	}

	var suggestions []tools.TypeSuggestion
	if s, ok := typePairSuggestions[[2]string{from.Type, to.Type}]; ok {
		suggestions = append(suggestions, s)
	}
	if from.Type == to.Type {
		suggestions = append(suggestions, tools.TypeSuggestion{
			Type: "SIMILAR_TO", Confidence: 0.6,
			Reason: fmt.Sprintf("both memories are of type %s", from.Type),
		})
	}
	if overlap := tagOverlap(from.Tags, to.Tags); overlap > 0 {
		confidence := 0.3 + 0.4*overlap
		suggestions = append(suggestions, tools.TypeSuggestion{
			Type: "RELATED_TO", Confidence: confidence,
			Reason: fmt.Sprintf("tags overlap with Jaccard similarity %.2f", overlap),
		})
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, tools.TypeSuggestion{
			Type: "RELATED_TO", Confidence: 0.3,
			Reason: "no stronger signal found",
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}
	return suggestions, nil
}

func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	for _, t := range b {
		if set[t] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
