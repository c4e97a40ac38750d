// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// GetMemory fetches a memory by id, optionally with its current
// relationships.
func (c *Client) GetMemory(ctx context.Context, id string, includeRelationships bool) (*tools.Memory, []tools.Relationship, error) {
	if id == "" {
		return nil, nil, fmt.Errorf("%w: id is required", tools.ErrValidation)
	}
	m, err := c.backend.GetMemory(ctx, id)
	if err != nil {
		return nil, nil, classifyBackend(err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, id)
	}
	if !includeRelationships {
		return m, nil, nil
	}
	rels, err := c.backend.GetRelationships(ctx, storage.RelationshipQuery{MemoryID: id})
	if err != nil {
		return nil, nil, classifyBackend(err)
	}
	return m, rels, nil
}

// SearchMemories runs a filtered, paginated search. Cheap predicates are
// pushed down to the backend when every filter must hold; any-mode
// fetches the full set and evaluates filters here, since a row matching
// one filter may fail all the others.
func (c *Client) SearchMemories(ctx context.Context, q tools.SearchQuery) (*tools.PaginatedResult, error) {
	if err := tools.ValidateSearchInput(&q); err != nil {
		return nil, err
	}

	var filter storage.MemoryFilter
	if q.MatchMode == "all" {
		filter = storage.MemoryFilter{
			Types:         q.MemoryTypes,
			MinImportance: q.MinImportance,
			MaxImportance: q.MaxImportance,
			MinConfidence: q.MinConfidence,
			ProjectPath:   q.ProjectPath,
			DateFrom:      q.DateFrom,
			DateTo:        q.DateTo,
		}
	}

	var candidates []tools.Memory
	err := c.retry(ctx, "search memories", func() error {
		var err error
		candidates, err = c.backend.ListMemories(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}

	matched := make([]tools.Memory, 0, len(candidates))
	for i := range candidates {
		if c.matches(&candidates[i], &q) {
			matched = append(matched, candidates[i])
		}
	}

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	items := matched[start:end]

	result := &tools.PaginatedResult{
		Items:      items,
		TotalCount: total,
		Limit:      q.Limit,
		Offset:     q.Offset,
		HasMore:    q.Offset+len(items) < total,
	}
	if result.HasMore {
		next := q.Offset + q.Limit
		result.NextOffset = &next
	}
	return result, nil
}

// matches evaluates the non-pushed-down filters. In all-mode only the
// query text and tags remain to check; in any-mode a memory matches when
// at least one of the specified filters holds.
func (c *Client) matches(m *tools.Memory, q *tools.SearchQuery) bool {
	if q.MatchMode == "all" {
		if q.Query != "" && !matchesQuery(m, q.Query, q.Tolerance) {
			return false
		}
		if len(q.Tags) > 0 && !hasAllTags(m, q.Tags) {
			return false
		}
		return true
	}

	specified := false
	if q.Query != "" {
		specified = true
		if matchesQuery(m, q.Query, q.Tolerance) {
			return true
		}
	}
	if len(q.Tags) > 0 {
		specified = true
		if hasAllTags(m, q.Tags) {
			return true
		}
	}
	if len(q.MemoryTypes) > 0 {
		specified = true
		for _, t := range q.MemoryTypes {
			if m.Type == t {
				return true
			}
		}
	}
	if q.MinImportance != nil {
		specified = true
		if m.Importance >= *q.MinImportance {
			return true
		}
	}
	if q.MaxImportance != nil {
		specified = true
		if m.Importance <= *q.MaxImportance {
			return true
		}
	}
	if q.MinConfidence != nil {
		specified = true
		if m.Confidence >= *q.MinConfidence {
			return true
		}
	}
	if q.ProjectPath != "" {
		specified = true
		if m.Context.ProjectPath == q.ProjectPath {
			return true
		}
	}
	if q.DateFrom != nil {
		specified = true
		if !m.CreatedAt.Before(*q.DateFrom) {
			return true
		}
	}
	if q.DateTo != nil {
		specified = true
		if !m.CreatedAt.After(*q.DateTo) {
			return true
		}
	}
	return !specified
}

// matchesQuery applies the tolerance-controlled text match over title,
// content, and summary.
func matchesQuery(m *tools.Memory, query, tolerance string) bool {
	target := strings.ToLower(m.Title + "\n" + m.Content + "\n" + m.Summary)
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}

	switch tolerance {
	case "strict":
		return strings.Contains(target, q)
	case "fuzzy":
		for _, token := range strings.Fields(q) {
			if fuzzyContains(target, token) {
				return true
			}
		}
		return false
	default: // normal
		for _, token := range strings.Fields(q) {
			if strings.Contains(target, token) {
				return true
			}
		}
		return false
	}
}

// fuzzyContains reports whether any word of target is within one edit of
// token, or contains it outright.
func fuzzyContains(target, token string) bool {
	if strings.Contains(target, token) {
		return true
	}
	for _, word := range strings.FieldsFunc(target, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '.' || r == ',' || r == ';' || r == ':'
	}) {
		if withinOneEdit(word, token) {
			return true
		}
	}
	return false
}

// withinOneEdit reports whether a and b differ by at most one insertion,
// deletion, or substitution. Compared rune-wise so a multi-byte typo
// still counts as a single edit.
func withinOneEdit(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la > lb {
		ra, rb, la, lb = rb, ra, lb, la
	}
	if lb-la > 1 {
		return false
	}
	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if ra[i] == rb[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if la == lb {
			i++
		}
		j++
	}
	return edits+(lb-j)+(la-i) <= 1
}

// hasAllTags reports whether the memory carries every query tag. Both
// sides are already lowercased by normalization.
func hasAllTags(m *tools.Memory, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range m.Tags {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// GetRecentActivity returns the most recently updated memories.
func (c *Client) GetRecentActivity(ctx context.Context, limit int) ([]tools.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > tools.MaxSearchLimit {
		limit = tools.MaxSearchLimit
	}
	memories, err := c.backend.AllMemories(ctx)
	if err != nil {
		return nil, classifyBackend(err)
	}
	sort.SliceStable(memories, func(i, j int) bool {
		if !memories[i].UpdatedAt.Equal(memories[j].UpdatedAt) {
			return memories[i].UpdatedAt.After(memories[j].UpdatedAt)
		}
		return memories[i].ID < memories[j].ID
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// TrackEntityTimeline returns all memories whose context mentions the
// entity, in chronological order.
func (c *Client) TrackEntityTimeline(ctx context.Context, entity string) ([]tools.Memory, error) {
	if strings.TrimSpace(entity) == "" {
		return nil, fmt.Errorf("%w: entity is required", tools.ErrValidation)
	}
	needle := strings.ToLower(entity)

	memories, err := c.backend.AllMemories(ctx)
	if err != nil {
		return nil, classifyBackend(err)
	}

	timeline := make([]tools.Memory, 0)
	for i := range memories {
		if contextMentions(&memories[i], needle) {
			timeline = append(timeline, memories[i])
		}
	}
	// AllMemories is already ordered by (created_at, id).
	return timeline, nil
}

func contextMentions(m *tools.Memory, needle string) bool {
	cx := &m.Context
	fields := []string{cx.ProjectPath, cx.GitBranch, cx.WorkingDirectory}
	fields = append(fields, cx.FilesInvolved...)
	fields = append(fields, cx.Languages...)
	fields = append(fields, cx.Frameworks...)
	fields = append(fields, cx.Technologies...)
	fields = append(fields, m.Tags...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	for _, v := range cx.AdditionalMetadata {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// GetRelatedMemories runs a BFS from id over relationships visible under
// the temporal rule, up to MaxDepth hops. Both edge directions are
// followed; the visited set prevents re-expansion. Results are ordered
// by (depth ASC, strength DESC, memory id ASC).
func (c *Client) GetRelatedMemories(ctx context.Context, id string, opts tools.TraversalOptions) ([]tools.RelatedMemory, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: memory_id is required", tools.ErrValidation)
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 1
	}
	for _, t := range opts.Types {
		if !tools.ValidRelationshipType(t) {
			return nil, fmt.Errorf("%w: unknown relationship type %q", tools.ErrValidation, t)
		}
	}

	root, err := c.backend.GetMemory(ctx, id)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, id)
	}

	type frontierItem struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	frontier := []frontierItem{{id: id, depth: 0}}
	var results []tools.RelatedMemory

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, classifyBackend(err)
		}
		item := frontier[0]
		frontier = frontier[1:]
		if item.depth >= maxDepth {
			continue
		}

		rels, err := c.backend.GetRelationships(ctx, storage.RelationshipQuery{
			MemoryID: item.id,
			Types:    opts.Types,
			AsOf:     opts.AsOf,
		})
		if err != nil {
			return nil, classifyBackend(err)
		}
		for i := range rels {
			neighborID := rels[i].ToMemoryID
			if neighborID == item.id {
				neighborID = rels[i].FromMemoryID
			}
			if visited[neighborID] {
				continue
			}
			visited[neighborID] = true
			neighbor, err := c.backend.GetMemory(ctx, neighborID)
			if err != nil {
				return nil, classifyBackend(err)
			}
			if neighbor == nil {
				continue
			}
			results = append(results, tools.RelatedMemory{
				Memory:       *neighbor,
				Relationship: rels[i],
				Depth:        item.depth + 1,
			})
			frontier = append(frontier, frontierItem{id: neighborID, depth: item.depth + 1})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Depth != results[j].Depth {
			return results[i].Depth < results[j].Depth
		}
		si, sj := results[i].Relationship.Properties.Strength, results[j].Relationship.Properties.Strength
		if si != sj {
			return si > sj
		}
		return results[i].Memory.ID < results[j].Memory.ID
	})
	return results, nil
}

// QueryAsOf returns the neighbors of a memory as the graph stood at the
// given instant.
func (c *Client) QueryAsOf(ctx context.Context, memoryID string, asOf time.Time) ([]tools.RelatedMemory, error) {
	utc := asOf.UTC()
	return c.GetRelatedMemories(ctx, memoryID, tools.TraversalOptions{
		MaxDepth: 1,
		AsOf:     &utc,
	})
}

// GetRelationshipHistory returns every relationship row touching the
// memory, invalidated rows included, ordered by valid_from.
func (c *Client) GetRelationshipHistory(ctx context.Context, memoryID string) ([]tools.Relationship, error) {
	if memoryID == "" {
		return nil, fmt.Errorf("%w: memory_id is required", tools.ErrValidation)
	}
	m, err := c.backend.GetMemory(ctx, memoryID)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, memoryID)
	}
	rels, err := c.backend.GetRelationships(ctx, storage.RelationshipQuery{
		MemoryID:           memoryID,
		IncludeInvalidated: true,
	})
	if err != nil {
		return nil, classifyBackend(err)
	}
	return rels, nil
}

// WhatChanged returns relationships recorded since the given instant and
// relationships invalidated since it.
func (c *Client) WhatChanged(ctx context.Context, since time.Time) (*tools.ChangeSet, error) {
	utc := since.UTC()
	created, invalidated, err := c.backend.ChangedSince(ctx, utc)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if created == nil {
		created = []tools.Relationship{}
	}
	if invalidated == nil {
		invalidated = []tools.Relationship{}
	}
	return &tools.ChangeSet{Since: utc, Created: created, Invalidated: invalidated}, nil
}

// SearchRelationshipsByContext matches query tokens against the
// structured context of current relationships.
func (c *Client) SearchRelationshipsByContext(ctx context.Context, query string, limit int) ([]tools.Relationship, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", tools.ErrValidation)
	}
	if len(query) > tools.MaxQueryLength {
		return nil, fmt.Errorf("%w: query exceeds %d character limit", tools.ErrValidation, tools.MaxQueryLength)
	}
	if limit <= 0 {
		limit = 20
	}

	rels, err := c.backend.AllRelationships(ctx)
	if err != nil {
		return nil, classifyBackend(err)
	}

	tokens := strings.Fields(strings.ToLower(query))
	matched := make([]tools.Relationship, 0)
	for i := range rels {
		if !rels[i].Current() {
			continue
		}
		haystack := strings.ToLower(rels[i].Properties.ContextJSON)
		for _, token := range tokens {
			if strings.Contains(haystack, token) {
				matched = append(matched, rels[i])
				break
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].Properties.Strength, matched[j].Properties.Strength
		if si != sj {
			return si > sj
		}
		return matched[i].ID < matched[j].ID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
