// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kraklabs/memorygraph/pkg/extractor"
	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// StoreMemory validates, normalizes, and persists a new memory.
func (c *Client) StoreMemory(ctx context.Context, req tools.StoreMemoryRequest) (*tools.Memory, error) {
	if err := tools.ValidateMemoryInput(&req); err != nil {
		return nil, err
	}
	if c.multiTenant && req.Context.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required in multi-tenant mode", tools.ErrValidation)
	}

	now := c.now().UTC()
	m := &tools.Memory{
		ID:         uuid.NewString(),
		Type:       req.Type,
		Title:      req.Title,
		Content:    req.Content,
		Summary:    req.Summary,
		Tags:       tools.NormalizeTags(req.Tags),
		Importance: req.Importance,
		Confidence: req.Confidence,
		Context:    req.Context,
		CreatedAt:  now,
		UpdatedAt:  now,
		Version:    1,
	}
	if m.Context.Timestamp != nil {
		utc := m.Context.Timestamp.UTC()
		m.Context.Timestamp = &utc
	}

	var stored *tools.Memory
	err := c.retry(ctx, "store memory", func() error {
		var err error
		stored, err = c.backend.StoreMemory(ctx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("memory stored", "id", stored.ID, "type", stored.Type)
	return stored, nil
}

// UpdateMemory applies the non-nil fields of the request to an existing
// memory. The persisted version is bumped even when nothing changed.
func (c *Client) UpdateMemory(ctx context.Context, req tools.UpdateMemoryRequest) (*tools.Memory, error) {
	if err := tools.ValidateUpdateInput(&req); err != nil {
		return nil, err
	}

	existing, err := c.backend.GetMemory(ctx, req.ID)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, req.ID)
	}

	if req.Title != nil {
		existing.Title = *req.Title
	}
	if req.Content != nil {
		existing.Content = *req.Content
	}
	if req.Summary != nil {
		existing.Summary = *req.Summary
	}
	if req.Tags != nil {
		existing.Tags = tools.NormalizeTags(req.Tags)
	}
	if req.Importance != nil {
		existing.Importance = *req.Importance
	}
	if req.Confidence != nil {
		existing.Confidence = *req.Confidence
	}
	if req.Effectiveness != nil {
		existing.Effectiveness = *req.Effectiveness
	}
	if req.Context != nil {
		existing.Context = *req.Context
		if existing.Context.Timestamp != nil {
			utc := existing.Context.Timestamp.UTC()
			existing.Context.Timestamp = &utc
		}
	}

	var updated *tools.Memory
	err = c.retry(ctx, "update memory", func() error {
		var err error
		updated, err = c.backend.StoreMemory(ctx, existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("memory updated", "id", updated.ID, "version", updated.Version)
	return updated, nil
}

// DeleteMemory removes a memory and every relationship touching it.
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", tools.ErrValidation)
	}
	var deleted bool
	err := c.retry(ctx, "delete memory", func() error {
		var err error
		deleted, err = c.backend.DeleteMemory(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: memory %s", tools.ErrNotFound, id)
	}
	c.logger.Info("memory deleted", "id", id)
	return nil
}

// CreateRelationship links two memories after verifying both endpoints
// exist, structuring the free-text context, and rejecting cycles on
// ordering-imposing types.
func (c *Client) CreateRelationship(ctx context.Context, req tools.CreateRelationshipRequest) (*tools.Relationship, error) {
	if err := tools.ValidateRelationshipInput(&req); err != nil {
		return nil, err
	}

	for _, id := range []string{req.FromMemoryID, req.ToMemoryID} {
		m, err := c.backend.GetMemory(ctx, id)
		if err != nil {
			return nil, classifyBackend(err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: memory %s", tools.ErrNotFound, id)
		}
	}

	// The cycle check and the insert below are not one backend
	// transaction. Acyclicity holds because all writes go through this
	// facade and the MCP loop dispatches requests sequentially; a
	// concurrent-writer deployment would need the check moved into a
	// backend transaction.
	if !c.allowCycles && tools.OrderingRelationshipType(req.Type) {
		path, err := c.findCyclePath(ctx, req.FromMemoryID, req.ToMemoryID)
		if err != nil {
			return nil, classifyBackend(err)
		}
		if path != nil {
			return nil, &tools.CycleError{Path: path}
		}
	}

	structured := extractor.Extract(req.Context)
	contextJSON, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	now := c.now().UTC()
	validFrom := now
	if req.ValidFrom != nil {
		validFrom = req.ValidFrom.UTC()
	}
	r := &tools.Relationship{
		ID:           uuid.NewString(),
		FromMemoryID: req.FromMemoryID,
		ToMemoryID:   req.ToMemoryID,
		Type:         req.Type,
		Properties: tools.RelationshipProperties{
			Strength:       req.Strength,
			Confidence:     req.Confidence,
			EvidenceCount:  1,
			LastReinforced: now,
			ContextJSON:    string(contextJSON),
		},
		ValidFrom:  validFrom,
		RecordedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = c.retry(ctx, "create relationship", func() error {
		return c.backend.CreateRelationship(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("relationship created",
		"id", r.ID, "type", r.Type, "from", r.FromMemoryID, "to", r.ToMemoryID)
	return r, nil
}

// findCyclePath runs a reverse DFS from toID over current
// ordering-imposing relationships. If fromID is reachable, the proposed
// edge fromID->toID would close a cycle; the returned path starts and
// ends at fromID. Returns nil when no cycle would form.
func (c *Client) findCyclePath(ctx context.Context, fromID, toID string) ([]string, error) {
	visited := map[string]bool{toID: true}
	parent := map[string]string{}
	stack := []string{toID}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rels, err := c.backend.GetRelationships(ctx, storage.RelationshipQuery{
			MemoryID:  id,
			Direction: storage.DirectionOut,
		})
		if err != nil {
			return nil, err
		}
		for i := range rels {
			if !tools.OrderingRelationshipType(rels[i].Type) {
				continue
			}
			next := rels[i].ToMemoryID
			if next == fromID {
				// Reconstruct toID -> ... -> id, then close the loop.
				chain := []string{id}
				for chain[len(chain)-1] != toID {
					chain = append(chain, parent[chain[len(chain)-1]])
				}
				path := []string{fromID}
				for j := len(chain) - 1; j >= 0; j-- {
					path = append(path, chain[j])
				}
				path = append(path, fromID)
				return path, nil
			}
			if !visited[next] {
				visited[next] = true
				parent[next] = id
				stack = append(stack, next)
			}
		}
	}
	return nil, nil
}

// ReinforceRelationship boosts the strength of a current relationship
// and bumps its evidence count. Invalidated relationships are rejected.
func (c *Client) ReinforceRelationship(ctx context.Context, id string, strengthBoost float64) (*tools.Relationship, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: relationship_id is required", tools.ErrValidation)
	}
	if strengthBoost < 0 || strengthBoost > 1 {
		return nil, fmt.Errorf("%w: strength_boost must be between 0.0 and 1.0", tools.ErrValidation)
	}

	r, err := c.backend.GetRelationship(ctx, id)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: relationship %s", tools.ErrNotFound, id)
	}
	if !r.Current() {
		return nil, fmt.Errorf("%w: relationship %s is invalidated and cannot be reinforced", tools.ErrRelationship, id)
	}

	r.Properties.Strength += strengthBoost
	if r.Properties.Strength > 1 {
		r.Properties.Strength = 1
	}
	r.Properties.EvidenceCount++
	r.Properties.LastReinforced = c.now().UTC()
	r.UpdatedAt = r.Properties.LastReinforced

	err = c.retry(ctx, "reinforce relationship", func() error {
		return c.backend.UpdateRelationship(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// InvalidateRelationship closes a relationship's validity window.
// Idempotent: invalidating an already-invalidated relationship returns
// the existing row untouched.
func (c *Client) InvalidateRelationship(ctx context.Context, id, invalidatedBy string) (*tools.Relationship, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: relationship_id is required", tools.ErrValidation)
	}

	r, err := c.backend.GetRelationship(ctx, id)
	if err != nil {
		return nil, classifyBackend(err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: relationship %s", tools.ErrNotFound, id)
	}
	if !r.Current() {
		return r, nil
	}

	now := c.now().UTC()
	r.ValidUntil = &now
	r.InvalidatedBy = invalidatedBy
	r.UpdatedAt = now

	err = c.retry(ctx, "invalidate relationship", func() error {
		return c.backend.UpdateRelationship(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("relationship invalidated", "id", id, "invalidated_by", invalidatedBy)
	return r, nil
}
