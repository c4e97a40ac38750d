// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package memory implements the graph semantics over a storage backend:
// validation, search, cycle detection, bi-temporal queries, traversal,
// and analytics. Backends stay dumb; every invariant is enforced here.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// Config carries everything the facade needs. Built once at startup and
// never re-read.
type Config struct {
	Backend     storage.Backend
	BackendName string
	Logger      *slog.Logger

	// AllowCycles disables cycle detection on ordering-imposing
	// relationship types.
	AllowCycles bool

	// MultiTenant turns on enforcement of tenant context fields. When
	// off the fields are accepted and stored but not checked.
	MultiTenant bool

	// HealthTimeout bounds the health probe. Defaults to 5s.
	HealthTimeout time.Duration
}

// Client is the memory database facade. It implements tools.Querier.
type Client struct {
	backend       storage.Backend
	backendName   string
	logger        *slog.Logger
	allowCycles   bool
	multiTenant   bool
	healthTimeout time.Duration

	now func() time.Time
}

var _ tools.Querier = (*Client)(nil)

// NewClient builds a facade over the given backend.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("memory client requires a backend")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.BackendName
	if name == "" {
		name = "sqlite"
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout == 0 {
		healthTimeout = 5 * time.Second
	}
	return &Client{
		backend:       cfg.Backend,
		backendName:   name,
		logger:        logger,
		allowCycles:   cfg.AllowCycles,
		multiTenant:   cfg.MultiTenant,
		healthTimeout: healthTimeout,
		now:           time.Now,
	}, nil
}

// retry runs fn and, on a transient backend failure, retries once after
// a short pause. The returned error is classified into the facade error
// kinds.
func (c *Client) retry(ctx context.Context, operation string, fn func() error) error {
	err := fn()
	if err != nil && transient(err) {
		c.logger.Warn("transient backend error, retrying",
			"operation", operation, "error", err)
		select {
		case <-ctx.Done():
			return classifyBackend(ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
		err = fn()
	}
	return classifyBackend(err)
}

func transient(err error) bool {
	return errors.Is(err, storage.ErrDatabaseLocked) ||
		errors.Is(err, storage.ErrConnectionFailed)
}

// classifyBackend maps storage-level errors into the facade error kinds.
func classifyBackend(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", tools.ErrBackendTimeout, err)
	case errors.Is(err, tools.ErrBackendTimeout):
		return err
	case transient(err):
		return fmt.Errorf("%w: %v", tools.ErrBackendUnavailable, err)
	default:
		return err
	}
}

// Ping probes the backend.
func (c *Client) Ping(ctx context.Context) error {
	return c.retry(ctx, "ping", func() error {
		return c.backend.Ping(ctx)
	})
}

// GetStats summarizes the graph and the backend's health. The health
// probe counts as healthy when the node count completes within the
// configured timeout.
func (c *Client) GetStats(ctx context.Context) (*tools.GraphStats, error) {
	memories, err := c.backend.AllMemories(ctx)
	if err != nil {
		return nil, classifyBackend(err)
	}
	rels, err := c.backend.AllRelationships(ctx)
	if err != nil {
		return nil, classifyBackend(err)
	}

	byType := make(map[string]int)
	for i := range memories {
		byType[memories[i].Type]++
	}
	current := 0
	for i := range rels {
		if rels[i].Current() {
			current++
		}
	}

	healthy := true
	probeCtx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	if _, err := c.backend.CountMemories(probeCtx); err != nil {
		c.logger.Warn("health probe failed", "backend", c.backendName, "error", err)
		healthy = false
	}

	return &tools.GraphStats{
		MemoryCount:          len(memories),
		RelationshipCount:    len(rels),
		CurrentRelationships: current,
		MemoriesByType:       byType,
		Backend:              c.backendName,
		Healthy:              healthy,
	}, nil
}
