// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package memory

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// newTestClient builds a facade over a throwaway SQLite file.
func newTestClient(t *testing.T, allowCycles bool) *Client {
	t.Helper()
	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "memory.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	client, err := NewClient(Config{
		Backend:     backend,
		BackendName: "sqlite",
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		AllowCycles: allowCycles,
	})
	require.NoError(t, err)
	return client
}

// mustStore stores a memory and fails the test on error.
func mustStore(t *testing.T, c *Client, memType, title string) *tools.Memory {
	t.Helper()
	m, err := c.StoreMemory(context.Background(), tools.StoreMemoryRequest{
		Type:       memType,
		Title:      title,
		Content:    "content of " + title,
		Importance: 0.5,
		Confidence: 0.8,
	})
	require.NoError(t, err)
	return m
}

// mustLink creates a relationship and fails the test on error.
func mustLink(t *testing.T, c *Client, fromID, toID, relType string) *tools.Relationship {
	t.Helper()
	r, err := c.CreateRelationship(context.Background(), tools.CreateRelationshipRequest{
		FromMemoryID: fromID,
		ToMemoryID:   toID,
		Type:         relType,
		Strength:     0.7,
		Confidence:   0.9,
	})
	require.NoError(t, err)
	return r
}
