// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/kraklabs/memorygraph/pkg/memory"
)

// StatusResult represents the memory graph status for JSON output.
type StatusResult struct {
	Backend              string         `json:"backend"`
	Healthy              bool           `json:"healthy"`
	Memories             int            `json:"memories"`
	MemoriesByType       map[string]int `json:"memories_by_type"`
	Relationships        int            `json:"relationships"`
	CurrentRelationships int            `json:"current_relationships"`
	Timestamp            time.Time      `json:"timestamp"`
	Error                string         `json:"error,omitempty"`
}

// runStatus displays backend health and graph statistics.
func runStatus(configPath string, globals GlobalFlags) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
	}

	logger := newLogger(cfg)
	result := &StatusResult{Timestamp: time.Now().UTC()}

	backend, name, err := openBackend(cfg)
	if err != nil {
		result.Backend = cfg.Backend
		result.Error = err.Error()
		printStatus(result, globals)
		os.Exit(ExitBackend)
	}
	defer func() { _ = backend.Close() }()
	result.Backend = name

	client, err := memory.NewClient(memory.Config{
		Backend:       backend,
		BackendName:   name,
		Logger:        logger,
		AllowCycles:   cfg.AllowCycles,
		MultiTenant:   cfg.MultiTenant,
		HealthTimeout: time.Duration(cfg.Health.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		result.Error = err.Error()
		printStatus(result, globals)
		os.Exit(ExitBackend)
	}

	stats, err := client.GetStats(context.Background())
	if err != nil {
		result.Error = err.Error()
		printStatus(result, globals)
		os.Exit(ExitBackend)
	}

	result.Healthy = stats.Healthy
	result.Memories = stats.MemoryCount
	result.MemoriesByType = stats.MemoriesByType
	result.Relationships = stats.RelationshipCount
	result.CurrentRelationships = stats.CurrentRelationships
	printStatus(result, globals)
	if !result.Healthy {
		os.Exit(ExitBackend)
	}
}

func printStatus(result *StatusResult, globals GlobalFlags) {
	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	fmt.Println("MemoryGraph Status")
	fmt.Println()
	fmt.Printf("  Backend:       %s\n", result.Backend)
	fmt.Printf("  Healthy:       %t\n", result.Healthy)
	if result.Error != "" {
		fmt.Printf("  Error:         %s\n", result.Error)
		return
	}
	fmt.Printf("  Memories:      %d\n", result.Memories)
	fmt.Printf("  Relationships: %d (%d current)\n", result.Relationships, result.CurrentRelationships)

	if len(result.MemoriesByType) > 0 {
		fmt.Println()
		types := make([]string, 0, len(result.MemoriesByType))
		for t := range result.MemoriesByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("    %-14s %d\n", t, result.MemoriesByType[t])
		}
	}
}
