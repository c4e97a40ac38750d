// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/kraklabs/memorygraph/pkg/memory"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

const (
	mcpVersion    = "0.1.0"
	mcpServerName = "memorygraph"
)

// serverInstructions is the MCP instructions text sent to agents on
// initialize.
const serverInstructions = `MemoryGraph gives you persistent, graph-structured memory across coding sessions. Store solutions, problems, errors, decisions, and other development artifacts, and link them with typed relationships.

## When to store

After solving a problem, fixing a bug, or making a design decision, store it with store_memory and link it to what it solves or affects with create_relationship. Relationships make memories findable later: a solution linked to its problem is far more useful than either alone.

## When to query

Before re-deriving a fix or a decision, call recall_memories or search_memories. Use get_related_memories to walk outward from a hit, and find_memory_path to see how two memories connect.

## Keeping the graph honest

When a fact stops being true, do not delete it: create the replacement and the old relationships are preserved for history. Use query_as_of and what_changed to see the graph as it was at any point in time. Reinforce relationships that keep proving useful with reinforce_relationship.`

// JSON-RPC 2.0 types for the MCP protocol.

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type mcpServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type mcpCapabilities struct {
	Tools map[string]any `json:"tools,omitempty"`
}

type mcpInitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	Capabilities    mcpCapabilities `json:"capabilities"`
	ServerInfo      mcpServerInfo   `json:"serverInfo"`
	Instructions    string          `json:"instructions,omitempty"`
}

type mcpTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpToolsListResult struct {
	Tools []mcpTool `json:"tools"`
}

type mcpToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type mcpToolResult struct {
	Content []mcpContent `json:"content"`
	IsError bool         `json:"isError,omitempty"`
}

type mcpContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mcpServer maintains state for the running MCP server instance.
type mcpServer struct {
	client   tools.Querier
	migrator tools.Migrator
	logger   *slog.Logger
}

// toolHandler is the signature for MCP tool handlers.
type toolHandler func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult

// toolHandlers maps tool names to their handler functions. The map is
// built once and never mutated after startup.
var toolHandlers = map[string]toolHandler{
	"store_memory": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.StoreMemory(ctx, s.client, args)
	},
	"get_memory": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.GetMemory(ctx, s.client, args)
	},
	"update_memory": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.UpdateMemory(ctx, s.client, args)
	},
	"delete_memory": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.DeleteMemory(ctx, s.client, args)
	},
	"search_memories": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.SearchMemories(ctx, s.client, args)
	},
	"recall_memories": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.RecallMemories(ctx, s.client, args)
	},
	"get_recent_activity": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.GetRecentActivity(ctx, s.client, args)
	},
	"create_relationship": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.CreateRelationship(ctx, s.client, args)
	},
	"get_related_memories": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.GetRelatedMemories(ctx, s.client, args)
	},
	"search_relationships_by_context": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.SearchRelationshipsByContext(ctx, s.client, args)
	},
	"reinforce_relationship": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.ReinforceRelationship(ctx, s.client, args)
	},
	"suggest_relationship_type": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.SuggestRelationshipType(ctx, s.client, args)
	},
	"query_as_of": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.QueryAsOf(ctx, s.client, args)
	},
	"get_relationship_history": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.GetRelationshipHistory(ctx, s.client, args)
	},
	"what_changed": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.WhatChanged(ctx, s.client, args)
	},
	"find_memory_path": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.FindMemoryPath(ctx, s.client, args)
	},
	"analyze_memory_clusters": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.AnalyzeMemoryClusters(ctx, s.client, args)
	},
	"find_bridge_memories": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.FindBridgeMemories(ctx, s.client, args)
	},
	"analyze_graph_metrics": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.AnalyzeGraphMetrics(ctx, s.client, args)
	},
	"migrate_database": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.MigrateDatabase(ctx, s.migrator, args)
	},
	"validate_migration": func(ctx context.Context, s *mcpServer, args map[string]any) *tools.ToolResult {
		return tools.ValidateMigration(ctx, s.migrator, args)
	},
}

// runMCPServer starts the memorygraph MCP server on stdin/stdout.
func runMCPServer(configPath string) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		fmt.Fprintf(os.Stderr, "Using default configuration with environment variable overrides\n")
		cfg = DefaultConfig()
		cfg.applyEnvOverrides()
	}

	logger := newLogger(cfg)

	backend, backendName, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open %s backend: %v\n", cfg.Backend, err)
		os.Exit(ExitInit)
	}
	defer func() { _ = backend.Close() }()

	client, err := memory.NewClient(memory.Config{
		Backend:       backend,
		BackendName:   backendName,
		Logger:        logger,
		AllowCycles:   cfg.AllowCycles,
		MultiTenant:   cfg.MultiTenant,
		HealthTimeout: time.Duration(cfg.Health.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot initialize memorygraph: %v\n", err)
		os.Exit(ExitInit)
	}

	server := &mcpServer{
		client:   client,
		migrator: newBackendMigrator(cfg, logger),
		logger:   logger,
	}

	fmt.Fprintf(os.Stderr, "MemoryGraph MCP Server v%s starting...\n", mcpVersion)
	fmt.Fprintf(os.Stderr, "  Backend: %s\n", backendName)

	if err := server.serve(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: stdin read error: %v\n", err)
		os.Exit(ExitBackend)
	}
}

// serve runs the JSON-RPC read loop, reading requests from r and
// writing responses to w. Requests are newline-delimited JSON.
func (s *mcpServer) serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			s.logger.Warn("invalid JSON-RPC request", "error", err)
			continue
		}

		ctx := context.Background()
		resp := s.handleRequest(ctx, req)

		// Notifications produce no response.
		if resp.ID == nil && resp.Result == nil && resp.Error == nil {
			continue
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			s.logger.Error("cannot encode response", "error", err)
			continue
		}

		_, _ = fmt.Fprintf(w, "%s\n", respBytes)
	}

	return scanner.Err()
}

// handleRequest dispatches a JSON-RPC request to the appropriate handler.
func (s *mcpServer) handleRequest(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	switch req.Method {
	case "initialize":
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpInitializeResult{
				ProtocolVersion: "2024-11-05",
				Capabilities: mcpCapabilities{
					Tools: map[string]any{"listChanged": false},
				},
				ServerInfo: mcpServerInfo{
					Name:    mcpServerName,
					Version: mcpVersion,
				},
				Instructions: serverInstructions,
			},
		}

	case "notifications/initialized":
		return jsonRPCResponse{}

	case "tools/list":
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result: mcpToolsListResult{
				Tools: getTools(),
			},
		}

	case "tools/call":
		var params mcpToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return jsonRPCResponse{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error: &rpcError{
					Code:    -32602,
					Message: "Invalid params",
					Data:    err.Error(),
				},
			}
		}

		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  s.handleToolCall(ctx, params),
		}

	default:
		return jsonRPCResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &rpcError{
				Code:    -32601,
				Message: "Method not found",
				Data:    req.Method,
			},
		}
	}
}

// handleToolCall dispatches a tool call to the registered handler and
// logs its outcome.
func (s *mcpServer) handleToolCall(ctx context.Context, params mcpToolCallParams) *mcpToolResult {
	handler, ok := toolHandlers[params.Name]
	if !ok {
		return &mcpToolResult{
			Content: []mcpContent{{Type: "text", Text: fmt.Sprintf("Unknown tool: %s", params.Name)}},
			IsError: true,
		}
	}

	start := time.Now()
	result := handler(ctx, s, params.Arguments)
	outcome := "ok"
	if result.IsError {
		outcome = "error"
	}
	s.logger.Info("tool call",
		"tool", params.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"outcome", outcome,
	)

	return &mcpToolResult{
		Content: []mcpContent{{Type: "text", Text: result.Text}},
		IsError: result.IsError,
	}
}
