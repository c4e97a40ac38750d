// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// parseContextArg decodes the optional context object argument.
func parseContextArg(args map[string]any) MemoryContext {
	v, ok := args["context"]
	if !ok || v == nil {
		return MemoryContext{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return MemoryContext{}
	}
	var cx MemoryContext
	if err := json.Unmarshal(raw, &cx); err != nil {
		return MemoryContext{}
	}
	return cx
}

// optStringArg returns a pointer to the string argument when the key is
// present, nil otherwise. Used for partial updates.
func optStringArg(args map[string]any, key string) *string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// StoreMemory handles the store_memory tool.
func StoreMemory(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	memType := GetStringArg(args, "type", "")
	if memType == "" {
		return NewError("Missing required parameter: type")
	}
	title := GetStringArg(args, "title", "")
	if title == "" {
		return NewError("Missing required parameter: title")
	}
	content := GetStringArg(args, "content", "")
	if content == "" {
		return NewError("Missing required parameter: content")
	}

	req := StoreMemoryRequest{
		Type:       memType,
		Title:      title,
		Content:    content,
		Summary:    GetStringArg(args, "summary", ""),
		Tags:       GetStringSliceArg(args, "tags", nil),
		Importance: GetFloat64Arg(args, "importance", 0.5),
		Confidence: GetFloat64Arg(args, "confidence", 0.5),
		Context:    parseContextArg(args),
	}

	m, err := client.StoreMemory(ctx, req)
	if err != nil {
		return Classify(nil, "store memory", err)
	}
	return NewResult(fmt.Sprintf("Memory stored with id `%s`.\n\n%s", m.ID, formatMemoryDetail(m)))
}

// UpdateMemory handles the update_memory tool. Absent parameters leave
// the corresponding fields unchanged.
func UpdateMemory(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}

	req := UpdateMemoryRequest{
		ID:            id,
		Title:         optStringArg(args, "title"),
		Content:       optStringArg(args, "content"),
		Summary:       optStringArg(args, "summary"),
		Tags:          GetStringSliceArg(args, "tags", nil),
		Importance:    GetFloat64PtrArg(args, "importance"),
		Confidence:    GetFloat64PtrArg(args, "confidence"),
		Effectiveness: GetFloat64PtrArg(args, "effectiveness"),
	}
	if _, ok := args["context"]; ok {
		cx := parseContextArg(args)
		req.Context = &cx
	}

	m, err := client.UpdateMemory(ctx, req)
	if err != nil {
		return Classify(nil, "update memory", err)
	}
	return NewResult(fmt.Sprintf("Memory `%s` updated to version %d.\n\n%s", m.ID, m.Version, formatMemoryDetail(m)))
}

// DeleteMemory handles the delete_memory tool.
func DeleteMemory(ctx context.Context, client Querier, args map[string]any) *ToolResult {
	id := GetStringArg(args, "memory_id", "")
	if id == "" {
		return NewError("Missing required parameter: memory_id")
	}
	if err := client.DeleteMemory(ctx, id); err != nil {
		return Classify(nil, "delete memory", err)
	}
	return NewResult(fmt.Sprintf("Memory `%s` and all its relationships deleted.", id))
}
