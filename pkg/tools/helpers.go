// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"fmt"
	"strings"
	"time"
)

// GetStringArg extracts a string argument from the args map, returning defaultVal if missing.
func GetStringArg(args map[string]any, key, defaultVal string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

// GetFloat64Arg extracts a float64 argument from the args map, returning defaultVal if missing.
func GetFloat64Arg(args map[string]any, key string, defaultVal float64) float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	default:
		return defaultVal
	}
}

// GetFloat64PtrArg extracts an optional float64 argument, returning nil if absent.
func GetFloat64PtrArg(args map[string]any, key string) *float64 {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case float64:
		return &val
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	default:
		return nil
	}
}

// GetIntArg extracts an int argument from the args map, returning defaultVal if missing.
func GetIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	default:
		return defaultVal
	}
}

// GetBoolArg extracts a bool argument from the args map, returning defaultVal if missing.
func GetBoolArg(args map[string]any, key string, defaultVal bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

// GetStringSliceArg extracts a string slice argument from the args map.
func GetStringSliceArg(args map[string]any, key string, defaultVal []string) []string {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch val := v.(type) {
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		if len(result) == 0 {
			return defaultVal
		}
		return result
	case []string:
		if len(val) == 0 {
			return defaultVal
		}
		return val
	default:
		return defaultVal
	}
}

// GetTimeArg extracts an ISO-8601 timestamp argument. The parsed value is
// normalized to UTC. Returns nil if the argument is absent or malformed.
func GetTimeArg(args map[string]any, key string) *time.Time {
	s := GetStringArg(args, key, "")
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

// Truncate truncates a string to the specified length.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// FormatTime renders a timestamp as a human-readable UTC string.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// formatMemoryLine renders a one-line summary of a memory for list output.
func formatMemoryLine(m *Memory) string {
	line := fmt.Sprintf("- `%s` [%s] %s (importance %.2f)", m.ID, m.Type, Truncate(m.Title, 80), m.Importance)
	if len(m.Tags) > 0 {
		line += " · " + strings.Join(m.Tags, ", ")
	}
	return line
}

// formatMemoryDetail renders the full details of a memory.
func formatMemoryDetail(m *Memory) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Memory [%s]\n\n", m.ID))
	sb.WriteString(fmt.Sprintf("**Type:** %s\n", m.Type))
	sb.WriteString(fmt.Sprintf("**Title:** %s\n", m.Title))
	sb.WriteString(fmt.Sprintf("**Content:** %s\n", m.Content))
	if m.Summary != "" {
		sb.WriteString(fmt.Sprintf("**Summary:** %s\n", m.Summary))
	}
	if len(m.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("**Tags:** %s\n", strings.Join(m.Tags, ", ")))
	}
	sb.WriteString(fmt.Sprintf("**Importance:** %.2f | **Confidence:** %.2f | **Effectiveness:** %.2f\n",
		m.Importance, m.Confidence, m.Effectiveness))
	sb.WriteString(fmt.Sprintf("**Usage count:** %d | **Version:** %d\n", m.UsageCount, m.Version))
	if m.Context.ProjectPath != "" {
		sb.WriteString(fmt.Sprintf("**Project:** %s\n", m.Context.ProjectPath))
	}
	sb.WriteString(fmt.Sprintf("**Created:** %s | **Updated:** %s\n", FormatTime(m.CreatedAt), FormatTime(m.UpdatedAt)))
	return sb.String()
}

// formatRelationshipLine renders a one-line summary of a relationship.
func formatRelationshipLine(r *Relationship) string {
	state := "current"
	if r.ValidUntil != nil {
		state = fmt.Sprintf("invalidated %s", FormatTime(*r.ValidUntil))
	}
	return fmt.Sprintf("- `%s` %s -[%s strength=%.2f]-> %s (valid from %s, %s)",
		r.ID, r.FromMemoryID, r.Type, r.Properties.Strength, r.ToMemoryID,
		FormatTime(r.ValidFrom), state)
}
