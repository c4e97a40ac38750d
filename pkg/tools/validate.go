// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"fmt"
	"strings"
)

// Bounds for memory and search inputs. Mirrored in the MCP tool schemas.
const (
	MaxTitleLength   = 500
	MaxContentLength = 50000
	MaxSummaryLength = 1000
	MaxTagLength     = 100
	MaxTagCount      = 50
	MaxQueryLength   = 1000
	MaxRelContext    = 10000
	MaxSearchLimit   = 1000
	DefaultLimit     = 50
)

// NormalizeTags lowercases and deduplicates a tag list, preserving first
// occurrence order. Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		result = append(result, t)
	}
	return result
}

// ValidateMemoryInput checks the static constraints of a store request.
func ValidateMemoryInput(req *StoreMemoryRequest) error {
	if !ValidMemoryTypes[req.Type] {
		return fmt.Errorf("%w: unknown memory type %q", ErrValidation, req.Type)
	}
	if req.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(req.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d character limit", ErrValidation, MaxTitleLength)
	}
	if req.Content == "" {
		return fmt.Errorf("%w: content is required", ErrValidation)
	}
	if len(req.Content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d character limit", ErrValidation, MaxContentLength)
	}
	if len(req.Summary) > MaxSummaryLength {
		return fmt.Errorf("%w: summary exceeds %d character limit", ErrValidation, MaxSummaryLength)
	}
	if len(req.Tags) > MaxTagCount {
		return fmt.Errorf("%w: at most %d tags allowed", ErrValidation, MaxTagCount)
	}
	for _, tag := range req.Tags {
		if len(tag) > MaxTagLength {
			return fmt.Errorf("%w: tag %q exceeds %d character limit", ErrValidation, Truncate(tag, 20), MaxTagLength)
		}
	}
	if req.Importance < 0 || req.Importance > 1 {
		return fmt.Errorf("%w: importance must be between 0.0 and 1.0", ErrValidation)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0.0 and 1.0", ErrValidation)
	}
	return nil
}

// ValidateUpdateInput checks the static constraints of an update request.
func ValidateUpdateInput(req *UpdateMemoryRequest) error {
	if req.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if req.Title != nil {
		if *req.Title == "" {
			return fmt.Errorf("%w: title must not be empty", ErrValidation)
		}
		if len(*req.Title) > MaxTitleLength {
			return fmt.Errorf("%w: title exceeds %d character limit", ErrValidation, MaxTitleLength)
		}
	}
	if req.Content != nil {
		if *req.Content == "" {
			return fmt.Errorf("%w: content must not be empty", ErrValidation)
		}
		if len(*req.Content) > MaxContentLength {
			return fmt.Errorf("%w: content exceeds %d character limit", ErrValidation, MaxContentLength)
		}
	}
	if req.Summary != nil && len(*req.Summary) > MaxSummaryLength {
		return fmt.Errorf("%w: summary exceeds %d character limit", ErrValidation, MaxSummaryLength)
	}
	if len(req.Tags) > MaxTagCount {
		return fmt.Errorf("%w: at most %d tags allowed", ErrValidation, MaxTagCount)
	}
	for _, tag := range req.Tags {
		if len(tag) > MaxTagLength {
			return fmt.Errorf("%w: tag %q exceeds %d character limit", ErrValidation, Truncate(tag, 20), MaxTagLength)
		}
	}
	for name, v := range map[string]*float64{
		"importance": req.Importance, "confidence": req.Confidence, "effectiveness": req.Effectiveness,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: %s must be between 0.0 and 1.0", ErrValidation, name)
		}
	}
	return nil
}

// ValidateSearchInput checks the static constraints of a search query and
// fills in defaults for limit, match_mode, and tolerance.
func ValidateSearchInput(q *SearchQuery) error {
	if len(q.Query) > MaxQueryLength {
		return fmt.Errorf("%w: query exceeds %d character limit", ErrValidation, MaxQueryLength)
	}
	for _, mt := range q.MemoryTypes {
		if !ValidMemoryTypes[mt] {
			return fmt.Errorf("%w: unknown memory type %q", ErrValidation, mt)
		}
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < 1 || q.Limit > MaxSearchLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrValidation, MaxSearchLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrValidation)
	}
	switch q.MatchMode {
	case "":
		q.MatchMode = "all"
	case "any", "all":
	default:
		return fmt.Errorf("%w: match_mode must be any or all", ErrValidation)
	}
	switch q.Tolerance {
	case "":
		q.Tolerance = "normal"
	case "strict", "normal", "fuzzy":
	default:
		return fmt.Errorf("%w: tolerance must be strict, normal, or fuzzy", ErrValidation)
	}
	for name, v := range map[string]*float64{
		"min_importance": q.MinImportance, "max_importance": q.MaxImportance, "min_confidence": q.MinConfidence,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: %s must be between 0.0 and 1.0", ErrValidation, name)
		}
	}
	q.Tags = NormalizeTags(q.Tags)
	return nil
}

// ValidateRelationshipInput checks the static constraints of a
// create_relationship request.
func ValidateRelationshipInput(req *CreateRelationshipRequest) error {
	if req.FromMemoryID == "" {
		return fmt.Errorf("%w: from_memory_id is required", ErrValidation)
	}
	if req.ToMemoryID == "" {
		return fmt.Errorf("%w: to_memory_id is required", ErrValidation)
	}
	if req.FromMemoryID == req.ToMemoryID {
		return fmt.Errorf("%w: self-referential relationships are not allowed", ErrRelationship)
	}
	if !ValidRelationshipType(req.Type) {
		return fmt.Errorf("%w: unknown relationship type %q", ErrValidation, req.Type)
	}
	if req.Strength < 0 || req.Strength > 1 {
		return fmt.Errorf("%w: strength must be between 0.0 and 1.0", ErrValidation)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0.0 and 1.0", ErrValidation)
	}
	if len(req.Context) > MaxRelContext {
		return fmt.Errorf("%w: context exceeds %d character limit", ErrValidation, MaxRelContext)
	}
	return nil
}
