// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package extractor turns free-text relationship context into a
// structured record using a fixed table of lexical patterns. It never
// touches the network or any model; extraction is a total function.
package extractor

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StructuredContext is the structured form of a relationship context
// string. Text always preserves the original input. Scope is nil when no
// scope marker was found.
type StructuredContext struct {
	Text       string   `json:"text"`
	Scope      *string  `json:"scope"`
	Components []string `json:"components"`
	Conditions []string `json:"conditions"`
	Evidence   []string `json:"evidence"`
	Temporal   *string  `json:"temporal"`
	Exceptions []string `json:"exceptions"`
}

// Scope markers, checked in order; the first hit wins.
var scopePatterns = []struct {
	scope string
	re    *regexp.Regexp
}{
	{"partial", regexp.MustCompile(`(?i)\bpartial(?:ly)?\b`)},
	{"full", regexp.MustCompile(`(?i)\b(?:fully|completely|entirely)\b`)},
	{"conditional", regexp.MustCompile(`(?i)\b(?:if|unless|provided that|conditional(?:ly)?)\b`)},
	{"limited", regexp.MustCompile(`(?i)\blimited\b`)},
}

var (
	componentPattern = regexp.MustCompile(`(?i)\b(?:implements|affects|covers|modifies|touches|replaces|extends)\s+(?:the\s+)?([a-zA-Z0-9_/.-]+(?:\s+[a-zA-Z0-9_/.-]+)?)`)
	conditionPattern = regexp.MustCompile(`(?i)\bonly\s+(?:works\s+|applies\s+|valid\s+)?(?:in|when|with|on|for|under)\s+([a-zA-Z0-9_/.-]+(?:\s+[a-zA-Z0-9_/.-]+)?)`)
	whenPattern      = regexp.MustCompile(`(?i)\bwhen\s+(?:running\s+|using\s+)?([a-zA-Z0-9_/.-]+(?:\s+[a-zA-Z0-9_/.-]+)?)\s+is\b`)
	evidencePattern  = regexp.MustCompile(`(?i)\b(?:verified|confirmed|validated|tested|proven|measured)\s+(?:by|with|via|through|in)\s+([a-zA-Z0-9_/. -]+?)(?:[,.;]|$)`)
	temporalPattern  = regexp.MustCompile(`(?i)\b(?:since|as of|until|before|after|starting)\s+(v?\d[\w.-]*|\d{4}-\d{2}-\d{2})`)
	versionPattern   = regexp.MustCompile(`\bv\d+(?:\.\d+)*\b`)
	exceptionPattern = regexp.MustCompile(`(?i)\bexcept\s+(?:for\s+|when\s+|in\s+|on\s+)?([a-zA-Z0-9_/. -]+?)(?:[,.;]|$)`)
)

// Extract parses free text into a StructuredContext. It never fails:
// empty input yields a zero record, and input that already is a
// serialized StructuredContext is returned as parsed.
func Extract(text string) *StructuredContext {
	sc := &StructuredContext{
		Text:       text,
		Components: []string{},
		Conditions: []string{},
		Evidence:   []string{},
		Exceptions: []string{},
	}
	if strings.TrimSpace(text) == "" {
		sc.Text = text
		return sc
	}

	// Idempotence: already-structured input passes through unchanged.
	if parsed := parseStructured(text); parsed != nil {
		return parsed
	}

	for _, sp := range scopePatterns {
		if sp.re.MatchString(text) {
			scope := sp.scope
			sc.Scope = &scope
			break
		}
	}

	sc.Components = captureAll(componentPattern, text)
	sc.Conditions = captureAll(conditionPattern, text)
	for _, c := range captureAll(whenPattern, text) {
		sc.Conditions = appendUnique(sc.Conditions, c)
	}
	sc.Evidence = captureAll(evidencePattern, text)
	sc.Exceptions = captureAll(exceptionPattern, text)

	if m := temporalPattern.FindStringSubmatch(text); m != nil {
		temporal := m[1]
		sc.Temporal = &temporal
	} else if m := versionPattern.FindString(text); m != "" {
		sc.Temporal = &m
	}

	return sc
}

// parseStructured returns the decoded record when text is already a
// JSON-serialized StructuredContext, nil otherwise.
func parseStructured(text string) *StructuredContext {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil
	}
	if _, ok := probe["text"]; !ok {
		return nil
	}
	var sc StructuredContext
	if err := json.Unmarshal([]byte(trimmed), &sc); err != nil {
		return nil
	}
	if sc.Components == nil {
		sc.Components = []string{}
	}
	if sc.Conditions == nil {
		sc.Conditions = []string{}
	}
	if sc.Evidence == nil {
		sc.Evidence = []string{}
	}
	if sc.Exceptions == nil {
		sc.Exceptions = []string{}
	}
	return &sc
}

func captureAll(re *regexp.Regexp, text string) []string {
	var result []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		capture := strings.TrimSpace(m[1])
		if capture != "" {
			result = appendUnique(result, capture)
		}
	}
	if result == nil {
		return []string{}
	}
	return result
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
