// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package extractor

import (
	"encoding/json"
	"testing"
)

func TestExtractScenario(t *testing.T) {
	sc := Extract("partially implements auth module, only works in production, verified by E2E tests")

	if sc.Scope == nil || *sc.Scope != "partial" {
		t.Errorf("scope: got %v, want partial", sc.Scope)
	}
	if len(sc.Components) != 1 || sc.Components[0] != "auth module" {
		t.Errorf("components: got %v", sc.Components)
	}
	if len(sc.Conditions) != 1 || sc.Conditions[0] != "production" {
		t.Errorf("conditions: got %v", sc.Conditions)
	}
	if len(sc.Evidence) != 1 || sc.Evidence[0] != "E2E tests" {
		t.Errorf("evidence: got %v", sc.Evidence)
	}
	if sc.Temporal != nil {
		t.Errorf("temporal: got %v, want nil", *sc.Temporal)
	}
	if len(sc.Exceptions) != 0 {
		t.Errorf("exceptions: got %v", sc.Exceptions)
	}
}

func TestExtractTable(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		check func(t *testing.T, sc *StructuredContext)
	}{
		{
			name: "full scope",
			text: "fully covers the retry logic",
			check: func(t *testing.T, sc *StructuredContext) {
				if sc.Scope == nil || *sc.Scope != "full" {
					t.Errorf("scope: got %v", sc.Scope)
				}
				if len(sc.Components) != 1 || sc.Components[0] != "retry logic" {
					t.Errorf("components: got %v", sc.Components)
				}
			},
		},
		{
			name: "conditional scope",
			text: "applies only if the flag is enabled",
			check: func(t *testing.T, sc *StructuredContext) {
				if sc.Scope == nil || *sc.Scope != "conditional" {
					t.Errorf("scope: got %v", sc.Scope)
				}
			},
		},
		{
			name: "temporal version",
			text: "behavior changed since v2.3.1",
			check: func(t *testing.T, sc *StructuredContext) {
				if sc.Temporal == nil || *sc.Temporal != "v2.3.1" {
					t.Errorf("temporal: got %v", sc.Temporal)
				}
			},
		},
		{
			name: "temporal date",
			text: "deprecated as of 2026-01-15",
			check: func(t *testing.T, sc *StructuredContext) {
				if sc.Temporal == nil || *sc.Temporal != "2026-01-15" {
					t.Errorf("temporal: got %v", sc.Temporal)
				}
			},
		},
		{
			name: "exception",
			text: "works everywhere except for windows",
			check: func(t *testing.T, sc *StructuredContext) {
				if len(sc.Exceptions) != 1 || sc.Exceptions[0] != "windows" {
					t.Errorf("exceptions: got %v", sc.Exceptions)
				}
			},
		},
		{
			name: "no markers",
			text: "some plain note with nothing structured",
			check: func(t *testing.T, sc *StructuredContext) {
				if sc.Scope != nil || len(sc.Components) != 0 || len(sc.Conditions) != 0 {
					t.Errorf("expected empty extraction: %+v", sc)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := Extract(tc.text)
			if sc.Text != tc.text {
				t.Errorf("text must be preserved: got %q", sc.Text)
			}
			tc.check(t, sc)
		})
	}
}

func TestExtractEmpty(t *testing.T) {
	sc := Extract("")
	if sc.Text != "" || sc.Scope != nil {
		t.Errorf("empty input should yield a zero record: %+v", sc)
	}
	if sc.Components == nil || sc.Conditions == nil || sc.Evidence == nil || sc.Exceptions == nil {
		t.Error("slices must be non-nil for stable JSON")
	}
}

func TestExtractIdempotent(t *testing.T) {
	first := Extract("partially implements auth module")
	encoded, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}

	second := Extract(string(encoded))
	if second.Scope == nil || *second.Scope != "partial" {
		t.Errorf("re-extraction of structured input should pass through: %+v", second)
	}
	if second.Text != first.Text {
		t.Errorf("text changed across extraction: %q vs %q", second.Text, first.Text)
	}
}
