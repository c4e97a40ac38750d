// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"fmt"
	"strings"
)

// MigrateDatabase handles the migrate_database tool. The Migrator is
// supplied by the server, which owns backend construction.
func MigrateDatabase(ctx context.Context, migrator Migrator, args map[string]any) *ToolResult {
	source := GetStringArg(args, "source_backend", "")
	if source == "" {
		return NewError("Missing required parameter: source_backend")
	}
	target := GetStringArg(args, "target_backend", "")
	if target == "" {
		return NewError("Missing required parameter: target_backend")
	}
	dryRun := GetBoolArg(args, "dry_run", false)

	report, err := migrator.Migrate(ctx, source, target, dryRun)
	if err != nil {
		return Classify(nil, "migrate database", err)
	}

	var sb strings.Builder
	if report.DryRun {
		sb.WriteString("Dry run: no data was written.\n\n")
	}
	sb.WriteString(fmt.Sprintf("Migration %s -> %s: %d memories, %d relationships.\n",
		report.Source, report.Target, report.Memories, report.Relationships))
	sb.WriteString(fmt.Sprintf("Snapshot checksum: %s\n", report.Checksum))
	if report.Verified {
		sb.WriteString("Verification passed: target matches source.\n")
	}
	return NewResult(sb.String())
}

// ValidateMigration handles the validate_migration tool.
func ValidateMigration(ctx context.Context, migrator Migrator, args map[string]any) *ToolResult {
	source := GetStringArg(args, "source_backend", "")
	if source == "" {
		return NewError("Missing required parameter: source_backend")
	}
	target := GetStringArg(args, "target_backend", "")
	if target == "" {
		return NewError("Missing required parameter: target_backend")
	}

	report, err := migrator.Validate(ctx, source, target)
	if err != nil {
		return Classify(nil, "validate migration", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Validation %s vs %s:\n\n", report.Source, report.Target))
	sb.WriteString(fmt.Sprintf("- Memories: %d vs %d\n", report.SourceMemories, report.TargetMemories))
	sb.WriteString(fmt.Sprintf("- Relationships: %d vs %d\n", report.SourceRelations, report.TargetRelations))
	sb.WriteString(fmt.Sprintf("- Counts match: %t\n", report.CountsMatch))
	sb.WriteString(fmt.Sprintf("- Checksums match: %t\n", report.ChecksumsMatch))
	sb.WriteString(fmt.Sprintf("- Ordering preserved: %t\n", report.OrderingPreserved))
	if report.CountsMatch && report.ChecksumsMatch && report.OrderingPreserved {
		sb.WriteString("\nBackends are equivalent.\n")
	} else {
		sb.WriteString(fmt.Sprintf("\nBackends differ. Source checksum %s, target checksum %s.\n",
			report.SourceChecksum, report.TargetChecksum))
	}
	return NewResult(sb.String())
}
