// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/memorygraph/pkg/migrate"
	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// backendMigrator implements tools.Migrator by resolving backend names
// to storage backends and delegating to the migration engine. It is
// the only component that constructs backends on demand.
type backendMigrator struct {
	cfg    *Config
	logger *slog.Logger
	engine *migrate.Engine
}

func newBackendMigrator(cfg *Config, logger *slog.Logger) *backendMigrator {
	return &backendMigrator{
		cfg:    cfg,
		logger: logger,
		engine: migrate.NewEngine(logger),
	}
}

// resolveBackend opens the backend a name refers to. Recognized names
// are "sqlite" and "cloud"; anything else is treated as a SQLite file
// path. The returned path is non-empty only for SQLite backends.
func (m *backendMigrator) resolveBackend(name string) (storage.Backend, string, error) {
	switch strings.ToLower(name) {
	case "sqlite":
		b, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: m.cfg.SQLitePath})
		if err != nil {
			return nil, "", err
		}
		return b, b.Path(), nil
	case "cloud":
		b, err := storage.NewCloudBackend(storage.CloudConfig{
			APIURL:  m.cfg.Cloud.APIURL,
			APIKey:  m.cfg.Cloud.APIKey,
			Timeout: time.Duration(m.cfg.Cloud.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, "", err
		}
		return b, "", nil
	default:
		b, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: name})
		if err != nil {
			return nil, "", err
		}
		return b, name, nil
	}
}

// Migrate copies source into target and verifies the result. SQLite
// targets are written through a side-channel file that replaces the
// real database only after verification passes, so a failed migration
// never leaves the target half-written.
func (m *backendMigrator) Migrate(ctx context.Context, source, target string, dryRun bool) (*tools.MigrationReport, error) {
	if source == target {
		return nil, fmt.Errorf("source and target are the same backend (%s)", source)
	}

	src, _, err := m.resolveBackend(source)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", source, err)
	}
	defer func() { _ = src.Close() }()

	dst, dstPath, err := m.resolveBackend(target)
	if err != nil {
		return nil, fmt.Errorf("open target %s: %w", target, err)
	}

	if dstPath == "" || dryRun {
		defer func() { _ = dst.Close() }()
		report, err := m.engine.Migrate(ctx, src, dst, dryRun)
		if err != nil {
			return nil, err
		}
		report.Source, report.Target = source, target
		return report, nil
	}

	// SQLite target: migrate into a sibling file, then swap it in.
	_ = dst.Close()
	sidePath := dstPath + ".migrating"
	_ = os.Remove(sidePath)
	side, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: sidePath})
	if err != nil {
		return nil, fmt.Errorf("open migration side-channel: %w", err)
	}

	report, err := m.engine.Migrate(ctx, src, side, false)
	if cerr := side.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(sidePath)
		return nil, err
	}

	if err := os.Rename(sidePath, dstPath); err != nil {
		_ = os.Remove(sidePath)
		return nil, fmt.Errorf("swap migrated database into place: %w", err)
	}
	// Journal files of the old database are stale after the swap.
	_ = os.Remove(dstPath + "-wal")
	_ = os.Remove(dstPath + "-shm")

	report.Source, report.Target = source, target
	return report, nil
}

// Validate compares two backends without writing to either.
func (m *backendMigrator) Validate(ctx context.Context, source, target string) (*tools.ValidationReport, error) {
	src, _, err := m.resolveBackend(source)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", source, err)
	}
	defer func() { _ = src.Close() }()

	dst, _, err := m.resolveBackend(target)
	if err != nil {
		return nil, fmt.Errorf("open target %s: %w", target, err)
	}
	defer func() { _ = dst.Close() }()

	report, err := m.engine.Validate(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	report.Source, report.Target = source, target
	return report, nil
}

var _ tools.Migrator = (*backendMigrator)(nil)

// runExport writes a snapshot of the configured backend to a file, or
// to stdout when the path is "-".
func runExport(configPath string, globals GlobalFlags, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: memorygraph export <file>\n")
		os.Exit(ExitInit)
	}
	outPath := args[0]

	cfg := loadConfigOrExit(configPath)
	logger := newLogger(cfg)
	backend, name, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open %s backend: %v\n", cfg.Backend, err)
		os.Exit(ExitBackend)
	}
	defer func() { _ = backend.Close() }()

	engine := migrate.NewEngine(logger)
	snapshot, err := engine.Export(context.Background(), backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: export from %s failed: %v\n", name, err)
		os.Exit(ExitBackend)
	}

	if outPath == "-" {
		data, err := snapshot.MarshalIndent()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitBackend)
		}
		fmt.Println(string(data))
		return
	}

	if err := migrate.WriteSnapshotFile(outPath, snapshot); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitBackend)
	}
	if globals.Verbose {
		checksum, _ := migrate.Checksum(snapshot)
		fmt.Printf("Checksum: %s\n", checksum)
	}
	fmt.Printf("Exported %d memories and %d relationships to %s\n",
		snapshot.Counts.Memories, snapshot.Counts.Relationships, filepath.Clean(outPath))
}

// runImport loads a snapshot file into the configured backend.
func runImport(configPath string, globals GlobalFlags, args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	merge := fs.Bool("merge", false, "Overwrite rows that share an id with the snapshot")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: memorygraph import [--merge] <file>\n")
		os.Exit(ExitInit)
	}
	inPath := fs.Arg(0)

	cfg := loadConfigOrExit(configPath)
	logger := newLogger(cfg)
	backend, name, err := openBackend(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open %s backend: %v\n", cfg.Backend, err)
		os.Exit(ExitBackend)
	}
	defer func() { _ = backend.Close() }()

	snapshot, err := migrate.ReadSnapshotFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInit)
	}

	mode := migrate.RefuseIfExists
	if *merge {
		mode = migrate.MergeByID
	}
	engine := migrate.NewEngine(logger)
	if err := engine.Import(context.Background(), snapshot, backend, mode); err != nil {
		fmt.Fprintf(os.Stderr, "Error: import into %s failed: %v\n", name, err)
		os.Exit(ExitBackend)
	}

	fmt.Printf("Imported %d memories and %d relationships into %s\n",
		snapshot.Counts.Memories, snapshot.Counts.Relationships, name)
}

// runMigrate copies one backend into another from the command line.
func runMigrate(configPath string, globals GlobalFlags, args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "Validate the snapshot without writing anything")
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Usage: memorygraph migrate [--dry-run] <source> <target>\n")
		fmt.Fprintf(os.Stderr, "Source and target are \"sqlite\", \"cloud\", or a SQLite file path.\n")
		os.Exit(ExitInit)
	}

	cfg := loadConfigOrExit(configPath)
	logger := newLogger(cfg)
	migrator := newBackendMigrator(cfg, logger)

	report, err := migrator.Migrate(context.Background(), fs.Arg(0), fs.Arg(1), *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: migration failed: %v\n", err)
		os.Exit(ExitBackend)
	}

	if report.DryRun {
		fmt.Println("Dry run: no data was written.")
	}
	fmt.Printf("Migrated %d memories and %d relationships: %s -> %s\n",
		report.Memories, report.Relationships, report.Source, report.Target)
	if report.Verified {
		fmt.Println("Verification passed: target matches source.")
	}
	if globals.Verbose {
		fmt.Printf("Checksum: %s\n", report.Checksum)
	}
}
