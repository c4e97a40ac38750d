// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/memorygraph/pkg/storage"
)

// runReset deletes the local SQLite database. Cloud data is never
// touched from here.
func runReset(configPath string, globals GlobalFlags, args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: memorygraph reset --yes

Description:
  WARNING: This is a destructive operation that deletes all memory data.

  Removes the SQLite database file, including every stored memory and
  relationship. Configuration is NOT deleted. The database is recreated
  empty the next time the MCP server starts.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(ExitInit)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: the --yes flag is required to confirm this destructive operation\n")
		fmt.Fprintf(os.Stderr, "Run 'memorygraph reset --yes' to confirm\n")
		os.Exit(ExitInit)
	}

	cfg := loadConfigOrExit(configPath)
	if strings.ToLower(cfg.Backend) != "sqlite" {
		fmt.Fprintf(os.Stderr, "Error: reset only applies to the sqlite backend (configured: %s)\n", cfg.Backend)
		os.Exit(ExitInit)
	}

	// Open the backend to resolve the effective path, then close it so
	// the files can be removed.
	backend, err := storage.NewSQLiteBackend(storage.SQLiteConfig{Path: cfg.SQLitePath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitBackend)
	}
	path := backend.Path()
	_ = backend.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "No data found at %s\n", path)
		return
	}

	if globals.Verbose {
		fmt.Printf("Deleting memory data at %s...\n", filepath.Clean(path))
	}
	for _, f := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error: cannot delete %s: %v\n", f, err)
			os.Exit(ExitBackend)
		}
	}

	fmt.Println("Reset complete. All memory data has been deleted.")
}
