// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
)

// runInit creates the default ~/.memorygraph/config.yaml configuration
// file, or updates the one --config points at.
func runInit(configPath string, globals GlobalFlags) {
	path := configPath
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitInit)
		}
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "Error: %s already exists\n", path)
		os.Exit(ExitInit)
	}

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if err := SaveConfig(path, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInit)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Printf("Backend: %s\n", cfg.Backend)
	if globals.Verbose {
		fmt.Println("Run 'memorygraph --mcp' to start the MCP server.")
	}
}
