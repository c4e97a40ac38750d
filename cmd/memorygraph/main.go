// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Command memorygraph is a persistent graph memory for AI coding
// agents. It runs as an MCP server over stdio (--mcp) and offers a
// small CLI for setup, inspection, and backend migration.
//
// Usage:
//
//	memorygraph --mcp              run the MCP server on stdin/stdout
//	memorygraph init               create a default config file
//	memorygraph status             show backend health and graph stats
//	memorygraph export <file>      write a snapshot of the graph
//	memorygraph import <file>      load a snapshot into the backend
//	memorygraph migrate <s> <t>    copy one backend into another
//	memorygraph reset --yes        delete all local memory data
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitInit    = 1
	ExitBackend = 2
)

// Version information, injected at build time via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// GlobalFlags holds flags that apply to every command.
type GlobalFlags struct {
	JSON    bool
	Verbose bool
}

func main() {
	var (
		globals     GlobalFlags
		configPath  string
		mcpMode     bool
		showVersion bool
	)

	flag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	flag.BoolVar(&mcpMode, "mcp", false, "Run as MCP server on stdin/stdout")
	flag.BoolVar(&globals.JSON, "json", false, "Output in JSON format")
	flag.BoolVarP(&globals.Verbose, "verbose", "v", false, "Verbose output")
	flag.BoolVarP(&showVersion, "version", "V", false, "Show version information")

	flag.SetInterspersed(false)
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		fmt.Printf("memorygraph %s (commit %s, built %s)\n", version, gitCommit, buildDate)
		os.Exit(ExitSuccess)
	}

	if mcpMode {
		runMCPServer(configPath)
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(ExitInit)
	}

	switch args[0] {
	case "init":
		runInit(configPath, globals)
	case "status":
		runStatus(configPath, globals)
	case "export":
		runExport(configPath, globals, args[1:])
	case "import":
		runImport(configPath, globals, args[1:])
	case "migrate":
		runMigrate(configPath, globals, args[1:])
	case "reset":
		runReset(configPath, globals, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(ExitInit)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `memorygraph - persistent graph memory for AI coding agents

Usage:
  memorygraph --mcp                       Run the MCP server on stdin/stdout
  memorygraph [flags] <command> [args]

Commands:
  init                                    Create a default config file
  status                                  Show backend health and graph statistics
  export <file>                           Export the graph to a snapshot file
  import <file>                           Import a snapshot file into the backend
  migrate <source> <target>               Copy one backend into another and verify
  reset --yes                             Delete all local memory data

Flags:
  -c, --config string                     Path to config file
      --mcp                               Run as MCP server
      --json                              Output in JSON format
  -v, --verbose                           Verbose output
  -V, --version                           Show version information

Environment:
  MEMORY_BACKEND                          sqlite (default) or cloud
  MEMORY_SQLITE_PATH                      SQLite database file location
  MEMORY_ALLOW_CYCLES                     Allow cyclic ordering relationships
  MEMORY_MULTI_TENANT_MODE                Require tenant context on writes
  MEMORY_LOG_LEVEL                        DEBUG, INFO, WARN, or ERROR
  MEMORYGRAPH_CONFIG_PATH                 Config file override
  MEMORYGRAPH_API_URL, MEMORYGRAPH_API_KEY  Cloud backend credentials
`)
}

// loadConfigOrExit is the shared config bootstrap for CLI commands.
func loadConfigOrExit(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitInit)
	}
	return cfg
}
