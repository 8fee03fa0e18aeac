package main

// ---------------------------------------------------------------------------
// main.go — command dispatcher for the loginlens CLI
//
// This file is intentionally slim. Command implementations live in their own
// files (cmd_*.go); shared helpers are in helpers.go and output.go.
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
)

var (
	version   = "0.3.0"
	commit    = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--version", "-V", "version":
			printVersion(os.Stdout)
			os.Exit(0)
		case "--help", "-h", "help":
			printUsage(os.Stdout)
			os.Exit(0)
		}
	}

	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(0)
	}

	subcmd := os.Args[1]
	args := os.Args[2:]

	switch subcmd {
	case "analyze":
		cmdAnalyze(args)
	case "mapping":
		cmdMapping(args)
	case "rederive":
		cmdRederive(args)
	case "serve":
		cmdServe(args)
	case "watch":
		cmdWatch(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", subcmd)
		printUsage(os.Stderr)
		os.Exit(2)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "loginlens %s (commit %s, built %s)\n", version, commit, buildDate)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `loginlens — login-event identity-theft risk analysis

Usage:
  loginlens <command> [flags]

Commands:
  analyze    Ingest a dataset file and report per-event risk
  mapping    Show how a file's columns map onto the canonical schema
  rederive   Re-classify a saved run under new thresholds
  serve      Run the HTTP API (optionally with NATS publishing and watcher)
  watch      Analyze dataset files dropped into a directory
  version    Print version information

Run "loginlens <command> -h" for command flags.
`)
}
