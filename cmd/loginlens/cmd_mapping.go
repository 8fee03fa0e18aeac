package main

// ---------------------------------------------------------------------------
// cmd_mapping.go — show how a file's columns map onto the canonical schema
// ---------------------------------------------------------------------------

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/loginlens-project/loginlens/internal/ingest"
)

func cmdMapping(args []string) {
	fs := flag.NewFlagSet("mapping", flag.ExitOnError)
	formatFlag := fs.String("format", "auto", "Input format: auto, csv, json, text")
	jsonOut := fs.Bool("json", false, "Output the mapping as JSON")
	fs.Parse(args)

	if fs.NArg() != 1 {
		errorf("mapping needs exactly one input file (or - for stdin)")
	}

	format, err := ingest.ParseFormat(*formatFlag)
	if err != nil {
		errorf("%v", err)
	}

	ds, err := ingest.Parse(readInput(fs.Arg(0)), format)
	if err != nil {
		errorf("ingesting %s: %v", fs.Arg(0), err)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(ds.Mapping); err != nil {
			errorf("encoding mapping: %v", err)
		}
		return
	}
	renderMapping(ds.Mapping.Fields, ds.Mapping.Defaults, ds.Mapping.Ignored, ds.Mapping.Notes)
}
