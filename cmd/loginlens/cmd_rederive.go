package main

// ---------------------------------------------------------------------------
// cmd_rederive.go — reclassify a saved run under new thresholds
// ---------------------------------------------------------------------------

import (
	"flag"
	"time"

	"github.com/loginlens-project/loginlens/internal/report"
	"github.com/loginlens-project/loginlens/internal/store"
)

func cmdRederive(args []string) {
	fs := flag.NewFlagSet("rederive", flag.ExitOnError)
	snapshot := fs.String("snapshot", "", "Snapshot path to re-derive (required)")
	warning := fs.Int("warning", 0, "New warning score threshold")
	critical := fs.Int("critical", 0, "New critical score threshold")
	outputFlag := fs.String("output", "table", "Output format: table, json, csv")
	limit := fs.Int("limit", 15, "Max alerts to show in table output (0 = all)")
	save := fs.Bool("save", false, "Write the re-derived results back to the snapshot")
	fs.Parse(args)

	if *snapshot == "" {
		errorf("rederive needs -snapshot")
	}

	snap, err := store.Load(*snapshot)
	if err != nil {
		errorf("loading snapshot: %v", err)
	}
	if snap.Bundle == nil {
		errorf("snapshot %s holds no prior detection run", *snapshot)
	}

	settings := snap.Settings
	if *warning > 0 {
		settings.WarningScore = *warning
	}
	if *critical > 0 {
		settings.CriticalScore = *critical
	}
	if err := settings.Validate(); err != nil {
		errorf("invalid detection settings: %v", err)
	}

	// Pure reclassification from the stored raw scores — the scoring rules
	// never re-run here.
	bundle := report.Rederive(snap.Bundle, settings)
	renderBundle(bundle, parseOutputFormat(*outputFlag), *limit)

	if *save {
		snap.Settings = settings
		snap.Bundle = bundle
		snap.SavedAt = time.Now().UTC()
		if err := store.Save(*snapshot, snap); err != nil {
			errorf("saving snapshot: %v", err)
		}
	}
}
