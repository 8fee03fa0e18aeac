package main

// ---------------------------------------------------------------------------
// cmd_analyze.go — ingest a dataset file, score it, and report risk
// ---------------------------------------------------------------------------

import (
	"flag"
	"time"

	"github.com/loginlens-project/loginlens/internal/detect"
	"github.com/loginlens-project/loginlens/internal/ingest"
	"github.com/loginlens-project/loginlens/internal/report"
	"github.com/loginlens-project/loginlens/internal/store"
)

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	formatFlag := fs.String("format", "auto", "Input format: auto, csv, json, text")
	outputFlag := fs.String("output", "table", "Output format: table, json, csv")
	limit := fs.Int("limit", 15, "Max alerts to show in table output (0 = all)")
	warning := fs.Int("warning", 0, "Warning score threshold override")
	critical := fs.Int("critical", 0, "Critical score threshold override")
	snapshot := fs.String("snapshot", "", "Save events, settings, and results to this snapshot path")
	fs.Parse(args)

	if fs.NArg() != 1 {
		errorf("analyze needs exactly one input file (or - for stdin)")
	}

	cfg := loadConfig(*configPath)
	logger := newLogger(cfg.Logging)

	settings := cfg.Detection
	if *warning > 0 {
		settings.WarningScore = *warning
	}
	if *critical > 0 {
		settings.CriticalScore = *critical
	}
	if err := settings.Validate(); err != nil {
		errorf("invalid detection settings: %v", err)
	}

	format, err := ingest.ParseFormat(*formatFlag)
	if err != nil {
		errorf("%v", err)
	}

	data := readInput(fs.Arg(0))
	ds, err := ingest.Parse(data, format)
	if err != nil {
		errorf("ingesting %s: %v", fs.Arg(0), err)
	}
	if len(ds.Mapping.Defaults) > 0 {
		warnf("columns using defaults: %v", ds.Mapping.Defaults)
	}

	risks, err := detect.NewEngine(logger, settings).Run(ds.Events)
	if err != nil {
		errorf("scoring: %v", err)
	}
	bundle := report.Derive(risks, settings)

	renderBundle(bundle, parseOutputFormat(*outputFlag), *limit)

	if *snapshot != "" {
		snap := &store.Snapshot{
			SavedAt:  time.Now().UTC(),
			Events:   ds.Events,
			Settings: settings,
			Bundle:   bundle,
		}
		if err := store.Save(*snapshot, snap); err != nil {
			errorf("saving snapshot: %v", err)
		}
		logger.Info().Str("path", *snapshot).Msg("snapshot saved")
	}
}
