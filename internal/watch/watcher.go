// Package watch runs the full pipeline over data files dropped into a
// directory. Each file is treated as one complete dataset; detection stays a
// batch operation, the watcher only automates the hand-off.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/bus"
	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/detect"
	"github.com/loginlens-project/loginlens/internal/ingest"
	"github.com/loginlens-project/loginlens/internal/report"
	"github.com/loginlens-project/loginlens/internal/store"
)

// settleDelay gives writers a moment to finish before the file is read.
const settleDelay = 250 * time.Millisecond

// Watcher ingests and scores data files as they appear in a directory.
type Watcher struct {
	dir          string
	settings     core.DetectionSettings
	snapshotPath string
	publisher    *bus.Publisher // nil when publishing is disabled
	logger       zerolog.Logger
}

// New creates a watcher for cfg.Dir. publisher may be nil; snapshotPath may
// be empty to skip persistence.
func New(cfg core.WatchConfig, settings core.DetectionSettings, snapshotPath string, publisher *bus.Publisher, logger zerolog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating watch dir %s: %w", cfg.Dir, err)
	}
	return &Watcher{
		dir:          cfg.Dir,
		settings:     settings,
		snapshotPath: snapshotPath,
		publisher:    publisher,
		logger:       logger.With().Str("component", "drop_watcher").Logger(),
	}, nil
}

// Run watches the directory until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info().Str("dir", w.dir).Msg("watching for dataset files")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !isDataFile(event.Name) {
				continue
			}
			time.Sleep(settleDelay)
			if err := w.processFile(event.Name); err != nil {
				w.logger.Error().Err(err).Str("file", event.Name).Msg("processing dropped file")
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) processFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ds, err := ingest.Parse(data, formatForFile(path))
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", path, err)
	}

	risks, err := detect.NewEngine(w.logger, w.settings).Run(ds.Events)
	if err != nil {
		return fmt.Errorf("scoring %s: %w", path, err)
	}
	bundle := report.Derive(risks, w.settings)

	w.logger.Info().
		Str("file", filepath.Base(path)).
		Int("events", len(ds.Events)).
		Int("high", bundle.Summary.HighCount).
		Float64("mean_score", bundle.Summary.MeanScore).
		Msg("dataset analyzed")

	if w.publisher != nil {
		if err := w.publisher.PublishBundle(bundle); err != nil {
			w.logger.Error().Err(err).Msg("publishing bundle")
		}
	}
	if w.snapshotPath != "" {
		snap := &store.Snapshot{
			SavedAt:  time.Now().UTC(),
			Events:   ds.Events,
			Settings: w.settings,
			Bundle:   bundle,
		}
		if err := store.Save(w.snapshotPath, snap); err != nil {
			w.logger.Error().Err(err).Msg("saving snapshot")
		}
	}
	return nil
}

// isDataFile filters watcher events down to ingestible files.
func isDataFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".csv", ".json", ".txt", ".log", ".tsv":
		return true
	default:
		return false
	}
}

// formatForFile picks a parser hint from the file extension.
func formatForFile(path string) ingest.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return ingest.FormatDelimited
	case ".json":
		return ingest.FormatRecords
	case ".txt", ".log", ".tsv":
		return ingest.FormatLoose
	default:
		return ingest.FormatAuto
	}
}
