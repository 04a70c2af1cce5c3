package sync

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/syncforge/themesync/internal/board"
	"github.com/syncforge/themesync/internal/config"
	"github.com/syncforge/themesync/internal/queue"
	"github.com/syncforge/themesync/internal/utils"
)

// Engine composes the sync machinery for one sync root: manifest, watcher,
// queue, processor, exporters and importers. It is the surface the CLI and
// the control plane drive.
type Engine struct {
	cfg       *config.Config
	store     *board.Store
	manifest  *Manifest
	watcher   *Watcher
	workQueue *queue.Queue[*WorkItem]
	processor *Processor
	exporter  *Exporter
	importer  *Importer
}

// NewEngine wires an engine from config and an open board database handle.
func NewEngine(cfg *config.Config, boardDB *sqlx.DB) (*Engine, error) {
	store := board.NewStore(boardDB)

	manifest := NewManifest(cfg.SyncRoot)
	if err := manifest.Load(); err != nil {
		return nil, err
	}

	workQueue := queue.New[*WorkItem]()
	watcher := NewWatcher(cfg.SyncRoot, workQueue)
	classifier := NewClassifier(store)
	exporter := NewExporter(store, manifest, classifier, cfg.SyncRoot, watcher)

	notifier := board.NewCacheInvalidator(cfg.BoardURL)
	importer := NewImporter(store, manifest, notifier)

	processor := NewProcessor(workQueue, importer)

	return &Engine{
		cfg:       cfg,
		store:     store,
		manifest:  manifest,
		watcher:   watcher,
		workQueue: workQueue,
		processor: processor,
		exporter:  exporter,
		importer:  importer,
	}, nil
}

// Start brings up the watcher and the queue processor.
func (e *Engine) Start(ctx context.Context) error {
	slog.Info("sync engine start", "root", e.cfg.SyncRoot)

	if err := utils.EnsureDir(filepath.Join(e.cfg.SyncRoot, TemplateSetsDir)); err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Join(e.cfg.SyncRoot, StylesDir)); err != nil {
		return err
	}

	if err := e.watcher.Start(ctx); err != nil {
		return err
	}
	e.processor.Start(ctx)
	return nil
}

// Stop winds the engine down gracefully: no new filesystem notifications are
// accepted and the item currently being imported finishes before return.
func (e *Engine) Stop() {
	slog.Info("sync engine stop")
	e.watcher.Stop()
	e.processor.Stop()
	if err := e.manifest.Save(); err != nil {
		slog.Error("manifest save on shutdown failed", "error", err)
	}
}

// ExportTemplateSet runs a bulk template export with the live import path
// gated. The gate is restored to its prior state even when the export fails,
// so an operator-requested pause survives the export.
func (e *Engine) ExportTemplateSet(ctx context.Context, name string) (*ExportResult, error) {
	release := e.processor.Hold()
	defer release()
	return e.exporter.ExportTemplateSet(ctx, name)
}

// ExportTheme runs a bulk stylesheet export with the live import path gated.
func (e *Engine) ExportTheme(ctx context.Context, name string) (*ExportResult, error) {
	release := e.processor.Hold()
	defer release()
	return e.exporter.ExportTheme(ctx, name)
}

// Pause holds the queue processor's gate. Idempotent.
func (e *Engine) Pause() {
	e.processor.Pause()
}

// Resume releases the queue processor's gate. Idempotent.
func (e *Engine) Resume() {
	e.processor.Resume()
}

// Status reports the engine's externally visible state, including tracked
// paths that have since disappeared from disk.
func (e *Engine) Status() *Status {
	return &Status{
		WatcherRunning: e.watcher.Running(),
		Paused:         e.processor.Paused(),
		SyncRoot:       e.cfg.SyncRoot,
		BoardURL:       e.cfg.BoardURL,
		QueueLength:    e.workQueue.Len(),
		TrackedFiles:   e.manifest.Len(),
		DeletedFiles:   e.manifest.FindDeletedFiles(e.scanCurrentFiles()),
	}
}

// scanCurrentFiles walks the sync root and returns the relative paths of all
// regular files currently present.
func (e *Engine) scanCurrentFiles() []string {
	var current []string
	_ = filepath.WalkDir(e.cfg.SyncRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.cfg.SyncRoot, path)
		if err != nil {
			return nil
		}
		current = append(current, utils.NormPath(rel))
		return nil
	})
	return current
}
