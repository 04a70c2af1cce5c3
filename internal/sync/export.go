package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/syncforge/themesync/internal/board"
	"github.com/syncforge/themesync/internal/utils"
)

// Exporter walks board-side entities and materializes them under the sync
// root. Exports are read-only against the board and idempotent: re-running
// with unchanged board content reproduces byte-identical files and rewrites
// nothing. A path changed on both sides is never overwritten; it is
// reported as a conflict with the local edit left in place.
type Exporter struct {
	store      *board.Store
	manifest   *Manifest
	classifier *Classifier
	root       string
	watcher    *Watcher // may be nil when running without a live watcher
}

// NewExporter creates an exporter for one sync root. watcher may be nil;
// when set, freshly written paths are registered with it so the export's own
// disk writes do not echo back through the import path.
func NewExporter(store *board.Store, manifest *Manifest, classifier *Classifier, root string, watcher *Watcher) *Exporter {
	return &Exporter{
		store:      store,
		manifest:   manifest,
		classifier: classifier,
		root:       root,
		watcher:    watcher,
	}
}

// ExportTemplateSet writes every template visible to the named set (master
// templates plus set-specific overrides, set wins) to
// template_sets/<set>/<group>/<name>.html and returns written/skipped names
// plus per-group counts.
func (e *Exporter) ExportTemplateSet(ctx context.Context, name string) (*ExportResult, error) {
	set, err := e.store.TemplateSetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	templates, err := e.store.TemplatesForSet(ctx, set.SID)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{
		Container: name,
		Written:   []string{},
		Skipped:   []string{},
		Groups:    make(map[string]int),
	}

	for _, t := range templates {
		group := e.classifier.GroupFor(ctx, t.Title, t.SID)
		result.Groups[group]++

		relPath := BuildPath(EntityDescriptor{
			Kind:      KindTemplate,
			Container: name,
			Group:     group,
			Name:      t.Title,
		})

		action, err := e.exportOne(relPath, []byte(t.Template), t.Dateline, &DBLink{
			EntityType: string(KindTemplate),
			EntityID:   t.TID,
			SID:        t.SID,
			Dateline:   t.Dateline,
		})
		if err != nil {
			return nil, fmt.Errorf("export template %q: %w", t.Title, err)
		}

		switch action {
		case ActionNone:
			result.Skipped = append(result.Skipped, t.Title)
		case ActionConflict:
			result.Conflicts = append(result.Conflicts, t.Title)
		default:
			result.Written = append(result.Written, t.Title)
		}
	}

	if err := e.manifest.Save(); err != nil {
		return nil, err
	}

	slog.Info("template set exported", "set", name,
		"written", len(result.Written), "skipped", len(result.Skipped),
		"conflicts", len(result.Conflicts), "groups", len(result.Groups))
	return result, nil
}

// ExportTheme writes the theme's effective stylesheets (its own plus
// everything inherited from ancestors, child wins) to
// styles/<theme>/<name>.css.
func (e *Exporter) ExportTheme(ctx context.Context, name string) (*ExportResult, error) {
	theme, err := e.store.ThemeByName(ctx, name)
	if err != nil {
		return nil, err
	}

	resolved, err := e.store.ResolveStylesheets(ctx, theme)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(resolved))
	for sheetName := range resolved {
		names = append(names, sheetName)
	}
	sort.Strings(names)

	result := &ExportResult{
		Container: name,
		Written:   []string{},
		Skipped:   []string{},
	}

	for _, sheetName := range names {
		sheet := resolved[sheetName]

		relPath := BuildPath(EntityDescriptor{
			Kind:      KindStylesheet,
			Container: name,
			Name:      sheetName,
		})

		action, err := e.exportOne(relPath, []byte(sheet.Stylesheet), sheet.LastModified, &DBLink{
			EntityType: string(KindStylesheet),
			EntityID:   sheet.SID,
			SID:        sheet.ThemeID,
			Dateline:   sheet.LastModified,
		})
		if err != nil {
			return nil, fmt.Errorf("export stylesheet %q: %w", sheetName, err)
		}

		switch action {
		case ActionNone:
			result.Skipped = append(result.Skipped, sheetName)
		case ActionConflict:
			result.Conflicts = append(result.Conflicts, sheetName)
		default:
			result.Written = append(result.Written, sheetName)
		}
	}

	if err := e.manifest.Save(); err != nil {
		return nil, err
	}

	slog.Info("theme exported", "theme", name,
		"written", len(result.Written), "skipped", len(result.Skipped),
		"conflicts", len(result.Conflicts))
	return result, nil
}

// exportOne writes a single entity unless the manifest shows nothing moved
// since the last sync, or shows both sides moved. A path whose local file
// AND board row both changed is a conflict: the local edit stays on disk,
// untouched, and the caller reports the path instead of picking a winner.
// An untracked path is claimed by the export and always written.
func (e *Exporter) exportOne(relPath string, content []byte, dateline int64, link *DBLink) (SyncAction, error) {
	if e.manifest.Get(relPath) != nil {
		switch action := e.manifest.SyncAction(relPath, "", dateline); action {
		case ActionNone:
			slog.Debug("export skip", "path", relPath)
			return action, nil
		case ActionConflict:
			slog.Warn("export conflict, keeping local edit", "path", relPath)
			return action, nil
		}
	}

	absPath := filepath.Join(e.root, relPath)
	if e.watcher != nil {
		e.watcher.IgnoreOnce(absPath)
	}

	if err := utils.WriteFileAtomic(absPath, content, 0o644); err != nil {
		return ActionNone, err
	}

	hash := utils.ContentHash(content)
	if err := e.manifest.UpdateFile(relPath, hash, DirectionFromDB, link); err != nil {
		return ActionNone, err
	}

	slog.Debug("export write", "path", relPath, "bytes", len(content))
	return ActionFromDB, nil
}
