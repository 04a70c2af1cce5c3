package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/syncforge/themesync/internal/board"
	"github.com/syncforge/themesync/internal/utils"
)

const (
	defaultSetCacheTTL     = 5 * time.Minute
	defaultTemplateVersion = "1.0"
)

// CacheNotifier receives best-effort change notifications for the board's
// own caches. Implementations must never propagate failures.
type CacheNotifier interface {
	StylesheetChanged(ctx context.Context, theme, name string)
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithSetCacheTTL overrides the freshness window of the set-id cache.
func WithSetCacheTTL(ttl time.Duration) ImporterOption {
	return func(i *Importer) {
		i.cacheTTL = ttl
	}
}

// WithoutSetCache disables set-id caching entirely; every import re-resolves
// the set against the board.
func WithoutSetCache() ImporterOption {
	return func(i *Importer) {
		i.cacheEnabled = false
	}
}

// Importer writes disk-side changes through to the board database. Each
// importer owns its set-id cache, so multiple sync roots can import
// concurrently without cross-talk.
type Importer struct {
	store    *board.Store
	manifest *Manifest
	notifier CacheNotifier // may be nil

	cacheEnabled bool
	cacheTTL     time.Duration
	setCache     *expirable.LRU[string, int64]
}

// NewImporter creates an importer for one sync root.
func NewImporter(store *board.Store, manifest *Manifest, notifier CacheNotifier, opts ...ImporterOption) *Importer {
	imp := &Importer{
		store:        store,
		manifest:     manifest,
		notifier:     notifier,
		cacheEnabled: true,
		cacheTTL:     defaultSetCacheTTL,
	}
	for _, opt := range opts {
		opt(imp)
	}
	imp.setCache = expirable.NewLRU[string, int64](0, nil, imp.cacheTTL)
	return imp
}

// Invalidate drops all cached set-id resolutions.
func (i *Importer) Invalidate() {
	i.setCache.Purge()
}

// Import dispatches a work item to the matching importer.
func (i *Importer) Import(ctx context.Context, item *WorkItem) error {
	switch item.Desc.Kind {
	case KindTemplate:
		return i.ImportTemplate(ctx, item)
	case KindStylesheet:
		return i.ImportStylesheet(ctx, item)
	default:
		return fmt.Errorf("work item %s: unknown entity kind", item.ID)
	}
}

// ImportTemplate writes a template edit through to the board. An existing
// override in the target set is updated in place; otherwise a new row is
// inserted, inheriting the version tag of the master template when one
// exists.
func (i *Importer) ImportTemplate(ctx context.Context, item *WorkItem) error {
	if len(item.Content) == 0 {
		return fmt.Errorf("template %q: %w", item.Desc.Name, ErrEmptyContent)
	}

	sid, err := i.resolveSetID(ctx, item.Desc.Container)
	if err != nil {
		return err
	}

	content := string(item.Content)
	title := item.Desc.Name

	var tid, dateline int64
	existing, err := i.store.TemplateByTitle(ctx, title, sid)
	switch {
	case err == nil:
		dateline, err = i.store.UpdateTemplate(ctx, existing.TID, content)
		if err != nil {
			return err
		}
		tid = existing.TID
		slog.Info("template updated", "title", title, "sid", sid, "tid", tid)

	case errors.Is(err, board.ErrNotFound):
		version := defaultTemplateVersion
		if master, merr := i.store.TemplateByTitle(ctx, title, board.MasterTemplateSet); merr == nil {
			version = master.Version
		}
		inserted, ierr := i.store.InsertTemplate(ctx, title, content, version, sid)
		if ierr != nil {
			return ierr
		}
		tid = inserted.TID
		dateline = inserted.Dateline
		slog.Info("template created", "title", title, "sid", sid, "tid", tid, "version", version)

	default:
		return err
	}

	return i.record(item, string(KindTemplate), tid, sid, dateline)
}

// ImportStylesheet writes a stylesheet edit through to the board with
// copy-on-write inheritance: a stylesheet owned by the theme is updated in
// place; one only reachable through an ancestor is copied into the theme as
// a new override (the ancestor is never touched); otherwise a brand-new row
// is created with empty page attachments. A successful import fires a
// best-effort cache invalidation.
func (i *Importer) ImportStylesheet(ctx context.Context, item *WorkItem) error {
	if len(item.Content) == 0 {
		return fmt.Errorf("stylesheet %q: %w", item.Desc.Name, ErrEmptyContent)
	}

	theme, err := i.store.ThemeByName(ctx, item.Desc.Container)
	if err != nil {
		return err
	}

	content := string(item.Content)
	name := item.Desc.Name

	var sheetID, lastModified int64
	direct, err := i.store.StylesheetByName(ctx, theme.TID, name)
	switch {
	case err == nil:
		lastModified, err = i.store.UpdateStylesheet(ctx, direct.SID, content)
		if err != nil {
			return err
		}
		sheetID = direct.SID
		slog.Info("stylesheet updated", "name", name, "theme", theme.Name)

	case errors.Is(err, board.ErrNotFound):
		attachedTo := ""
		if inherited, ferr := i.store.FindInheritedStylesheet(ctx, theme, name); ferr == nil {
			// Copy-on-write: the new override carries the ancestor's page
			// attachments but lives in this theme.
			attachedTo = inherited.AttachedTo
			slog.Info("stylesheet override created", "name", name, "theme", theme.Name, "inherited_from", inherited.ThemeID)
		} else if !errors.Is(ferr, board.ErrNotFound) {
			return ferr
		} else {
			slog.Info("stylesheet created", "name", name, "theme", theme.Name)
		}

		inserted, ierr := i.store.InsertStylesheet(ctx, theme.TID, name, content, attachedTo)
		if ierr != nil {
			return ierr
		}
		sheetID = inserted.SID
		lastModified = inserted.LastModified

	default:
		return err
	}

	if err := i.record(item, string(KindStylesheet), sheetID, theme.TID, lastModified); err != nil {
		return err
	}

	if i.notifier != nil {
		i.notifier.StylesheetChanged(ctx, theme.Name, name)
	}
	return nil
}

// resolveSetID resolves a template set name to its sid through the TTL
// cache. An unknown set falls back to the reserved master set with a
// recorded warning, so edits are never dropped on the floor.
func (i *Importer) resolveSetID(ctx context.Context, name string) (int64, error) {
	if i.cacheEnabled {
		if sid, ok := i.setCache.Get(name); ok {
			return sid, nil
		}
	}

	set, err := i.store.TemplateSetByName(ctx, name)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			slog.Warn("template set not found, falling back to master set", "set", name)
			return board.MasterTemplateSet, nil
		}
		return 0, err
	}

	if i.cacheEnabled {
		i.setCache.Add(name, set.SID)
	}
	return set.SID, nil
}

func (i *Importer) record(item *WorkItem, entityType string, entityID, sid, dateline int64) error {
	err := i.manifest.UpdateFile(item.RelPath, utils.ContentHash(item.Content), DirectionToDB, &DBLink{
		EntityType: entityType,
		EntityID:   entityID,
		SID:        sid,
		Dateline:   dateline,
	})
	if err != nil {
		return err
	}
	return i.manifest.Save()
}
