package sync

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/syncforge/themesync/internal/utils"
)

const manifestVersion = "1.0"

// DBLink ties a manifest entry to the board-side row it was last synced
// against.
type DBLink struct {
	EntityType string
	EntityID   int64
	SID        int64
	Dateline   int64
}

// ManifestEntry is the persisted sync state of one tracked path.
type ManifestEntry struct {
	Hash          string        `json:"hash"`
	Size          int64         `json:"size"`
	Mtime         float64       `json:"mtime"`
	LastSync      string        `json:"last_sync"`
	SyncDirection SyncDirection `json:"sync_direction"`
	DBEntityType  *string       `json:"db_entity_type"`
	DBEntityID    *int64        `json:"db_entity_id"`
	DBSid         *int64        `json:"db_sid"`
	DBDateline    *int64        `json:"db_dateline"`
}

type manifestMetadata struct {
	Created     string `json:"created"`
	LastUpdated string `json:"last_updated"`
	TotalFiles  int    `json:"total_files"`
}

type manifestDoc struct {
	Version  string                    `json:"version"`
	Metadata manifestMetadata          `json:"metadata"`
	Files    map[string]*ManifestEntry `json:"files"`
}

// Manifest is the persistent ledger of per-file sync state for one sync
// root. Entries are keyed by normalized relative path and are only removed
// explicitly, so files deleted from disk remain detectable.
//
// A Manifest is safe for concurrent use within one process. It is not safe
// for uncoordinated writers from multiple processes; one manifest per sync
// root avoids that.
type Manifest struct {
	root string
	path string

	mu    sync.Mutex
	doc   manifestDoc
	dirty bool
}

// NewManifest creates a manifest for the given sync root. Call Load before
// first use.
func NewManifest(root string) *Manifest {
	return &Manifest{
		root: root,
		path: filepath.Join(root, ManifestName),
	}
}

// Load reads the manifest document from disk. A missing file yields a fresh
// empty manifest. An unparseable file is renamed aside with a timestamp
// suffix and replaced by an empty manifest: bookkeeping is lost, tracked
// files are not.
func (m *Manifest) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			m.reset()
			return nil
		}
		return fmt.Errorf("read manifest: %w", err)
	}

	var doc manifestDoc
	if err := jsonUnmarshal(data, &doc); err != nil {
		backup := fmt.Sprintf("%s.corrupt.%s", m.path, time.Now().Format("20060102150405"))
		slog.Warn("manifest is corrupt, resetting", "path", m.path, "backup", backup, "error", err)
		if renameErr := os.Rename(m.path, backup); renameErr != nil {
			return fmt.Errorf("back up corrupt manifest: %w", renameErr)
		}
		m.reset()
		m.dirty = true
		return nil
	}

	if doc.Files == nil {
		doc.Files = make(map[string]*ManifestEntry)
	}
	m.doc = doc
	m.dirty = false
	return nil
}

func (m *Manifest) reset() {
	now := isoNow()
	m.doc = manifestDoc{
		Version: manifestVersion,
		Metadata: manifestMetadata{
			Created:     now,
			LastUpdated: now,
		},
		Files: make(map[string]*ManifestEntry),
	}
}

// Get returns the entry for a path, or nil if untracked.
func (m *Manifest) Get(relPath string) *ManifestEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Files[utils.NormPath(relPath)]
}

// Len returns the number of tracked paths.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.doc.Files)
}

// FileChanged reports whether the file's content differs from the last
// synced state. hash may be a precomputed 32-hex digest; when empty the file
// under the sync root is hashed. Untracked paths and unreadable files count
// as changed.
func (m *Manifest) FileChanged(relPath, hash string) bool {
	relPath = utils.NormPath(relPath)

	m.mu.Lock()
	entry, ok := m.doc.Files[relPath]
	m.mu.Unlock()
	if !ok {
		return true
	}

	if hash == "" {
		computed, err := utils.FileHash(filepath.Join(m.root, relPath))
		if err != nil {
			return true
		}
		hash = computed
	}

	return hash != entry.Hash
}

// DBChanged reports whether the board-side entity moved past the marker we
// last synced. Untracked paths and entries without a stored marker count as
// changed.
func (m *Manifest) DBChanged(relPath string, dateline int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.doc.Files[utils.NormPath(relPath)]
	if !ok {
		return true
	}
	if entry.DBDateline == nil {
		return true
	}
	return dateline > *entry.DBDateline
}

// SyncAction computes what a path needs from the two-sided change check.
// Both sides changed means conflict, which callers must surface rather than
// resolve.
//
// When no dateline is supplied (<= 0) the db side is assumed unchanged, so
// a brand-new untracked file resolves to ActionToDB rather than
// ActionConflict. Callers that can supply a dateline should always do so.
func (m *Manifest) SyncAction(relPath, hash string, dateline int64) SyncAction {
	fileChanged := m.FileChanged(relPath, hash)
	dbChanged := dateline > 0 && m.DBChanged(relPath, dateline)

	switch {
	case fileChanged && dbChanged:
		return ActionConflict
	case fileChanged:
		return ActionToDB
	case dbChanged:
		return ActionFromDB
	default:
		return ActionNone
	}
}

// UpdateFile records a successful sync of relPath. hash may be precomputed;
// when empty the file is hashed from disk. Size and mtime are taken from the
// file on disk. The manifest is marked dirty; call Save to persist.
func (m *Manifest) UpdateFile(relPath, hash string, direction SyncDirection, link *DBLink) error {
	relPath = utils.NormPath(relPath)
	absPath := filepath.Join(m.root, relPath)

	if hash == "" {
		computed, err := utils.FileHash(absPath)
		if err != nil {
			return fmt.Errorf("hash %s: %w", relPath, err)
		}
		hash = computed
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}

	entry := &ManifestEntry{
		Hash:          hash,
		Size:          info.Size(),
		Mtime:         float64(info.ModTime().UnixNano()) / 1e9,
		LastSync:      isoNow(),
		SyncDirection: direction,
	}
	if link != nil {
		entry.DBEntityType = &link.EntityType
		entry.DBEntityID = &link.EntityID
		entry.DBSid = &link.SID
		entry.DBDateline = &link.Dateline
	}

	m.mu.Lock()
	m.doc.Files[relPath] = entry
	m.dirty = true
	m.mu.Unlock()
	return nil
}

// RemoveFile drops a path from the manifest. Returns false if it was not
// tracked.
func (m *Manifest) RemoveFile(relPath string) bool {
	relPath = utils.NormPath(relPath)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.doc.Files[relPath]; !ok {
		return false
	}
	delete(m.doc.Files, relPath)
	m.dirty = true
	return true
}

// TrackedFiles returns all tracked paths, sorted.
func (m *Manifest) TrackedFiles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.doc.Files))
	for path := range m.doc.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// FindDeletedFiles returns tracked paths missing from the given set of
// currently existing paths.
func (m *Manifest) FindDeletedFiles(current []string) []string {
	existing := mapset.NewSetWithSize[string](len(current))
	for _, path := range current {
		existing.Add(utils.NormPath(path))
	}

	var deleted []string
	for _, path := range m.TrackedFiles() {
		if !existing.Contains(path) {
			deleted = append(deleted, path)
		}
	}
	return deleted
}

// Save persists the manifest if it has unsaved changes. The write goes to a
// sibling temp file first and is renamed into place, so a crash mid-write
// never corrupts the previous valid manifest.
func (m *Manifest) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	m.doc.Metadata.LastUpdated = isoNow()
	m.doc.Metadata.TotalFiles = len(m.doc.Files)

	data, err := jsonMarshalIndent(m.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err := utils.WriteFileAtomic(m.path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	m.dirty = false
	slog.Debug("manifest saved", "path", m.path, "files", m.doc.Metadata.TotalFiles)
	return nil
}

func isoNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
