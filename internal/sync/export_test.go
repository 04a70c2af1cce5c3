package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncforge/themesync/internal/board"
)

func newTestExporter(t *testing.T) (*Exporter, *sqlx.DB, *Manifest, string) {
	t.Helper()

	boardDB, store := newTestBoard(t)
	root := t.TempDir()

	manifest := NewManifest(root)
	require.NoError(t, manifest.Load())

	exporter := NewExporter(store, manifest, NewClassifier(store), root, nil)
	return exporter, boardDB, manifest, root
}

func TestExportTemplateSetFirstRun(t *testing.T) {
	exporter, boardDB, manifest, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>header v1</div>", sid, 1000, "1.0")
	seedTemplate(t, boardDB, "footer", "<div>footer v1</div>", sid, 1000, "1.0")

	result, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"header", "footer"}, result.Written)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, map[string]int{"Header": 1, "Footer": 1}, result.Groups)

	headerPath := filepath.Join(root, "template_sets/Default/Header/header.html")
	data, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	assert.Equal(t, "<div>header v1</div>", string(data))

	assert.Equal(t, 2, manifest.Len())
	for _, rel := range manifest.TrackedFiles() {
		entry := manifest.Get(rel)
		assert.Equal(t, DirectionFromDB, entry.SyncDirection)
		require.NotNil(t, entry.DBDateline)
		assert.Equal(t, int64(1000), *entry.DBDateline)
	}
}

func TestExportTemplateSetIdempotent(t *testing.T) {
	exporter, boardDB, manifest, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>header v1</div>", sid, 1000, "1.0")
	seedTemplate(t, boardDB, "footer", "<div>footer v1</div>", sid, 1000, "1.0")

	first, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	require.Len(t, first.Written, 2)

	hashesBefore := map[string]string{}
	for _, rel := range manifest.TrackedFiles() {
		hashesBefore[rel] = manifest.Get(rel).Hash
	}

	second, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	assert.Empty(t, second.Written)
	assert.Len(t, second.Skipped, 2)

	for _, rel := range manifest.TrackedFiles() {
		assert.Equal(t, hashesBefore[rel], manifest.Get(rel).Hash)
		data, err := os.ReadFile(filepath.Join(root, rel))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	}
}

func TestExportTemplateSetDatelineBump(t *testing.T) {
	exporter, boardDB, _, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>header v1</div>", sid, 1000, "1.0")
	seedTemplate(t, boardDB, "footer", "<div>footer v1</div>", sid, 1000, "1.0")

	_, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)

	_, err = boardDB.Exec(
		"UPDATE templates SET template = ?, dateline = ? WHERE title = ?",
		"<div>header v2</div>", 2000, "header")
	require.NoError(t, err)

	result, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	assert.Equal(t, []string{"header"}, result.Written)
	assert.Equal(t, []string{"footer"}, result.Skipped)

	data, err := os.ReadFile(filepath.Join(root, "template_sets/Default/Header/header.html"))
	require.NoError(t, err)
	assert.Equal(t, "<div>header v2</div>", string(data))
}

func TestExportTemplateSetMasterUnion(t *testing.T) {
	exporter, boardDB, _, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>master header</div>", board.MasterTemplateSet, 100, "1.0")
	seedTemplate(t, boardDB, "footer", "<div>master footer</div>", board.MasterTemplateSet, 100, "1.0")
	// Set-specific override wins over the master copy.
	seedTemplate(t, boardDB, "header", "<div>custom header</div>", sid, 200, "1.0")

	result, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	assert.Len(t, result.Written, 2)

	data, err := os.ReadFile(filepath.Join(root, "template_sets/Default/Header/header.html"))
	require.NoError(t, err)
	assert.Equal(t, "<div>custom header</div>", string(data))
}

func TestExportTemplateSetNotFound(t *testing.T) {
	exporter, _, _, _ := newTestExporter(t)

	_, err := exporter.ExportTemplateSet(context.Background(), "Nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, board.ErrNotFound))
}

func TestExportTheme(t *testing.T) {
	exporter, boardDB, manifest, root := newTestExporter(t)

	parent := seedTheme(t, boardDB, "Base", 0)
	child := seedTheme(t, boardDB, "Midnight", parent)
	seedStylesheet(t, boardDB, "global", parent, "body{color:black}", "", 100)
	seedStylesheet(t, boardDB, "usercp", parent, ".cp{}", "usercp.php", 100)
	// Child override of global wins.
	seedStylesheet(t, boardDB, "global", child, "body{color:white}", "", 200)

	result, err := exporter.ExportTheme(context.Background(), "Midnight")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"global", "usercp"}, result.Written)

	data, err := os.ReadFile(filepath.Join(root, "styles/Midnight/global.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{color:white}", string(data))

	data, err = os.ReadFile(filepath.Join(root, "styles/Midnight/usercp.css"))
	require.NoError(t, err)
	assert.Equal(t, ".cp{}", string(data))

	assert.Equal(t, 2, manifest.Len())
}

func TestExportThemeIdempotent(t *testing.T) {
	exporter, boardDB, _, _ := newTestExporter(t)

	tid := seedTheme(t, boardDB, "Plain", 0)
	seedStylesheet(t, boardDB, "global", tid, "body{}", "", 100)

	first, err := exporter.ExportTheme(context.Background(), "Plain")
	require.NoError(t, err)
	assert.Len(t, first.Written, 1)

	second, err := exporter.ExportTheme(context.Background(), "Plain")
	require.NoError(t, err)
	assert.Empty(t, second.Written)
	assert.Equal(t, []string{"global"}, second.Skipped)
}

func TestExportThemeNotFound(t *testing.T) {
	exporter, _, _, _ := newTestExporter(t)

	_, err := exporter.ExportTheme(context.Background(), "Nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, board.ErrNotFound))
}

func TestExportRewritesLocallyEditedFile(t *testing.T) {
	exporter, boardDB, _, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>db truth</div>", sid, 1000, "1.0")

	_, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)

	// Tamper with the exported file; a re-export restores the db content.
	rel := "template_sets/Default/Header/header.html"
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte("local edit"), 0o644))

	result, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	assert.Equal(t, []string{"header"}, result.Written)

	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	assert.Equal(t, "<div>db truth</div>", string(data))
}

func TestExportTemplateSetConflictKeepsLocalEdit(t *testing.T) {
	exporter, boardDB, manifest, root := newTestExporter(t)

	sid := seedSet(t, boardDB, "Default")
	seedTemplate(t, boardDB, "header", "<div>v1</div>", sid, 1000, "1.0")

	_, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)

	// Both sides move: the exported file is edited locally and the board row
	// advances past the synced marker.
	rel := "template_sets/Default/Header/header.html"
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte("<div>local edit</div>"), 0o644))
	_, err = boardDB.Exec(
		"UPDATE templates SET template = ?, dateline = ? WHERE title = ?",
		"<div>v2</div>", 2000, "header")
	require.NoError(t, err)

	result, err := exporter.ExportTemplateSet(context.Background(), "Default")
	require.NoError(t, err)
	assert.Empty(t, result.Written)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, []string{"header"}, result.Conflicts)

	// The local edit survives and the manifest still points at the last
	// successful sync, so the conflict stays detectable.
	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	assert.Equal(t, "<div>local edit</div>", string(data))

	entry := manifest.Get(rel)
	require.NotNil(t, entry)
	require.NotNil(t, entry.DBDateline)
	assert.Equal(t, int64(1000), *entry.DBDateline)
	assert.Equal(t, ActionConflict, manifest.SyncAction(rel, "", 2000))
}

func TestExportThemeConflictKeepsLocalEdit(t *testing.T) {
	exporter, boardDB, _, root := newTestExporter(t)

	tid := seedTheme(t, boardDB, "Plain", 0)
	ssid := seedStylesheet(t, boardDB, "global", tid, "body{v1}", "", 100)

	_, err := exporter.ExportTheme(context.Background(), "Plain")
	require.NoError(t, err)

	rel := "styles/Plain/global.css"
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte("body{local}"), 0o644))
	_, err = boardDB.Exec(
		"UPDATE themestylesheets SET stylesheet = ?, lastmodified = ? WHERE sid = ?",
		"body{v2}", 200, ssid)
	require.NoError(t, err)

	result, err := exporter.ExportTheme(context.Background(), "Plain")
	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, result.Conflicts)
	assert.Empty(t, result.Written)

	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	assert.Equal(t, "body{local}", string(data))
}
