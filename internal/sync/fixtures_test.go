package sync

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/syncforge/themesync/internal/board"
	"github.com/syncforge/themesync/internal/db"
)

// Minimal slice of the board schema the sync engine touches.
const boardSchema = `
CREATE TABLE templatesets (
    sid INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL UNIQUE
);
CREATE TABLE templates (
    tid INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    template TEXT NOT NULL,
    sid INTEGER NOT NULL,
    version TEXT NOT NULL DEFAULT '1.0',
    dateline INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE templategroups (
    gid INTEGER PRIMARY KEY AUTOINCREMENT,
    prefix TEXT NOT NULL,
    title TEXT NOT NULL
);
CREATE TABLE themes (
    tid INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    pid INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE themestylesheets (
    sid INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    tid INTEGER NOT NULL,
    stylesheet TEXT NOT NULL,
    attachedto TEXT NOT NULL DEFAULT '',
    lastmodified INTEGER NOT NULL DEFAULT 0
);
`

func newTestBoard(t *testing.T) (*sqlx.DB, *board.Store) {
	t.Helper()

	boardDB, err := db.NewSqliteDb(db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { boardDB.Close() })

	_, err = boardDB.Exec(boardSchema)
	require.NoError(t, err)

	return boardDB, board.NewStore(boardDB)
}

func seedSet(t *testing.T, boardDB *sqlx.DB, title string) int64 {
	t.Helper()
	res, err := boardDB.Exec("INSERT INTO templatesets (title) VALUES (?)", title)
	require.NoError(t, err)
	sid, err := res.LastInsertId()
	require.NoError(t, err)
	return sid
}

func seedTemplate(t *testing.T, boardDB *sqlx.DB, title, content string, sid, dateline int64, version string) int64 {
	t.Helper()
	res, err := boardDB.Exec(
		"INSERT INTO templates (title, template, sid, version, dateline) VALUES (?, ?, ?, ?, ?)",
		title, content, sid, version, dateline)
	require.NoError(t, err)
	tid, err := res.LastInsertId()
	require.NoError(t, err)
	return tid
}

func seedTheme(t *testing.T, boardDB *sqlx.DB, name string, pid int64) int64 {
	t.Helper()
	res, err := boardDB.Exec("INSERT INTO themes (name, pid) VALUES (?, ?)", name, pid)
	require.NoError(t, err)
	tid, err := res.LastInsertId()
	require.NoError(t, err)
	return tid
}

func seedStylesheet(t *testing.T, boardDB *sqlx.DB, name string, tid int64, content, attachedTo string, lastModified int64) int64 {
	t.Helper()
	res, err := boardDB.Exec(
		"INSERT INTO themestylesheets (name, tid, stylesheet, attachedto, lastmodified) VALUES (?, ?, ?, ?, ?)",
		name, tid, content, attachedTo, lastModified)
	require.NoError(t, err)
	sid, err := res.LastInsertId()
	require.NoError(t, err)
	return sid
}
