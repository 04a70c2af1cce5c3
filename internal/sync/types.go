package sync

import (
	"time"

	"github.com/google/uuid"
)

// EntityKind identifies what a tracked path maps to in the board database.
type EntityKind string

const (
	KindTemplate   EntityKind = "template"
	KindStylesheet EntityKind = "stylesheet"
	KindUnknown    EntityKind = "unknown"
)

// EntityDescriptor is the logical identity behind a tracked disk path.
// Group is only meaningful for templates.
type EntityDescriptor struct {
	Kind      EntityKind
	Container string
	Group     string
	Name      string
}

// SyncDirection records which way the last successful sync flowed.
type SyncDirection string

const (
	DirectionToDB   SyncDirection = "to_db"
	DirectionFromDB SyncDirection = "from_db"
)

// SyncAction is the manifest's verdict on what a path needs.
type SyncAction string

const (
	ActionNone     SyncAction = "none"
	ActionToDB     SyncAction = "to_db"
	ActionFromDB   SyncAction = "from_db"
	ActionConflict SyncAction = "conflict"
)

// WorkItem is one validated disk change waiting to be imported.
type WorkItem struct {
	ID         uuid.UUID
	Desc       EntityDescriptor
	RelPath    string
	Content    []byte
	EnqueuedAt time.Time
}

// ExportResult summarizes one bulk export run. Conflicts lists entities
// whose local file and board row both changed since the last sync; their
// files were left untouched.
type ExportResult struct {
	Container string         `json:"container"`
	Written   []string       `json:"written"`
	Skipped   []string       `json:"skipped"`
	Conflicts []string       `json:"conflicts,omitempty"`
	Groups    map[string]int `json:"groups,omitempty"`
}

// Status is the engine's externally visible state.
type Status struct {
	WatcherRunning bool     `json:"watcher_running"`
	Paused         bool     `json:"paused"`
	SyncRoot       string   `json:"sync_root"`
	BoardURL       string   `json:"board_url"`
	QueueLength    int      `json:"queue_length"`
	TrackedFiles   int      `json:"tracked_files"`
	DeletedFiles   []string `json:"deleted_files,omitempty"`
}
