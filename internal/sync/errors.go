package sync

import (
	"errors"
)

var (
	// ErrEmptyContent rejects zero-byte content before it reaches the board.
	// Editors routinely truncate a file before writing the real bytes, so an
	// empty file is never treated as an intentional change.
	ErrEmptyContent = errors.New("content is empty")

	// ErrWatcherRunning is returned when starting an already started watcher.
	ErrWatcherRunning = errors.New("watcher already running")
)
