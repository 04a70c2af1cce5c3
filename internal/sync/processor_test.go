package sync

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncforge/themesync/internal/queue"
)

func newTestProcessor(t *testing.T) (*Processor, *queue.Queue[*WorkItem], *sqlx.DB, string) {
	t.Helper()

	boardDB, store := newTestBoard(t)
	seedSet(t, boardDB, "Ghost")
	root := t.TempDir()

	manifest := NewManifest(root)
	require.NoError(t, manifest.Load())

	importer := NewImporter(store, manifest, nil)
	q := queue.New[*WorkItem]()
	return NewProcessor(q, importer), q, boardDB, root
}

func startProcessor(t *testing.T, p *Processor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	t.Cleanup(func() {
		p.Stop()
		cancel()
	})
}

func templateCount(t *testing.T, boardDB *sqlx.DB) int {
	t.Helper()
	var count int
	require.NoError(t, boardDB.Get(&count, "SELECT COUNT(*) FROM templates"))
	return count
}

func waitForTemplates(t *testing.T, boardDB *sqlx.DB, want int) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if templateCount(t, boardDB) == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %d templates, have %d", want, templateCount(t, boardDB))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestProcessorDrainsQueue(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)
	startProcessor(t, p)

	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>a</div>"))
	q.Enqueue(templateItem(t, root, "Ghost", "Footer", "footer", "<div>b</div>"))

	waitForTemplates(t, boardDB, 2)
	assert.Equal(t, 0, q.Len())
}

func TestProcessorPauseGate(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)
	startProcessor(t, p)

	p.Pause()
	assert.True(t, p.Paused())

	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>gated</div>"))

	// While paused the item accumulates and the importer is never called.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, templateCount(t, boardDB))
	assert.Equal(t, 1, q.Len())

	p.Resume()
	assert.False(t, p.Paused())

	waitForTemplates(t, boardDB, 1)
	assert.Equal(t, 0, q.Len())
}

func TestProcessorPauseResumeIdempotent(t *testing.T) {
	p, _, _, _ := newTestProcessor(t)
	startProcessor(t, p)

	p.Pause()
	p.Pause()
	assert.True(t, p.Paused())

	p.Resume()
	p.Resume()
	assert.False(t, p.Paused())
}

func TestProcessorItemFailureDoesNotAbortLoop(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)
	startProcessor(t, p)

	// A stylesheet for an unknown theme fails; the next item still runs.
	q.Enqueue(stylesheetItem(t, root, "NoSuchTheme", "broken", "body{}"))
	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>ok</div>"))

	waitForTemplates(t, boardDB, 1)
	assert.Equal(t, 0, q.Len())
}

func TestProcessorStopIsGraceful(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)

	p.Start(context.Background())

	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>x</div>"))
	waitForTemplates(t, boardDB, 1)

	p.Stop()
	p.Stop()

	// Items enqueued after stop stay queued instead of being dropped.
	q.Enqueue(templateItem(t, root, "Ghost", "Footer", "footer", "<div>y</div>"))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, templateCount(t, boardDB))
}

func TestProcessorHoldRestoresRunning(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)
	startProcessor(t, p)

	release := p.Hold()
	assert.True(t, p.Paused())

	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>held</div>"))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, templateCount(t, boardDB))

	release()
	assert.False(t, p.Paused())
	waitForTemplates(t, boardDB, 1)
}

func TestProcessorHoldKeepsOperatorPause(t *testing.T) {
	p, q, boardDB, root := newTestProcessor(t)
	startProcessor(t, p)

	p.Pause()
	release := p.Hold()
	release()

	// The operator's pause is still in force after the hold is released.
	assert.True(t, p.Paused())
	q.Enqueue(templateItem(t, root, "Ghost", "Header", "header", "<div>still gated</div>"))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, templateCount(t, boardDB))

	p.Resume()
	waitForTemplates(t, boardDB, 1)
}
