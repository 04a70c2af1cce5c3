package sync

import (
	"context"
	"log/slog"
	"sync"

	"github.com/syncforge/themesync/internal/queue"
)

// Processor is the single consumer draining the work queue into the
// importer. While the pause gate is held, items accumulate in the queue
// instead of being dropped; resume drains them in FIFO order. A failing item
// is logged and skipped, never aborting the loop.
type Processor struct {
	workQueue *queue.Queue[*WorkItem]
	importer  *Importer

	mu     sync.Mutex
	paused bool
	gate   chan struct{} // closed while running, open (blocking) while paused

	done chan struct{}
	wg   sync.WaitGroup
}

// NewProcessor creates a processor for the given queue and importer.
func NewProcessor(workQueue *queue.Queue[*WorkItem], importer *Importer) *Processor {
	gate := make(chan struct{})
	close(gate)
	return &Processor{
		workQueue: workQueue,
		importer:  importer,
		gate:      gate,
		done:      make(chan struct{}),
	}
}

// Pause holds the gate so no further items are drained. Idempotent.
func (p *Processor) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return
	}
	p.paused = true
	p.gate = make(chan struct{})
	slog.Debug("processor paused")
}

// Resume releases the gate and lets the consumer drain whatever queued up.
// Idempotent.
func (p *Processor) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		return
	}
	p.paused = false
	close(p.gate)
	slog.Debug("processor resumed")
}

// Hold pauses the processor and returns a release func that restores the
// gate to the state Hold found it in. A release inside an operator-requested
// pause leaves the processor paused; the operator's later Resume still wins.
func (p *Processor) Hold() func() {
	p.mu.Lock()
	wasPaused := p.paused
	if !wasPaused {
		p.paused = true
		p.gate = make(chan struct{})
		slog.Debug("processor paused")
	}
	p.mu.Unlock()

	return func() {
		if !wasPaused {
			p.Resume()
		}
	}
}

// Paused reports whether the gate is currently held.
func (p *Processor) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Processor) gateChan() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gate
}

// Start launches the consumer loop.
func (p *Processor) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the consumer to exit and waits for the item currently being
// processed to finish. Remaining queued items stay in the queue.
func (p *Processor) Stop() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	p.wg.Wait()
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()
	slog.Debug("processor start")

	for {
		// Block while the gate is held.
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.gateChan():
		}

		// Drain everything currently queued.
		for !p.Paused() {
			item, ok := p.workQueue.Dequeue()
			if !ok {
				break
			}
			p.process(ctx, item)

			select {
			case <-ctx.Done():
				return
			case <-p.done:
				return
			default:
			}
		}

		if p.Paused() {
			continue
		}

		// Queue empty; wait for the next item, a pause or shutdown.
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-p.workQueue.Ready():
		}
	}
}

func (p *Processor) process(ctx context.Context, item *WorkItem) {
	if err := p.importer.Import(ctx, item); err != nil {
		slog.Error("import failed", "path", item.RelPath, "id", item.ID, "error", err)
		return
	}
	slog.Info("imported", "path", item.RelPath, "kind", item.Desc.Kind)
}
