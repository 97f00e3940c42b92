// Package ingest runs the document pipeline: anonymize, chunk, embed, and
// commit to the knowledge store. A coordinator owns one bounded queue and one
// worker per source so a burst on one platform cannot starve the others.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paydesk/paydesk/pkg/config"
	"github.com/paydesk/paydesk/pkg/models"
)

// ErrQueueFull is returned by Submit when the source's lane is saturated.
// Webhook callers surface it as back-pressure to the platform's retry.
var ErrQueueFull = errors.New("ingestion queue full")

// Item is one unit of work enqueued by a collector.
type Item struct {
	Source   config.Source
	SourceID string
	Title    string
	Content  string
	Metadata map[string]any
}

// Coordinator fans items into per-source lanes. Stop drains in-flight work
// before returning.
type Coordinator struct {
	pipeline *Pipeline
	lanes    map[config.Source]chan Item
	wg       sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewCoordinator creates lanes for every known source and starts one worker
// per lane.
func NewCoordinator(pipeline *Pipeline, queueSize int) *Coordinator {
	if queueSize < 1 {
		queueSize = config.DefaultQueueSize
	}
	c := &Coordinator{
		pipeline: pipeline,
		lanes:    make(map[config.Source]chan Item),
	}
	for _, src := range config.AllSources() {
		lane := make(chan Item, queueSize)
		c.lanes[src] = lane
		c.wg.Add(1)
		go c.worker(src, lane)
	}
	slog.Info("Ingestion coordinator started", "lanes", len(c.lanes), "queue_size", queueSize)
	return c
}

// Submit enqueues an item without blocking. A full lane rejects the item.
func (c *Coordinator) Submit(item Item) error {
	lane, ok := c.lanes[item.Source]
	if !ok {
		return fmt.Errorf("unknown source %q", item.Source)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("ingestion is shutting down")
	}
	select {
	case lane <- item:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		return fmt.Errorf("%w: source %s", ErrQueueFull, item.Source)
	}
}

// ProcessSync runs the pipeline inline, bypassing the queues. Used by the
// admin upload path, which reports the outcome in its HTTP response.
func (c *Coordinator) ProcessSync(ctx context.Context, item Item) (*models.Document, error) {
	return c.pipeline.Process(ctx, item)
}

// QueueDepths reports current lane occupancy for the health endpoint.
func (c *Coordinator) QueueDepths() map[config.Source]int {
	out := make(map[config.Source]int, len(c.lanes))
	for src, lane := range c.lanes {
		out[src] = len(lane)
	}
	return out
}

// Stop closes the lanes and waits for workers to drain, bounded by the
// context deadline.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		for _, lane := range c.lanes {
			close(lane)
		}
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Ingestion coordinator drained")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ingestion drain interrupted: %w", ctx.Err())
	}
}

func (c *Coordinator) worker(src config.Source, lane chan Item) {
	defer c.wg.Done()
	for item := range lane {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		if _, err := c.pipeline.Process(ctx, item); err != nil {
			slog.Error("Ingestion failed",
				"source", src, "source_id", item.SourceID, "error", err)
		}
		cancel()
	}
}
