// Package inproc runs ingestion tasks on a local worker pool when no
// message broker is configured.
package inproc

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// Pool is a bounded task queue served by a fixed number of goroutines.
type Pool struct {
	tasks   chan string
	workers int

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup
}

func NewPool(workers, capacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &Pool{tasks: make(chan string, capacity), workers: workers}
}

// PublishTask enqueues without blocking; a full queue is a temporary error.
func (p *Pool) PublishTask(ctx context.Context, taskID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.tasks <- taskID:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "enqueue task", errors.New("ingest queue is full"))
	}
}

// Start launches the workers once. They stop when ctx is done.
func (p *Pool) Start(ctx context.Context, handler func(context.Context, string) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-p.tasks:
					if err := handler(ctx, id); err != nil {
						slog.Error("task_handler_failed", "task_id", id, "worker", worker, "error", err)
					}
				}
			}
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
