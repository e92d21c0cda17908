// Package jobs contains the background work driven by inbound webhooks: the
// PR mirror reconciler and the review ingestion pipeline, plus the worker
// pool that runs them.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmartinezh97/reviewrelay/internal/core"
)

// Dispatcher implements core.Dispatcher with a bounded queue and a pool of
// worker goroutines. The webhook handlers respond 202 as soon as a task is
// queued; failures inside a task are only ever observable through logs.
// Stop is deliberately not part of the core interface so only the owning
// app can drain the pool.
type Dispatcher struct {
	taskQueue  chan core.Task
	maxWorkers int
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool. If maxWorkers
// is 0 or negative, it defaults to 1.
func NewDispatcher(maxWorkers int, logger *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &Dispatcher{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan core.Task, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *Dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

func (d *Dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting bridge worker", "id", workerID)

	for task := range d.taskQueue {
		d.processTask(workerID, task)
	}

	d.logger.Info("shutting down bridge worker", "id", workerID)
}

func (d *Dispatcher) processTask(workerID int, task core.Task) {
	d.logger.Info("worker processing task",
		"worker_id", workerID,
		"kind", task.Kind,
		"repo", task.Repo,
	)

	if err := task.Run(context.Background()); err != nil {
		d.logger.Error("bridge task failed",
			"kind", task.Kind,
			"repo", task.Repo,
			"error", err,
		)
	}
}

// Dispatch queues a task for processing by a worker. It fails fast when the
// queue is full instead of blocking the webhook response.
func (d *Dispatcher) Dispatch(_ context.Context, task core.Task) error {
	select {
	case d.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full, cannot accept %s task", task.Kind)
	}
}

// Stop gracefully shuts down the dispatcher, waiting for queued tasks to
// finish.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for tasks to finish")
	close(d.taskQueue)
	d.wg.Wait()
	d.logger.Info("all bridge tasks have finished")
}
