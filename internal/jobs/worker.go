// Package jobs runs periodic background maintenance, currently cache
// warming, off the request path.
package jobs

import (
	"context"
	"log"
	"time"
)

// JobProcessor is one unit of periodic work, such as a catalog-wide cache
// warming pass.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker runs a JobProcessor on a fixed interval until stopped. A failed
// pass is logged and the loop keeps going; the next tick retries.
type Worker struct {
	processor JobProcessor
	interval  time.Duration
	stop      chan struct{}
	done      chan struct{}
}

// NewWorker creates a worker that runs processor every interval.
func NewWorker(processor JobProcessor, interval time.Duration) *Worker {
	return &Worker{
		processor: processor,
		interval:  interval,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the polling loop. It blocks until Stop is called or ctx is
// cancelled, so callers run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.done)

	log.Printf("jobs: worker started, running every %v", w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("jobs: worker stopped: context cancelled")
			return
		case <-w.stop:
			log.Println("jobs: worker stopped")
			return
		case <-ticker.C:
			if err := w.processor.ProcessJobs(ctx); err != nil {
				log.Printf("jobs: pass failed: %v", err)
			}
		}
	}
}

// Stop signals the loop to exit and waits for the current pass to finish.
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
}
