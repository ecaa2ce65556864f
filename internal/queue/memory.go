package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// MemoryQueue is a bounded in-process queue drained by a fixed worker pool.
// Jobs are lost on process exit; use the RabbitMQ backend when that matters.
type MemoryQueue struct {
	jobs    chan Job
	handler Handler
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMemoryQueue starts workers goroutines that run h for every enqueued job.
// buffer bounds the number of jobs waiting for a worker.
func NewMemoryQueue(workers, buffer int, h Handler, log zerolog.Logger) *MemoryQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &MemoryQueue{
		jobs:    make(chan Job, buffer),
		handler: h,
		log:     log.With().Str("component", "queue").Str("driver", "memory").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work(i)
	}
	return q
}

// Enqueue hands job to the pool without blocking. It fails with ErrFull when
// the buffer is exhausted and ErrClosed after Close.
func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		queueDepth.WithLabelValues("memory").Inc()
		return nil
	default:
		return ErrFull
	}
}

// Close stops accepting jobs and waits for queued and in-flight jobs to
// finish. When ctx expires first, running handlers see their context
// cancelled and Close returns ctx.Err().
func (q *MemoryQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *MemoryQueue) work(id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		queueDepth.WithLabelValues("memory").Dec()
		if err := q.run(job); err != nil {
			jobsHandled.WithLabelValues("memory", "error").Inc()
			q.log.Error().Err(err).
				Int("worker", id).
				Str("job_id", job.ID).
				Str("message_id", job.MessageID).
				Msg("dispatch job failed")
			continue
		}
		jobsHandled.WithLabelValues("memory", "ok").Inc()
	}
}

// run invokes the handler, converting a panic into an error so one bad job
// cannot take a worker down.
func (q *MemoryQueue) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return q.handler(q.ctx, job)
}
