// Package memqueue is a channel-backed, in-process implementation of the
// analysis queue. It is suitable for single-instance deployments and
// tests; brokered deployments use the rabbit package instead.
package memqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/finledger/backend/internal/analysis"
	"github.com/finledger/backend/internal/metrics"
)

var (
	ErrClosed = errors.New("queue is closed")
	ErrFull   = errors.New("queue is full")
)

// Queue distributes analysis requests over a buffered channel.
// It is safe for concurrent use.
//
// Delivery is at-most-once: when the buffer is full, Publish drops the
// request instead of blocking the mutation path that produced it.
type Queue struct {
	requests  chan analysis.Request
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

// New creates an in-process queue. bufferSize determines how many
// requests can be pending before further ones are dropped; workers is
// the number of concurrent consumer goroutines Start spawns.
func New(bufferSize, workers int) *Queue {
	if workers <= 0 {
		workers = 1
	}

	return &Queue{
		requests:  make(chan analysis.Request, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
	}
}

// Publish implements the analysis.Publisher interface.
func (q *Queue) Publish(_ context.Context, request analysis.Request) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	if request.ID == "" {
		request.ID = uuid.New().String()
	}

	select {
	case q.requests <- request:
		return nil
	default:
		metrics.AnalysisRequestsDropped.Inc()
		return ErrFull
	}
}

// Start implements the analysis.Consumer interface. The handler is
// called concurrently by up to the configured number of workers.
func (q *Queue) Start(ctx context.Context, handler analysis.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

// worker processes requests from the queue.
func (q *Queue) worker(ctx context.Context, handler analysis.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case request := <-q.requests:
			// No retry and no nack: the request is gone after this
			// attempt regardless of the outcome.
			if err := handler(ctx, request); err != nil {
				log.Error().
					Err(err).
					Str("request-id", request.ID).
					Msg("analysis request failed")
			}
		}
	}
}

// Stop implements the analysis.Consumer interface. It stops the workers
// and waits for in-flight requests to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the analysis.Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	return len(q.requests)
}

var (
	_ analysis.Publisher = (*Queue)(nil)
	_ analysis.Consumer  = (*Queue)(nil)
)
