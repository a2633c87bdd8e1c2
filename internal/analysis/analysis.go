// Package analysis implements the asynchronous AI-analysis side channel.
//
// After a record is written to the ledger, a Request is enqueued for a
// separate consumer which re-derives the account's recent window,
// invokes the analyser and publishes the result to a per-account topic.
// The channel is at-most-once end to end: loss is tolerable, duplicates
// must be tolerated (the analysis has no side effects on the ledger).
package analysis

import (
	"context"
)

// Request is the message carried by the analysis queue.
type Request struct {
	ID        string `json:"id"`
	AccountID uint64 `json:"accountId"`
	Text      string `json:"text"`
}

// Handler processes one request. Returned errors are logged by the
// queue; they do not trigger a retry.
type Handler func(ctx context.Context, request Request) error

// Publisher enqueues analysis requests.
//
// Implementations are expected to be at-most-once: they must not block
// the mutation path that triggered the enqueue.
type Publisher interface {
	Publish(ctx context.Context, request Request) error
	Close() error
}

// Consumer receives analysis requests from a queue.
type Consumer interface {
	// Start begins consuming requests. The handler is called for each
	// request received, possibly concurrently.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight requests.
	Stop(ctx context.Context) error
}

// Analyser produces an analysis of the current record given the
// account's recent records as context.
//
// It is treated as an opaque, possibly slow function. It must not have
// side effects on the ledger.
type Analyser interface {
	Analyse(ctx context.Context, currentRecord, recentRecords string) (string, error)
}

// Func adapts a plain function to the Analyser interface.
type Func func(ctx context.Context, currentRecord, recentRecords string) (string, error)

func (f Func) Analyse(ctx context.Context, currentRecord, recentRecords string) (string, error) {
	return f(ctx, currentRecord, recentRecords)
}
