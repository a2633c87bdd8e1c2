package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finledger/backend/internal/metrics"
	"github.com/finledger/backend/internal/models"
	"github.com/finledger/backend/internal/pubsub"
)

// DefaultWindowDays is the trailing window used as analysis context.
const DefaultWindowDays = 10

// RecordSource provides the recent-window read the worker needs as
// analysis context. The read happens at consumption time against the
// current ledger state.
type RecordSource interface {
	RecordsWithinDays(ctx context.Context, accountID uint64, days int) ([]models.TransactionRecord, error)
}

// Worker consumes analysis requests, runs the analyser and publishes
// the result to the account's topic.
//
// Requests are processed independently: there is no ordering across
// requests for the same account.
type Worker struct {
	queue      Consumer
	records    RecordSource
	analyser   Analyser
	results    pubsub.Publisher
	windowDays int
	log        zerolog.Logger
}

func NewWorker(queue Consumer, records RecordSource, analyser Analyser, results pubsub.Publisher, windowDays int, log zerolog.Logger) *Worker {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}

	return &Worker{
		queue:      queue,
		records:    records,
		analyser:   analyser,
		results:    results,
		windowDays: windowDays,
		log:        log,
	}
}

// Start begins consuming from the queue on the worker's own goroutines.
func (w *Worker) Start(ctx context.Context) error {
	return w.queue.Start(ctx, w.Handle)
}

// Stop stops consuming and waits for in-flight requests.
func (w *Worker) Stop(ctx context.Context) error {
	return w.queue.Stop(ctx)
}

// Handle processes a single request.
func (w *Worker) Handle(ctx context.Context, request Request) error {
	w.log.Info().
		Str("request-id", request.ID).
		Uint64("account-id", request.AccountID).
		Msg("received analysis request")

	records, err := w.records.RecordsWithinDays(ctx, request.AccountID, w.windowDays)
	if err != nil {
		return fmt.Errorf("loading recent records for account %d: %w", request.AccountID, err)
	}

	result, err := w.analyser.Analyse(ctx, request.Text, WindowPrompt(records))
	if err != nil {
		return fmt.Errorf("analysing record for account %d: %w", request.AccountID, err)
	}

	topic := pubsub.ResultTopic(request.AccountID)
	err = w.results.Publish(ctx, topic, result)
	if err != nil {
		// Message loss on the result channel is accepted: no retry, no
		// nack, the failure only shows up in logs and metrics.
		metrics.AnalysisPublishFailures.Inc()
		w.log.Error().
			Err(err).
			Str("topic", topic).
			Msg("could not publish analysis result")
		return nil
	}

	w.log.Info().
		Str("request-id", request.ID).
		Str("topic", topic).
		Msg("analysis result published")

	return nil
}
