package analysis

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finledger/backend/internal/metrics"
	"github.com/finledger/backend/internal/models"
)

// Dispatcher enqueues analysis requests for newly written records.
type Dispatcher struct {
	queue Publisher
	log   zerolog.Logger
}

func NewDispatcher(queue Publisher, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		queue: queue,
		log:   log,
	}
}

// Dispatch builds a request from the record and enqueues it.
//
// Dispatch never fails the triggering mutation: enqueue errors are
// logged and counted, then dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, record models.TransactionRecord) {
	request := Request{
		ID:        uuid.New().String(),
		AccountID: record.AccountID,
		Text:      RecordPrompt(record),
	}

	err := d.queue.Publish(ctx, request)
	if err != nil {
		metrics.AnalysisDispatchFailures.Inc()
		d.log.Error().
			Err(err).
			Uint64("account-id", request.AccountID).
			Msg("could not dispatch analysis request")
		return
	}

	metrics.AnalysisDispatches.Inc()
	d.log.Info().
		Str("request-id", request.ID).
		Uint64("account-id", request.AccountID).
		Msg("analysis request dispatched")
}
