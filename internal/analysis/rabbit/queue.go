// Package rabbit is the RabbitMQ-backed implementation of the analysis
// queue for deployments with more than one instance.
package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/finledger/backend/internal/analysis"
)

// QueueName is the single named channel carrying analysis requests.
const QueueName = "new.record.to.ai.analyser"

var ErrClosed = errors.New("queue is closed")

// Queue publishes and consumes analysis requests over AMQP.
//
// Messages are consumed with auto-ack, so delivery is at-most-once: a
// request that fails mid-handling is not redelivered.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	name    string

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Dial connects to the broker and declares the analysis queue.
func Dial(url string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	_, err = channel.QueueDeclare(QueueName, true, false, false, false, nil)
	if err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", QueueName, err)
	}

	return &Queue{
		conn:    conn,
		channel: channel,
		name:    QueueName,
	}, nil
}

// Publish implements the analysis.Publisher interface.
func (q *Queue) Publish(ctx context.Context, request analysis.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshalling analysis request: %w", err)
	}

	err = q.channel.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publishing analysis request: %w", err)
	}

	return nil
}

// Start implements the analysis.Consumer interface.
func (q *Queue) Start(ctx context.Context, handler analysis.Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	// auto-ack: the broker forgets the message on delivery
	deliveries, err := q.channel.Consume(q.name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming from queue %s: %w", q.name, err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					return
				}

				var request analysis.Request
				if err := json.Unmarshal(delivery.Body, &request); err != nil {
					log.Error().Err(err).Msg("discarding malformed analysis request")
					continue
				}

				// Handle concurrently so one slow analysis does not
				// serialize all accounts.
				q.wg.Add(1)
				go func() {
					defer q.wg.Done()

					if err := handler(ctx, request); err != nil {
						log.Error().
							Err(err).
							Str("request-id", request.ID).
							Msg("analysis request failed")
					}
				}()
			}
		}
	}()

	return nil
}

// Stop implements the analysis.Consumer interface.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	if err := q.channel.Close(); err != nil {
		log.Error().Err(err).Msg("closing AMQP channel")
	}
	if err := q.conn.Close(); err != nil {
		log.Error().Err(err).Msg("closing AMQP connection")
	}

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

var (
	_ analysis.Publisher = (*Queue)(nil)
	_ analysis.Consumer  = (*Queue)(nil)
)
