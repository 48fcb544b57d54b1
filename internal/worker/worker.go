// Package worker bridges RabbitMQ to the in-process send queue: it
// consumes outbound message requests published by the API service,
// validates them and enqueues a delivery job. Channel-level retries are
// the queue's responsibility; the consumer only decides ack vs nack.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rotadireta/automation/internal/domain"
	"github.com/rotadireta/automation/internal/queue"
	"github.com/rotadireta/automation/shared/rabbitmq"
)

// Enqueuer is the queue surface the consumer needs.
type Enqueuer interface {
	Enqueue(req queue.EnqueueRequest) string
}

// Config holds consumer configuration.
type Config struct {
	ConsumerTag   string
	PrefetchCount int
}

// Worker consumes outbound message requests from RabbitMQ.
type Worker struct {
	rabbitClient *rabbitmq.Client
	sendQueue    Enqueuer
	logger       *slog.Logger

	consumerTag   string
	prefetchCount int
}

// New creates a Worker.
func New(rabbitClient *rabbitmq.Client, sendQueue Enqueuer, cfg Config, logger *slog.Logger) *Worker {
	if cfg.PrefetchCount <= 0 {
		cfg.PrefetchCount = 1
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "outbound-worker"
	}

	return &Worker{
		rabbitClient:  rabbitClient,
		sendQueue:     sendQueue,
		logger:        logger,
		consumerTag:   cfg.ConsumerTag,
		prefetchCount: cfg.PrefetchCount,
	}
}

// Run consumes deliveries until the context is canceled or the
// delivery channel closes.
func (w *Worker) Run(ctx context.Context) error {
	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	w.logger.Info("Message consumer started",
		slog.String("consumer_tag", w.consumerTag),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message consumer stopped - context canceled")
			return nil

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			w.handleDelivery(ctx, delivery)
		}
	}
}

// setupConsumer configures QoS and starts consuming with manual acks.
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	channel := w.rabbitClient.GetChannel()
	if channel == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}

	if err := channel.Qos(w.prefetchCount, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.rabbitClient.Consume(w.consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return deliveries, nil
}

// handleDelivery processes one delivery and acks or nacks it based on
// the outcome. Malformed messages are nacked without requeue; retryable
// failures (shutdown mid-message) are nacked with requeue so another
// consumer picks them up.
func (w *Worker) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	if err := w.process(ctx, delivery.Body); err != nil {
		requeue := shouldRequeue(err)
		w.logger.Error("Failed to process outbound message",
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("error", nackErr.Error()),
			)
		}
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("error", ackErr.Error()),
		)
	}
}

// process validates the message and enqueues the send job.
func (w *Worker) process(ctx context.Context, body []byte) error {
	msg, err := parseOutboundMessage(body)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		// Shut down before enqueueing: hand the message back.
		return domain.NewRetryableError(fmt.Errorf("consumer shutting down: %w", ctx.Err()))
	default:
	}

	jobID := w.sendQueue.Enqueue(queue.EnqueueRequest{
		Channel:     msg.Channel,
		Destination: msg.Destination,
		Subject:     msg.Subject,
		Payload:     msg.Body,
	})

	w.logger.Info("Outbound message enqueued",
		slog.String("message_id", msg.MessageID),
		slog.String("job_id", jobID),
		slog.String("channel", msg.Channel),
	)

	return nil
}

// shouldRequeue keeps poison messages out of the queue: only errors
// marked retryable go back to RabbitMQ.
func shouldRequeue(err error) bool {
	var retryable *domain.RetryableError
	return errors.As(err, &retryable)
}
