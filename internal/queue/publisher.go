package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
)

// Publisher delivers events to the booking core's outbound queues. Each
// publish dials a fresh connection and declares the target queue, so the
// publisher never carries broker state between calls and survives broker
// restarts without reconnect bookkeeping. Errors are logged and returned;
// callers treat notification publishes as best-effort.
type Publisher struct {
	url string
}

// NewPublisher builds a publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PublishBookingStateChanged emits a lifecycle notification to the
// booking.state-changed queue.
func (p *Publisher) PublishBookingStateChanged(ctx context.Context, ev BookingStateChangedEvent) error {
	return p.publish(ctx, BookingStateQueue, ev)
}

// PublishRefundRequested emits a refund obligation to refund.requested.
// These are not mere notifications, the Payment collaborator must act on
// them, so the message is persistent and the queue durable.
func (p *Publisher) PublishRefundRequested(ctx context.Context, ev RefundRequestedEvent) error {
	return p.publish(ctx, RefundRequestQueue, ev)
}

func (p *Publisher) publish(ctx context.Context, queueName string, ev any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		logger.Error("amqp dial failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("amqp channel open failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		logger.Error("amqp queue declare failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		logger.Error("amqp event marshal failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		logger.Error("amqp publish failed", zap.String("queue", queueName), zap.Error(err))
		return err
	}
	return nil
}
