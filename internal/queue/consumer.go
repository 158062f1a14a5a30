package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/repository"
)

// Finalizer applies a payment outcome to the booking it references.
// Implemented by the confirmation service; declared here so the consumer
// does not depend on the service package.
type Finalizer interface {
	FinalizeByRef(ctx context.Context, bookingRef string, outcome string, paymentRef *string) (*model.Booking, error)
}

// StartPaymentConsumer connects to the broker, declares the durable
// payment.results queue and consumes outcome messages, handing each to
// the finalizer. The broker delivers at-least-once; finalization is
// idempotent, so redeliveries are acked as successes. The loop reconnects
// with backoff until ctx is cancelled.
func StartPaymentConsumer(ctx context.Context, url string, fin Finalizer) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("payment consumer: dial failed",
				zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, fin); err != nil {
			logger.Warn("payment consumer: loop ended, reconnecting", zap.Error(err))
			_ = conn.Close()
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		_ = conn.Close()
		return
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, fin Finalizer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("payment consumer: set QoS failed", zap.Error(err))
	}

	if _, err := ch.QueueDeclare(PaymentResultQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(PaymentResultQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handlePaymentResult(ctx, fin, d.Body); err != nil {
				logger.Error("payment consumer: handle message failed", zap.Error(err))
				// Reject without requeue to avoid a tight redelivery loop.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		case <-ctx.Done():
			return nil
		}
	}
}

func handlePaymentResult(ctx context.Context, fin Finalizer, body []byte) error {
	var ev PaymentResultEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	var ref *string
	if ev.PaymentRef != "" {
		ref = &ev.PaymentRef
	}
	b, err := fin.FinalizeByRef(ctx, ev.BookingRef, ev.Outcome, ref)
	switch {
	case err == nil:
		logger.Info("payment result applied",
			zap.String("booking_ref", ev.BookingRef),
			zap.String("outcome", ev.Outcome),
			zap.String("status", b.Status))
		return nil
	case errors.Is(err, repository.ErrHoldExpired):
		// Seats lapsed before the outcome arrived; the booking was
		// cancelled and a refund requested. The message is consumed.
		logger.Warn("payment succeeded after hold expiry, refund requested",
			zap.String("booking_ref", ev.BookingRef))
		return nil
	default:
		return fmt.Errorf("finalize %s: %w", ev.BookingRef, err)
	}
}
