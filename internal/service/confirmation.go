package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/metrics"
	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
)

// ErrInvalidOutcome is returned for a payment outcome that is neither
// SUCCEEDED nor FAILED.
var ErrInvalidOutcome = errors.New("invalid payment outcome")

// ConfirmationService finalises pending bookings once the Payment
// collaborator reports an outcome. It is the only path that ever moves
// a seat to SOLD or releases it back after a booking was created, and
// the only writer of a booking's terminal states.
type ConfirmationService struct {
	txm      repository.TxManager
	seats    SeatInventory
	bookings BookingStore
	events   EventPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewConfirmationService wires the service.
func NewConfirmationService(txm repository.TxManager, seats SeatInventory, bookings BookingStore, events EventPublisher, m *metrics.Metrics) *ConfirmationService {
	return &ConfirmationService{
		txm:      txm,
		seats:    seats,
		bookings: bookings,
		events:   events,
		metrics:  m,
		now:      time.Now,
	}
}

// Finalize applies the payment outcome to a pending booking.
//
// The booking state machine is pending→confirmed or pending→cancelled,
// both terminal. The Payment collaborator delivers results at least
// once, so finalising an already-terminal booking is a no-op that
// returns the existing state rather than erroring.
//
// On a success outcome every booking seat takes the guarded HELD→SOLD
// transition. A seat fails that guard when its hold lapsed and was
// swept, or someone else re-held it, before the payment result arrived.
// In that case the whole confirmation fails: the booking is cancelled,
// the seats still held by this caller are released, and ErrHoldExpired
// is returned alongside a refund.requested event, because funds were
// captured for seats that can no longer be sold.
func (s *ConfirmationService) Finalize(ctx context.Context, bookingID uint64, outcome string, paymentRef *string) (*model.Booking, error) {
	if !model.ValidPaymentOutcome(outcome) {
		return nil, ErrInvalidOutcome
	}

	if outcome == model.PaymentFailed {
		return s.cancel(ctx, bookingID, paymentRef, "payment failed", false)
	}

	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if b.Terminal() {
		_ = tx.Rollback()
		return b, nil
	}

	seatIDs := bookingSeatIDs(b)
	failed, err := s.seats.MarkSoldTx(ctx, tx, b.ShowingID, seatIDs, b.CallerID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if len(failed) > 0 {
		// One or more holds lapsed before the payment result arrived.
		// Abandon the partial batch and cancel instead.
		_ = tx.Rollback()
		cancelled, cancelErr := s.cancel(ctx, bookingID, paymentRef, "hold expired before confirmation", true)
		if cancelErr != nil {
			return nil, cancelErr
		}
		s.metrics.BookingsTotal.WithLabelValues("expired").Inc()
		logger.Warn("confirmation lost to hold expiry",
			zap.Uint64("booking_id", bookingID),
			zap.Uint64s("failed_seats", failed),
		)
		return cancelled, repository.ErrHoldExpired
	}

	if _, err := s.bookings.SetStatusTx(ctx, tx, b.ID, model.BookingConfirmed, paymentRef); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.Status = model.BookingConfirmed
	if paymentRef != nil {
		b.PaymentRef = paymentRef
	}
	s.metrics.BookingsTotal.WithLabelValues("confirmed").Inc()
	logger.Info("booking confirmed",
		zap.Uint64("booking_id", b.ID),
		zap.String("booking_ref", b.BookingRef),
		zap.Int("seats", len(seatIDs)),
	)
	s.publishStateChanged(ctx, b)
	return b, nil
}

// FinalizeByRef resolves the external booking reference used by payment
// callbacks and finalises the booking it names.
func (s *ConfirmationService) FinalizeByRef(ctx context.Context, bookingRef string, outcome string, paymentRef *string) (*model.Booking, error) {
	b, err := s.bookings.GetByRef(ctx, bookingRef)
	if err != nil {
		return nil, err
	}
	return s.Finalize(ctx, b.ID, outcome, paymentRef)
}

// cancel moves a pending booking to CANCELLED, releasing the seats the
// caller still holds. When refund is set, funds were already captured
// and a refund.requested event is emitted toward the Payment
// collaborator; that obligation is surfaced, never swallowed.
func (s *ConfirmationService) cancel(ctx context.Context, bookingID uint64, paymentRef *string, reason string, refund bool) (*model.Booking, error) {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if b.Terminal() {
		_ = tx.Rollback()
		return b, nil
	}

	seatIDs := bookingSeatIDs(b)
	// Only rows still held by this caller transition back; seats already
	// swept or re-held by someone else are left alone.
	if err := s.seats.ReleaseSeatsTx(ctx, tx, b.ShowingID, seatIDs, b.CallerID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if _, err := s.bookings.SetStatusTx(ctx, tx, b.ID, model.BookingCancelled, paymentRef); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	b.Status = model.BookingCancelled
	if paymentRef != nil {
		b.PaymentRef = paymentRef
	}
	s.metrics.BookingsTotal.WithLabelValues("cancelled").Inc()
	logger.Info("booking cancelled",
		zap.Uint64("booking_id", b.ID),
		zap.String("booking_ref", b.BookingRef),
		zap.String("reason", reason),
	)
	if refund {
		ref := ""
		if paymentRef != nil {
			ref = *paymentRef
		}
		ev := queue.RefundRequestedEvent{
			BookingRef: b.BookingRef,
			PaymentRef: ref,
			Reason:     reason,
			OccurredAt: s.now().UTC().Format(time.RFC3339),
		}
		if err := s.events.PublishRefundRequested(ctx, ev); err != nil {
			// The committed cancellation stands; the refund signal is
			// retried by the payment reconciliation on its side once it
			// notices the cancelled booking.
			logger.Error("refund event publish failed",
				zap.String("booking_ref", b.BookingRef),
				zap.Error(err),
			)
		}
	}
	s.publishStateChanged(ctx, b)
	return b, nil
}

// publishStateChanged mirrors BookingCoordinator's best-effort emission.
func (s *ConfirmationService) publishStateChanged(ctx context.Context, b *model.Booking) {
	ev := queue.BookingStateChangedEvent{
		BookingID:  b.ID,
		BookingRef: b.BookingRef,
		NewStatus:  b.Status,
		CallerID:   b.CallerID,
		ShowingID:  b.ShowingID,
		SeatIDs:    bookingSeatIDs(b),
		TotalCents: b.TotalCents,
		OccurredAt: s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishBookingStateChanged(ctx, ev); err != nil {
		logger.Warn("booking event publish failed",
			zap.String("booking_ref", b.BookingRef),
			zap.Error(err),
		)
	}
}

func bookingSeatIDs(b *model.Booking) []uint64 {
	ids := make([]uint64, 0, len(b.Seats))
	for _, s := range b.Seats {
		ids = append(ids, s.ShowingSeatID)
	}
	return ids
}
