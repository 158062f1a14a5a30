package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/metrics"
	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
)

// ErrTotalsMismatch is returned when the totals submitted by the
// checkout layer disagree with the seat price snapshots plus add-on
// line totals. Pricing itself is external; this check only guards
// against a stale client quoting prices from a different showing.
var ErrTotalsMismatch = errors.New("submitted total does not match priced lines")

// BookingCoordinator materialises a pending booking from a caller's
// currently-held seats plus add-on items, as one atomic unit. It never
// moves a seat to SOLD; that happens only at confirmation, after the
// payment outcome is known. The seats stay HELD, and therefore
// unavailable to others, through the pending window bounded by the
// hold expiry.
type BookingCoordinator struct {
	txm      repository.TxManager
	seats    SeatInventory
	bookings BookingStore
	showings ShowingStore
	events   EventPublisher
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewBookingCoordinator wires the coordinator with its stores and the
// event publisher for the Notification collaborator.
func NewBookingCoordinator(txm repository.TxManager, seats SeatInventory, bookings BookingStore, showings ShowingStore, events EventPublisher, m *metrics.Metrics) *BookingCoordinator {
	return &BookingCoordinator{
		txm:      txm,
		seats:    seats,
		bookings: bookings,
		showings: showings,
		events:   events,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateBookingInput carries everything the checkout layer submits.
// Items are opaque add-on lines (quantity and price only); TotalCents is
// the grand total the customer was quoted.
type CreateBookingInput struct {
	CallerID   string
	ShowingID  uint64
	SeatIDs    []uint64
	Items      []model.BookingItem
	TotalCents uint32
}

// Create builds the pending booking. Inside one transaction it
// re-verifies that every requested seat is held by the caller with a
// live hold (a hold can expire between acquisition and submission, so
// the earlier grant is never trusted), then writes the booking row, the
// seat lines and the add-on lines. Any failure part way rolls the whole
// unit back: there is no partially-created booking.
//
// On ErrSeatNoLongerHeld the second return value lists the seats that
// failed re-verification so the caller can restart seat selection.
func (c *BookingCoordinator) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, []uint64, error) {
	ids := dedupeIDs(in.SeatIDs)
	if len(ids) == 0 {
		return nil, nil, ErrNoSeats
	}
	for _, it := range in.Items {
		if it.Quantity == 0 {
			return nil, nil, fmt.Errorf("add-on %q: quantity must be positive", it.Description)
		}
	}
	showing, err := c.showings.GetByID(ctx, in.ShowingID)
	if err != nil {
		return nil, nil, err
	}
	if showing.Status != model.ShowingScheduled {
		return nil, nil, repository.ErrShowingCancelled
	}

	tx, err := c.txm.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	prices, missing, err := c.seats.HeldForUpdateTx(ctx, tx, in.ShowingID, ids, in.CallerID)
	if err != nil {
		return nil, nil, err
	}
	if len(missing) > 0 {
		return nil, missing, repository.ErrSeatNoLongerHeld
	}

	// Totals are summed in uint64 so an oversized add-on line cannot wrap
	// around and collide with a small quoted total.
	var seatsTotal uint64
	seatLines := make([]model.BookingSeat, 0, len(ids))
	for _, sid := range ids {
		price := prices[sid]
		seatsTotal += uint64(price)
		seatLines = append(seatLines, model.BookingSeat{ShowingSeatID: sid, PriceCents: price})
	}
	var itemsTotal uint64
	for _, it := range in.Items {
		itemsTotal += it.LineTotalCents()
	}
	if seatsTotal+itemsTotal != uint64(in.TotalCents) {
		return nil, nil, ErrTotalsMismatch
	}

	booking := &model.Booking{
		BookingRef:      uuid.NewString(),
		CallerID:        in.CallerID,
		ShowingID:       in.ShowingID,
		Status:          model.BookingPending,
		SeatsTotalCents: uint32(seatsTotal),
		ItemsTotalCents: uint32(itemsTotal),
		TotalCents:      in.TotalCents,
		Seats:           seatLines,
		Items:           in.Items,
	}
	if err := c.bookings.CreateTx(ctx, tx, booking); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	committed = true

	c.metrics.BookingsTotal.WithLabelValues("pending").Inc()
	logger.Info("booking created",
		zap.Uint64("booking_id", booking.ID),
		zap.String("booking_ref", booking.BookingRef),
		zap.Uint64("showing_id", booking.ShowingID),
		zap.Int("seats", len(seatLines)),
		zap.Uint32("total_cents", booking.TotalCents),
	)
	c.publishStateChanged(ctx, booking)
	return booking, nil, nil
}

// GetForCaller loads a booking and enforces ownership.
func (c *BookingCoordinator) GetForCaller(ctx context.Context, bookingID uint64, callerID string) (*model.Booking, error) {
	b, err := c.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CallerID != callerID {
		return nil, repository.ErrForbidden
	}
	return b, nil
}

// ListForCaller returns the caller's bookings, newest first.
func (c *BookingCoordinator) ListForCaller(ctx context.Context, callerID string) ([]*model.Booking, error) {
	return c.bookings.ListByCaller(ctx, callerID)
}

// publishStateChanged emits the booking-state-changed event. Emission
// failures are logged only; booking-state correctness never depends on
// the broker being up.
func (c *BookingCoordinator) publishStateChanged(ctx context.Context, b *model.Booking) {
	seatIDs := make([]uint64, 0, len(b.Seats))
	for _, s := range b.Seats {
		seatIDs = append(seatIDs, s.ShowingSeatID)
	}
	ev := queue.BookingStateChangedEvent{
		BookingID:  b.ID,
		BookingRef: b.BookingRef,
		NewStatus:  b.Status,
		CallerID:   b.CallerID,
		ShowingID:  b.ShowingID,
		SeatIDs:    seatIDs,
		TotalCents: b.TotalCents,
		OccurredAt: c.now().UTC().Format(time.RFC3339),
	}
	if err := c.events.PublishBookingStateChanged(ctx, ev); err != nil {
		logger.Warn("booking event publish failed",
			zap.String("booking_ref", b.BookingRef),
			zap.Error(err),
		)
	}
}
