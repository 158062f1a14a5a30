package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
)

func pendingBooking() *model.Booking {
	return &model.Booking{
		ID:         3,
		BookingRef: "11111111-2222-3333-4444-555555555555",
		CallerID:   "caller-1",
		ShowingID:  7,
		Status:     model.BookingPending,
		Seats: []model.BookingSeat{
			{ShowingSeatID: 11, PriceCents: 1500},
			{ShowingSeatID: 12, PriceCents: 2500},
		},
		TotalCents: 4000,
	}
}

func strPtr(s string) *string { return &s }

func TestFinalizeSuccessConfirmsBooking(t *testing.T) {
	txm, tx := newTxPair(true)
	seats := new(MockSeatInventory)
	bookings := new(MockBookingStore)
	events := new(MockEventPublisher)

	b := pendingBooking()
	bookings.On("GetForUpdateTx", mock.Anything, tx, uint64(3)).Return(b, nil)
	seats.On("MarkSoldTx", mock.Anything, tx, uint64(7), []uint64{11, 12}, "caller-1").
		Return([]uint64{}, nil)
	bookings.On("SetStatusTx", mock.Anything, tx, uint64(3), model.BookingConfirmed, strPtr("pay-9")).
		Return(true, nil)
	events.On("PublishBookingStateChanged", mock.Anything, mock.Anything).Return(nil)

	s := NewConfirmationService(txm, seats, bookings, events, testMetrics())
	got, err := s.Finalize(context.Background(), 3, model.PaymentSucceeded, strPtr("pay-9"))
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	require.NotNil(t, got.PaymentRef)
	assert.Equal(t, "pay-9", *got.PaymentRef)
	events.AssertNotCalled(t, "PublishRefundRequested", mock.Anything, mock.Anything)
}

func TestFinalizeIsIdempotentOnTerminalBooking(t *testing.T) {
	txm, tx := newTxPair(false)
	seats := new(MockSeatInventory)
	bookings := new(MockBookingStore)
	events := new(MockEventPublisher)

	b := pendingBooking()
	b.Status = model.BookingConfirmed
	bookings.On("GetForUpdateTx", mock.Anything, tx, uint64(3)).Return(b, nil)

	s := NewConfirmationService(txm, seats, bookings, events, testMetrics())
	got, err := s.Finalize(context.Background(), 3, model.PaymentSucceeded, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)
	seats.AssertNotCalled(t, "MarkSoldTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	bookings.AssertNotCalled(t, "SetStatusTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinalizeSuccessAfterHoldExpiry(t *testing.T) {
	// Two transactions: the failed confirmation attempt, then the cancel.
	txm := new(MockTxManager)
	confirmTx, cancelTx := new(MockTx), new(MockTx)
	confirmTx.On("Rollback").Return(nil)
	cancelTx.On("Commit").Return(nil)
	cancelTx.On("Rollback").Return(nil).Maybe()
	txm.On("Begin", mock.Anything).Return(confirmTx, nil).Once()
	txm.On("Begin", mock.Anything).Return(cancelTx, nil).Once()

	seats := new(MockSeatInventory)
	bookings := new(MockBookingStore)
	events := new(MockEventPublisher)

	bookings.On("GetForUpdateTx", mock.Anything, confirmTx, uint64(3)).Return(pendingBooking(), nil).Once()
	seats.On("MarkSoldTx", mock.Anything, confirmTx, uint64(7), []uint64{11, 12}, "caller-1").
		Return([]uint64{12}, nil)

	bookings.On("GetForUpdateTx", mock.Anything, cancelTx, uint64(3)).Return(pendingBooking(), nil).Once()
	seats.On("ReleaseSeatsTx", mock.Anything, cancelTx, uint64(7), []uint64{11, 12}, "caller-1").Return(nil)
	bookings.On("SetStatusTx", mock.Anything, cancelTx, uint64(3), model.BookingCancelled, strPtr("pay-9")).
		Return(true, nil)
	events.On("PublishRefundRequested", mock.Anything, mock.MatchedBy(func(ev queue.RefundRequestedEvent) bool {
		return ev.BookingRef == "11111111-2222-3333-4444-555555555555" && ev.PaymentRef == "pay-9"
	})).Return(nil)
	events.On("PublishBookingStateChanged", mock.Anything, mock.Anything).Return(nil)

	s := NewConfirmationService(txm, seats, bookings, events, testMetrics())
	got, err := s.Finalize(context.Background(), 3, model.PaymentSucceeded, strPtr("pay-9"))
	assert.ErrorIs(t, err, repository.ErrHoldExpired)
	require.NotNil(t, got)
	assert.Equal(t, model.BookingCancelled, got.Status)
	events.AssertExpectations(t)
	confirmTx.AssertNotCalled(t, "Commit")
}

func TestFinalizeFailedPaymentCancelsAndReleases(t *testing.T) {
	txm, tx := newTxPair(true)
	seats := new(MockSeatInventory)
	bookings := new(MockBookingStore)
	events := new(MockEventPublisher)

	bookings.On("GetForUpdateTx", mock.Anything, tx, uint64(3)).Return(pendingBooking(), nil)
	seats.On("ReleaseSeatsTx", mock.Anything, tx, uint64(7), []uint64{11, 12}, "caller-1").Return(nil)
	bookings.On("SetStatusTx", mock.Anything, tx, uint64(3), model.BookingCancelled, (*string)(nil)).
		Return(true, nil)
	events.On("PublishBookingStateChanged", mock.Anything, mock.Anything).Return(nil)

	s := NewConfirmationService(txm, seats, bookings, events, testMetrics())
	got, err := s.Finalize(context.Background(), 3, model.PaymentFailed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
	// Nothing was captured, so no refund obligation exists.
	events.AssertNotCalled(t, "PublishRefundRequested", mock.Anything, mock.Anything)
}

func TestFinalizeRejectsUnknownOutcome(t *testing.T) {
	s := NewConfirmationService(new(MockTxManager), new(MockSeatInventory), new(MockBookingStore), new(MockEventPublisher), testMetrics())
	_, err := s.Finalize(context.Background(), 3, "MAYBE", nil)
	assert.ErrorIs(t, err, ErrInvalidOutcome)
}

func TestFinalizeByRefResolvesBooking(t *testing.T) {
	txm, tx := newTxPair(false)
	seats := new(MockSeatInventory)
	bookings := new(MockBookingStore)
	events := new(MockEventPublisher)

	b := pendingBooking()
	b.Status = model.BookingCancelled
	bookings.On("GetByRef", mock.Anything, b.BookingRef).Return(b, nil)
	bookings.On("GetForUpdateTx", mock.Anything, tx, uint64(3)).Return(b, nil)

	s := NewConfirmationService(txm, seats, bookings, events, testMetrics())
	got, err := s.FinalizeByRef(context.Background(), b.BookingRef, model.PaymentSucceeded, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)
}

func TestFinalizeByRefUnknownRef(t *testing.T) {
	bookings := new(MockBookingStore)
	bookings.On("GetByRef", mock.Anything, "nope").Return(nil, repository.ErrBookingNotFound)

	s := NewConfirmationService(new(MockTxManager), new(MockSeatInventory), bookings, new(MockEventPublisher), testMetrics())
	_, err := s.FinalizeByRef(context.Background(), "nope", model.PaymentSucceeded, nil)
	assert.ErrorIs(t, err, repository.ErrBookingNotFound)
}
