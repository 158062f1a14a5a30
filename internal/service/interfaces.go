// Package service implements the booking core on top of the repository
// layer: hold management, booking coordination, payment confirmation and
// the background hold sweeper. Services orchestrate transactions through
// repository.TxManager and never mutate seat state except via the seat
// inventory's guarded transition methods.
package service

import (
	"context"
	"time"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
)

// SeatInventory is the slice of SeatInventoryRepo the services consume.
// Every mutation is a guarded transition; batch methods report the seat
// IDs whose guard failed instead of partially applying.
type SeatInventory interface {
	ListByShowing(ctx context.Context, showingID uint64) ([]repository.SeatRow, error)
	CreateSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seats []repository.SeatRow) error
	HoldSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error)
	ReleaseByHolderTx(ctx context.Context, tx repository.Tx, showingID uint64, callerID string) ([]uint64, error)
	RenewHoldsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error)
	SweepExpiredTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error)
	HeldForUpdateTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) (map[uint64]uint32, []uint64, error)
	MarkSoldTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) ([]uint64, error)
	ReleaseSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) error
	ForceReleaseShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) (int64, error)
	ShowingsWithActiveHolds(ctx context.Context) ([]uint64, error)
	CountHeld(ctx context.Context) (int64, error)
}

// BookingStore persists bookings with their seat and item lines.
type BookingStore interface {
	CreateTx(ctx context.Context, tx repository.Tx, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByRef(ctx context.Context, ref string) (*model.Booking, error)
	GetForUpdateTx(ctx context.Context, tx repository.Tx, id uint64) (*model.Booking, error)
	SetStatusTx(ctx context.Context, tx repository.Tx, id uint64, status string, paymentRef *string) (bool, error)
	PendingByShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error)
	ListByCaller(ctx context.Context, callerID string) ([]*model.Booking, error)
}

// ShowingStore persists showings.
type ShowingStore interface {
	CreateTx(ctx context.Context, tx repository.Tx, s *model.Showing) error
	GetByID(ctx context.Context, id uint64) (*model.Showing, error)
	CancelTx(ctx context.Context, tx repository.Tx, id uint64) error
	Upcoming(ctx context.Context, limit int) ([]model.Showing, error)
}

// EventPublisher delivers events to external collaborators. Publishing
// is best-effort for notifications: a failed publish is logged but never
// rolls back a committed state transition.
type EventPublisher interface {
	PublishBookingStateChanged(ctx context.Context, ev queue.BookingStateChangedEvent) error
	PublishRefundRequested(ctx context.Context, ev queue.RefundRequestedEvent) error
}
