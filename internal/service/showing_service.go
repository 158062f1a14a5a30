package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/repository"
)

// ErrEmptySeatMap is returned when the Catalog collaborator submits a
// showing without any seats.
var ErrEmptySeatMap = errors.New("seat map template is empty")

// ErrBadTemplate wraps seat template problems: an unknown seat class or
// a class the price table has no entry for.
var ErrBadTemplate = errors.New("invalid seat map template")

// ShowingService ingests showings from the Catalog collaborator and
// handles administrative cancellation. A showing and its full seat
// inventory are created in one transaction and are immutable afterwards;
// the price table is resolved to per-seat snapshots at creation time, so
// later catalog price changes never touch existing showings.
type ShowingService struct {
	txm      repository.TxManager
	showings ShowingStore
	seats    SeatInventory
	bookings BookingStore
}

// NewShowingService wires the service.
func NewShowingService(txm repository.TxManager, showings ShowingStore, seats SeatInventory, bookings BookingStore) *ShowingService {
	return &ShowingService{txm: txm, showings: showings, seats: seats, bookings: bookings}
}

// CreateShowingInput is the Catalog collaborator's payload: showing
// metadata, the seat map template and the per-class price table.
type CreateShowingInput struct {
	MovieTitle string
	ScreenName string
	StartsAt   time.Time
	PriceTable map[string]uint32
	Seats      []model.SeatTemplate
}

// CreateShowing validates the template, snapshots prices per seat and
// writes the showing plus every seat row atomically. A showing is never
// visible without its inventory.
func (s *ShowingService) CreateShowing(ctx context.Context, in CreateShowingInput) (*model.Showing, int, error) {
	if len(in.Seats) == 0 {
		return nil, 0, ErrEmptySeatMap
	}
	rows := make([]repository.SeatRow, 0, len(in.Seats))
	for _, t := range in.Seats {
		if !model.ValidSeatClass(t.SeatClass) {
			return nil, 0, fmt.Errorf("%w: seat %s%d has unknown class %q", ErrBadTemplate, t.RowLabel, t.SeatNumber, t.SeatClass)
		}
		price, ok := in.PriceTable[t.SeatClass]
		if !ok {
			return nil, 0, fmt.Errorf("%w: class %q missing from price table", ErrBadTemplate, t.SeatClass)
		}
		rows = append(rows, repository.SeatRow{
			RowLabel:   t.RowLabel,
			SeatNumber: t.SeatNumber,
			SeatClass:  t.SeatClass,
			PriceCents: price,
		})
	}

	showing := &model.Showing{
		MovieTitle: in.MovieTitle,
		ScreenName: in.ScreenName,
		StartsAt:   in.StartsAt,
	}
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	if err := s.showings.CreateTx(ctx, tx, showing); err != nil {
		_ = tx.Rollback()
		return nil, 0, err
	}
	if err := s.seats.CreateSeatsTx(ctx, tx, showing.ID, rows); err != nil {
		_ = tx.Rollback()
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	logger.Info("showing created",
		zap.Uint64("showing_id", showing.ID),
		zap.String("movie", showing.MovieTitle),
		zap.Int("seats", len(rows)),
	)
	return showing, len(rows), nil
}

// CancelShowing administratively cancels a showing: pending bookings
// are cancelled and every held seat is force-released. Sold seats stay
// attached to their confirmed bookings; refunding those is the Payment
// collaborator's flow, triggered outside this core. Returns the IDs of
// the bookings that were cancelled.
func (s *ShowingService) CancelShowing(ctx context.Context, showingID uint64) ([]uint64, error) {
	tx, err := s.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.showings.CancelTx(ctx, tx, showingID); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	pending, err := s.bookings.PendingByShowingTx(ctx, tx, showingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	for _, id := range pending {
		if _, err := s.bookings.SetStatusTx(ctx, tx, id, model.BookingCancelled, nil); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	released, err := s.seats.ForceReleaseShowingTx(ctx, tx, showingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	logger.Info("showing cancelled",
		zap.Uint64("showing_id", showingID),
		zap.Int64("seats_released", released),
		zap.Int("bookings_cancelled", len(pending)),
	)
	return pending, nil
}

// GetShowing returns one showing by ID.
func (s *ShowingService) GetShowing(ctx context.Context, id uint64) (*model.Showing, error) {
	return s.showings.GetByID(ctx, id)
}

// ListUpcoming lists showings that have not started yet.
func (s *ShowingService) ListUpcoming(ctx context.Context, limit int) ([]model.Showing, error) {
	return s.showings.Upcoming(ctx, limit)
}

// ListSeats returns the seat map of a showing with current statuses.
// Unknown showings yield an empty list; the read path stays total.
func (s *ShowingService) ListSeats(ctx context.Context, showingID uint64) ([]model.ShowingSeat, error) {
	rows, err := s.seats.ListByShowing(ctx, showingID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ShowingSeat, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Model())
	}
	return out, nil
}
