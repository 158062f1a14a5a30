// This file defines persistence for bookings and their seat/add-on line
// items. A booking and all of its lines are written in one transaction;
// any failure part way rolls the whole unit back so no orphaned booking
// or orphaned line items are ever visible.
package repository

import (
	"context"
	"database/sql"

	"cinema-booking-core/internal/model"
)

// BookingRepo provides data access to bookings, booking_seats and
// booking_items. Seat status itself is owned by SeatInventoryRepo;
// this repository only links bookings to seat rows.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *BookingRepo) DB() *sql.DB { return r.db }

// CreateTx inserts the booking row plus its seat and item lines inside
// the provided transaction. The generated IDs are written back onto the
// booking. The caller owns commit/rollback.
func (r *BookingRepo) CreateTx(ctx context.Context, tx Tx, b *model.Booking) error {
	stx := UnwrapTx(tx)
	const q = `INSERT INTO bookings (booking_ref, caller_id, showing_id, status, seats_total_cents, items_total_cents, total_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := stx.ExecContext(ctx, q, b.BookingRef, b.CallerID, b.ShowingID, b.Status,
		b.SeatsTotalCents, b.ItemsTotalCents, b.TotalCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, showing_seat_id, price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Seats)*3)
		for i := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			b.Seats[i].BookingID = b.ID
			args = append(args, b.ID, b.Seats[i].ShowingSeatID, b.Seats[i].PriceCents)
		}
		if _, err := stx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if len(b.Items) > 0 {
		query := `INSERT INTO booking_items (booking_id, description, quantity, unit_price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Items)*4)
		for i := range b.Items {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			b.Items[i].BookingID = b.ID
			args = append(args, b.ID, b.Items[i].Description, b.Items[i].Quantity, b.Items[i].UnitPriceCents)
		}
		if _, err := stx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	return stx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
}

const bookingColumns = `id, booking_ref, caller_id, showing_id, status,
                        seats_total_cents, items_total_cents, total_cents, payment_ref, created_at, updated_at`

func scanBooking(sc scanner) (*model.Booking, error) {
	var b model.Booking
	err := sc.Scan(&b.ID, &b.BookingRef, &b.CallerID, &b.ShowingID, &b.Status,
		&b.SeatsTotalCents, &b.ItemsTotalCents, &b.TotalCents, &b.PaymentRef, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID loads a booking with its seat and item lines.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetByRef loads a booking by its external UUID reference. Payment
// callbacks identify bookings this way.
func (r *BookingRepo) GetByRef(ctx context.Context, ref string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_ref = ?`, ref))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// GetForUpdateTx loads and row-locks a booking inside the transaction,
// with both seat and item lines attached. The confirmation path uses
// the lock to serialise concurrent payment callbacks for the same
// booking and hands the loaded booking to responses and events.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx Tx, id uint64) (*model.Booking, error) {
	stx := UnwrapTx(tx)
	b, err := scanBooking(stx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := loadBookingLines(ctx, stx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// SetStatusTx flips a PENDING booking to the given terminal status,
// optionally recording the payment reference. The status guard makes it
// a compare-and-swap: a booking already finalised by a concurrent
// callback is not touched and the method reports false.
func (r *BookingRepo) SetStatusTx(ctx context.Context, tx Tx, id uint64, status string, paymentRef *string) (bool, error) {
	stx := UnwrapTx(tx)
	const q = `UPDATE bookings SET status = ?, payment_ref = COALESCE(?, payment_ref) WHERE id = ? AND status = 'PENDING'`
	res, err := stx.ExecContext(ctx, q, status, paymentRef, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PendingByShowingTx lists IDs of PENDING bookings for a showing,
// locking the rows. Administrative cancellation cancels them all.
func (r *BookingRepo) PendingByShowingTx(ctx context.Context, tx Tx, showingID uint64) ([]uint64, error) {
	stx := UnwrapTx(tx)
	const q = `SELECT id FROM bookings WHERE showing_id = ? AND status = 'PENDING' FOR UPDATE`
	return collectIDs(ctx, stx, q, showingID)
}

// ListByCaller returns the caller's bookings, newest first, with lines
// attached. An empty slice is returned when the caller has none.
func (r *BookingRepo) ListByCaller(ctx context.Context, callerID string) ([]*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE caller_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, callerID)
	if err != nil {
		return nil, err
	}
	bookings := make([]*model.Booking, 0, 8)
	for rows.Next() {
		b, scanErr := scanBooking(rows)
		if scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		bookings = append(bookings, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	for _, b := range bookings {
		if err := r.loadLines(ctx, b); err != nil {
			return nil, err
		}
	}
	return bookings, nil
}

// querier is the query surface shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// loadLines attaches the seat and item lines to a booking.
func (r *BookingRepo) loadLines(ctx context.Context, b *model.Booking) error {
	return loadBookingLines(ctx, r.db, b)
}

// loadBookingLines attaches the seat and item lines using the given
// query surface, so transactional reads see their own writes.
func loadBookingLines(ctx context.Context, q querier, b *model.Booking) error {
	const seats = `SELECT id, booking_id, showing_seat_id, price_cents FROM booking_seats WHERE booking_id = ?`
	rows, err := q.QueryContext(ctx, seats, b.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var s model.BookingSeat
		if scanErr := rows.Scan(&s.ID, &s.BookingID, &s.ShowingSeatID, &s.PriceCents); scanErr != nil {
			rows.Close()
			return scanErr
		}
		b.Seats = append(b.Seats, s)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	const items = `SELECT id, booking_id, description, quantity, unit_price_cents FROM booking_items WHERE booking_id = ?`
	rows, err = q.QueryContext(ctx, items, b.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var it model.BookingItem
		if scanErr := rows.Scan(&it.ID, &it.BookingID, &it.Description, &it.Quantity, &it.UnitPriceCents); scanErr != nil {
			rows.Close()
			return scanErr
		}
		b.Items = append(b.Items, it)
	}
	return rows.Close()
}
