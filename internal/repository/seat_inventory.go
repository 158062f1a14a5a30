// Package repository contains data access for the booking core. This file
// implements the seat inventory: the authoritative status of every seat of
// a showing. All status transitions pass through here as guarded
// compare-and-swap UPDATEs, and multi-seat operations run inside one
// transaction so they apply entirely or not at all.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"cinema-booking-core/internal/model"
)

// dbTime is the DATETIME layout used when binding time values. The
// connection is opened with loc=UTC, so all comparisons happen in UTC.
const dbTime = "2006-01-02 15:04:05"

// SeatInventoryRepo owns the showing_seats table. BookingRepo and the
// services never write seat status, holder or expiry directly; they go
// through the transition methods defined here.
type SeatInventoryRepo struct {
	db *sql.DB
}

// NewSeatInventoryRepo returns a SeatInventoryRepo bound to the database.
func NewSeatInventoryRepo(db *sql.DB) *SeatInventoryRepo { return &SeatInventoryRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions
// spanning multiple repositories.
func (r *SeatInventoryRepo) DB() *sql.DB { return r.db }

// seatColumns is the column list shared by the scan helpers below.
const seatColumns = `id, showing_id, row_label, seat_number, seat_class, price_cents,
                     status, holder_id, hold_expires_at, version, created_at, updated_at`

// ListByShowing returns every seat of a showing with its current status.
// The read has no side effects and returns an empty slice for an unknown
// showing. Holds that have lapsed but not yet been swept are reported
// as AVAILABLE so a renderer never shows a stale hold to the customer.
func (r *SeatInventoryRepo) ListByShowing(ctx context.Context, showingID uint64) ([]SeatRow, error) {
	const q = `SELECT ` + seatColumns + ` FROM showing_seats WHERE showing_id = ? ORDER BY row_label, seat_number`
	rows, err := r.db.QueryContext(ctx, q, showingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	now := time.Now().UTC()
	seats := make([]SeatRow, 0, 64)
	for rows.Next() {
		var s SeatRow
		if err := s.scan(rows); err != nil {
			return nil, err
		}
		if s.Status == model.SeatHeld && s.HoldExpiresAt != nil && !s.HoldExpiresAt.After(now) {
			// Lapsed hold awaiting sweep: present as available.
			s.Status = model.SeatAvailable
			s.HolderID = nil
			s.HoldExpiresAt = nil
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// SeatRow is the persistence representation of one showing seat.
type SeatRow struct {
	ID            uint64
	ShowingID     uint64
	RowLabel      string
	SeatNumber    uint32
	SeatClass     string
	PriceCents    uint32
	Status        string
	HolderID      *string
	HoldExpiresAt *time.Time
	Version       uint32
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Model converts the persistence row into the exported seat model.
func (s SeatRow) Model() model.ShowingSeat {
	return model.ShowingSeat{
		ID:            s.ID,
		ShowingID:     s.ShowingID,
		RowLabel:      s.RowLabel,
		SeatNumber:    s.SeatNumber,
		SeatClass:     s.SeatClass,
		PriceCents:    s.PriceCents,
		Status:        s.Status,
		HolderID:      s.HolderID,
		HoldExpiresAt: s.HoldExpiresAt,
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// scanner abstracts *sql.Row and *sql.Rows for the shared scan helper.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *SeatRow) scan(sc scanner) error {
	return sc.Scan(&s.ID, &s.ShowingID, &s.RowLabel, &s.SeatNumber, &s.SeatClass, &s.PriceCents,
		&s.Status, &s.HolderID, &s.HoldExpiresAt, &s.Version, &s.CreatedAt, &s.UpdatedAt)
}

// placeholders returns "?, ?, ..." with n markers for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// HoldSeatsTx attempts the guarded batch transition AVAILABLE→HELD for
// every seat in seatIDs, with holder=callerID and the given expiry. It
// must run inside the caller's transaction. The returned rejected slice
// lists seats whose guard failed (not AVAILABLE, or unknown for this
// showing); when it is non-empty the caller must roll the transaction
// back, because a partial hold is never a sellable outcome.
//
// Seats whose previous hold has lapsed are claimed directly: the guard
// accepts HELD rows whose expiry has passed, which makes the batch
// independent of sweep timing.
func (r *SeatInventoryRepo) HoldSeatsTx(ctx context.Context, tx Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	stx := UnwrapTx(tx)
	const q = `UPDATE showing_seats
	           SET status = 'HELD', holder_id = ?, hold_expires_at = ?, version = version + 1
	           WHERE id = ? AND showing_id = ?
	             AND (status = 'AVAILABLE' OR (status = 'HELD' AND hold_expires_at <= UTC_TIMESTAMP()))`
	var rejected []uint64
	for _, sid := range seatIDs {
		res, err := stx.ExecContext(ctx, q, callerID, expiresAt.UTC().Format(dbTime), sid, showingID)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			rejected = append(rejected, sid)
		}
	}
	return rejected, nil
}

// ReleaseByHolderTx transitions every seat of the showing currently
// held by callerID back to AVAILABLE and returns the released seat IDs.
// The holder guard means a hold that already expired and was re-granted
// to someone else is left alone. Runs inside the caller's transaction.
func (r *SeatInventoryRepo) ReleaseByHolderTx(ctx context.Context, tx Tx, showingID uint64, callerID string) ([]uint64, error) {
	stx := UnwrapTx(tx)
	const sel = `SELECT id FROM showing_seats
	             WHERE showing_id = ? AND holder_id = ? AND status = 'HELD' FOR UPDATE`
	ids, err := collectIDs(ctx, stx, sel, showingID, callerID)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	const upd = `UPDATE showing_seats
	             SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL, version = version + 1
	             WHERE showing_id = ? AND holder_id = ? AND status = 'HELD'`
	if _, err := stx.ExecContext(ctx, upd, showingID, callerID); err != nil {
		return nil, err
	}
	return ids, nil
}

// RenewHoldsTx extends the expiry of the requested seats where they are
// still held by callerID with an unexpired hold. Seats not held by the
// caller are silently skipped; the caller has no claim to extend. It
// returns the IDs whose expiry was actually moved.
func (r *SeatInventoryRepo) RenewHoldsTx(ctx context.Context, tx Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	stx := UnwrapTx(tx)
	if len(seatIDs) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, showingID, callerID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	sel := `SELECT id FROM showing_seats
	        WHERE showing_id = ? AND holder_id = ? AND status = 'HELD'
	          AND hold_expires_at > UTC_TIMESTAMP()
	          AND id IN (` + placeholders(len(seatIDs)) + `) FOR UPDATE`
	ids, err := collectIDs(ctx, stx, sel, args...)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	updArgs := make([]interface{}, 0, len(ids)+3)
	updArgs = append(updArgs, expiresAt.UTC().Format(dbTime), showingID, callerID)
	for _, id := range ids {
		updArgs = append(updArgs, id)
	}
	upd := `UPDATE showing_seats
	        SET hold_expires_at = ?, version = version + 1
	        WHERE showing_id = ? AND holder_id = ? AND status = 'HELD'
	          AND id IN (` + placeholders(len(ids)) + `)`
	if _, err := stx.ExecContext(ctx, upd, updArgs...); err != nil {
		return nil, err
	}
	return ids, nil
}

// SweepExpiredTx transitions HELD seats whose expiry has passed back to
// AVAILABLE with holder cleared, returning the released IDs. Each row
// change is guarded by the expiry predicate, so a seat that was renewed
// or sold between scan and update is left untouched; running the sweep
// concurrently with itself is safe. Runs inside the caller's transaction.
func (r *SeatInventoryRepo) SweepExpiredTx(ctx context.Context, tx Tx, showingID uint64) ([]uint64, error) {
	stx := UnwrapTx(tx)
	const sel = `SELECT id FROM showing_seats
	             WHERE showing_id = ? AND status = 'HELD' AND hold_expires_at <= UTC_TIMESTAMP() FOR UPDATE`
	ids, err := collectIDs(ctx, stx, sel, showingID)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	const upd = `UPDATE showing_seats
	             SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL, version = version + 1
	             WHERE showing_id = ? AND status = 'HELD' AND hold_expires_at <= UTC_TIMESTAMP()`
	if _, err := stx.ExecContext(ctx, upd, showingID); err != nil {
		return nil, err
	}
	return ids, nil
}

// HeldForUpdateTx loads the requested seats where they are currently
// held by callerID with an unexpired hold, locking the rows for the
// remainder of the transaction. It returns a price map keyed by seat ID
// plus the IDs that failed the check. Booking creation uses this as its
// re-verification gate: a stale hold read from before submission is
// never trusted.
func (r *SeatInventoryRepo) HeldForUpdateTx(ctx context.Context, tx Tx, showingID uint64, seatIDs []uint64, callerID string) (map[uint64]uint32, []uint64, error) {
	stx := UnwrapTx(tx)
	if len(seatIDs) == 0 {
		return map[uint64]uint32{}, nil, nil
	}
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, showingID, callerID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	q := `SELECT id, price_cents FROM showing_seats
	      WHERE showing_id = ? AND holder_id = ? AND status = 'HELD'
	        AND hold_expires_at > UTC_TIMESTAMP()
	        AND id IN (` + placeholders(len(seatIDs)) + `) FOR UPDATE`
	rows, err := stx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, err
	}
	prices := make(map[uint64]uint32, len(seatIDs))
	for rows.Next() {
		var id uint64
		var price uint32
		if scanErr := rows.Scan(&id, &price); scanErr != nil {
			rows.Close()
			return nil, nil, scanErr
		}
		prices[id] = price
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}
	var missing []uint64
	for _, sid := range seatIDs {
		if _, ok := prices[sid]; !ok {
			missing = append(missing, sid)
		}
	}
	return prices, missing, nil
}

// MarkSoldTx performs the guarded HELD→SOLD transition for each seat,
// requiring the holder to match and the hold to still be live. The
// holder stays on the row as the owner of record; the expiry is
// cleared. It returns the IDs whose guard failed so the confirmation
// path can fail the whole batch and cancel the booking instead.
func (r *SeatInventoryRepo) MarkSoldTx(ctx context.Context, tx Tx, showingID uint64, seatIDs []uint64, callerID string) ([]uint64, error) {
	stx := UnwrapTx(tx)
	const q = `UPDATE showing_seats
	           SET status = 'SOLD', hold_expires_at = NULL, version = version + 1
	           WHERE id = ? AND showing_id = ? AND status = 'HELD' AND holder_id = ?
	             AND hold_expires_at > UTC_TIMESTAMP()`
	var failed []uint64
	for _, sid := range seatIDs {
		res, err := stx.ExecContext(ctx, q, sid, showingID, callerID)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			failed = append(failed, sid)
		}
	}
	return failed, nil
}

// ReleaseSeatsTx transitions specific seats HELD→AVAILABLE where the
// holder matches. Used when a payment fails or a booking is cancelled:
// seats re-held by someone else in the interim are left alone.
func (r *SeatInventoryRepo) ReleaseSeatsTx(ctx context.Context, tx Tx, showingID uint64, seatIDs []uint64, callerID string) error {
	stx := UnwrapTx(tx)
	if len(seatIDs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, showingID, callerID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	q := `UPDATE showing_seats
	      SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL, version = version + 1
	      WHERE showing_id = ? AND holder_id = ? AND status = 'HELD'
	        AND id IN (` + placeholders(len(seatIDs)) + `)`
	_, err := stx.ExecContext(ctx, q, args...)
	return err
}

// ForceReleaseShowingTx returns every non-sold seat of a showing to
// AVAILABLE. Administrative cancellation of a showing is the only
// caller; the sold seats stay attached to their confirmed bookings for
// the refund flow handled outside this core.
func (r *SeatInventoryRepo) ForceReleaseShowingTx(ctx context.Context, tx Tx, showingID uint64) (int64, error) {
	stx := UnwrapTx(tx)
	const q = `UPDATE showing_seats
	           SET status = 'AVAILABLE', holder_id = NULL, hold_expires_at = NULL, version = version + 1
	           WHERE showing_id = ? AND status = 'HELD'`
	res, err := stx.ExecContext(ctx, q, showingID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ShowingsWithActiveHolds returns the IDs of showings that currently
// have at least one HELD seat. The background sweeper uses this to
// bound its scan to showings that can actually have work.
func (r *SeatInventoryRepo) ShowingsWithActiveHolds(ctx context.Context) ([]uint64, error) {
	const q = `SELECT DISTINCT showing_id FROM showing_seats WHERE status = 'HELD'`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountHeld counts seats under a live hold across all showings.
func (r *SeatInventoryRepo) CountHeld(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM showing_seats
		WHERE status = 'HELD' AND hold_expires_at > UTC_TIMESTAMP()`
	var n int64
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateSeatsTx bulk-inserts the seat rows of a new showing. Seats are
// created exactly once, when the Catalog collaborator schedules the
// showing, and never deleted afterwards.
func (r *SeatInventoryRepo) CreateSeatsTx(ctx context.Context, tx Tx, showingID uint64, seats []SeatRow) error {
	stx := UnwrapTx(tx)
	if len(seats) == 0 {
		return nil
	}
	query := `INSERT INTO showing_seats (showing_id, row_label, seat_number, seat_class, price_cents) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	for i, s := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, showingID, s.RowLabel, s.SeatNumber, s.SeatClass, s.PriceCents)
	}
	_, err := stx.ExecContext(ctx, query, args...)
	return err
}

// collectIDs runs a single-column id query and gathers the results.
func collectIDs(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return ids, nil
}
