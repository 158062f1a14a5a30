// This file defines persistence for showings. A showing row is written
// once, when the Catalog collaborator schedules a screening, together
// with its full seat inventory. The only mutation ever applied to it is
// administrative cancellation.
package repository

import (
	"context"
	"database/sql"
	"time"

	"cinema-booking-core/internal/model"
)

// ShowingRepo manages persistence for showings.
type ShowingRepo struct {
	db *sql.DB
}

// NewShowingRepo constructs a ShowingRepo with the given DB handle.
func NewShowingRepo(db *sql.DB) *ShowingRepo { return &ShowingRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need transactions
// spanning multiple repositories.
func (r *ShowingRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new showing using the provided transaction and
// populates the generated ID plus DB-default fields on the struct. The
// caller commits after the seat rows have been written so a showing is
// never visible without its inventory.
func (r *ShowingRepo) CreateTx(ctx context.Context, tx Tx, s *model.Showing) error {
	stx := UnwrapTx(tx)
	const q = `INSERT INTO showings (movie_title, screen_name, starts_at) VALUES (?, ?, ?)`
	res, err := stx.ExecContext(ctx, q, s.MovieTitle, s.ScreenName, s.StartsAt.UTC().Format(dbTime))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT id, movie_title, screen_name, starts_at, status, created_at, updated_at
	             FROM showings WHERE id = ?`
	return stx.QueryRowContext(ctx, sel, s.ID).Scan(
		&s.ID, &s.MovieTitle, &s.ScreenName, &s.StartsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
}

// GetByID retrieves a showing by its ID. It returns ErrShowingNotFound
// when there is no matching row.
func (r *ShowingRepo) GetByID(ctx context.Context, id uint64) (*model.Showing, error) {
	const q = `SELECT id, movie_title, screen_name, starts_at, status, created_at, updated_at
	           FROM showings WHERE id = ?`
	var s model.Showing
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.MovieTitle, &s.ScreenName, &s.StartsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrShowingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CancelTx marks a showing CANCELLED. The guard on the current status
// makes repeated cancellations idempotent: the second call affects no
// rows and reports ErrShowingCancelled.
func (r *ShowingRepo) CancelTx(ctx context.Context, tx Tx, id uint64) error {
	stx := UnwrapTx(tx)
	const q = `UPDATE showings SET status = 'CANCELLED' WHERE id = ? AND status = 'SCHEDULED'`
	res, err := stx.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either unknown or already cancelled; disambiguate for the caller.
		var status string
		selErr := stx.QueryRowContext(ctx, `SELECT status FROM showings WHERE id = ?`, id).Scan(&status)
		if selErr == sql.ErrNoRows {
			return ErrShowingNotFound
		}
		if selErr != nil {
			return selErr
		}
		return ErrShowingCancelled
	}
	return nil
}

// Upcoming lists showings that have not started yet, ordered by start
// time. Used by the read path that feeds seat map rendering.
func (r *ShowingRepo) Upcoming(ctx context.Context, limit int) ([]model.Showing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `SELECT id, movie_title, screen_name, starts_at, status, created_at, updated_at
	           FROM showings WHERE starts_at > ? AND status = 'SCHEDULED'
	           ORDER BY starts_at LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, time.Now().UTC().Format(dbTime), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Showing
	for rows.Next() {
		var s model.Showing
		if err := rows.Scan(&s.ID, &s.MovieTitle, &s.ScreenName, &s.StartsAt, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
