package model

import "time"

// Showing statuses.  A showing is immutable once its seats exist,
// except for administrative cancellation which force-releases all
// seats that have not been sold.
const (
	ShowingScheduled = "SCHEDULED"
	ShowingCancelled = "CANCELLED"
)

// Showing represents one scheduled screening of a movie on a specific
// screen at a specific time.  Showings are created once from the
// Catalog collaborator's payload (seat map template plus per-class
// price table) and never modified afterwards by this service.
//
// Fields:
//  ID         – primary key identifier.
//  MovieTitle – title of the movie being screened.
//  ScreenName – screen/theater the showing runs in.
//  StartsAt   – UTC start time of the screening.
//  Status     – SCHEDULED or CANCELLED.
//  CreatedAt  – when the showing was created.
//  UpdatedAt  – when the showing was last updated.
type Showing struct {
	ID         uint64    // showings.id
	MovieTitle string    // showings.movie_title
	ScreenName string    // showings.screen_name
	StartsAt   time.Time // showings.starts_at
	Status     string    // showings.status
	CreatedAt  time.Time // showings.created_at
	UpdatedAt  time.Time // showings.updated_at
}

// SeatTemplate describes one seat of the Catalog collaborator's seat
// map template.  The price is resolved from the per-class price table
// at showing creation time and snapshotted onto the seat row; later
// price table changes never affect existing showings.
type SeatTemplate struct {
	RowLabel   string // e.g. "A"
	SeatNumber uint32 // 1-based position within the row
	SeatClass  string // STANDARD, PREMIUM, RECLINER or VIP
}
