package model

import "time"

// Seat statuses.  The lifecycle is AVAILABLE → HELD → SOLD, with
// HELD falling back to AVAILABLE on release or expiry.  Every
// transition is a guarded compare-and-swap against the stored status,
// so two racing callers can never both win the same seat.
const (
	SeatAvailable = "AVAILABLE"
	SeatHeld      = "HELD"
	SeatSold      = "SOLD"
)

// Seat classes accepted from the Catalog collaborator's template.
const (
	ClassStandard = "STANDARD"
	ClassPremium  = "PREMIUM"
	ClassRecliner = "RECLINER"
	ClassVIP      = "VIP"
)

// ShowingSeat is the authoritative per-showing seat record.  There is
// one row for every seat of a showing, created when the showing is
// scheduled and never deleted; only status, holder and expiry mutate.
//
// Fields:
//  ID            – primary key identifier; doubles as the seat id in the API.
//  ShowingID     – showing this seat belongs to.
//  RowLabel      – row label, e.g. "A".
//  SeatNumber    – seat position within the row.
//  SeatClass     – seat class (STANDARD, PREMIUM, RECLINER, VIP).
//  PriceCents    – class price snapshot taken at showing creation.
//  Status        – AVAILABLE, HELD or SOLD.
//  HolderID      – opaque caller id of the holder/owner; nil when available.
//  HoldExpiresAt – UTC expiry of the current hold; nil unless HELD.
//  Version       – counter bumped on every successful transition.
//  CreatedAt     – when the row was inserted.
//  UpdatedAt     – when the row was last modified.
//
// Invariant: Status==HELD implies HolderID and HoldExpiresAt are both
// set and the expiry lies in the future at transition time; Status==SOLD
// implies HolderID is set, HoldExpiresAt is nil and a confirmed booking
// references this seat.
type ShowingSeat struct {
	ID            uint64     // showing_seats.id
	ShowingID     uint64     // showing_seats.showing_id
	RowLabel      string     // showing_seats.row_label
	SeatNumber    uint32     // showing_seats.seat_number
	SeatClass     string     // showing_seats.seat_class
	PriceCents    uint32     // showing_seats.price_cents
	Status        string     // showing_seats.status
	HolderID      *string    // showing_seats.holder_id (nullable)
	HoldExpiresAt *time.Time // showing_seats.hold_expires_at (nullable)
	Version       uint32     // showing_seats.version
	CreatedAt     time.Time  // showing_seats.created_at
	UpdatedAt     time.Time  // showing_seats.updated_at
}

// HeldBy reports whether the seat is currently held by the given
// caller with an unexpired hold, evaluated against the supplied
// clock reading.  Expiry is data, not a running timer: a seat whose
// expiry has passed is not held even if no sweep has run yet.
func (s *ShowingSeat) HeldBy(callerID string, now time.Time) bool {
	if s.Status != SeatHeld || s.HolderID == nil || s.HoldExpiresAt == nil {
		return false
	}
	return *s.HolderID == callerID && s.HoldExpiresAt.After(now)
}

// ValidSeatClass reports whether c is one of the accepted seat classes.
func ValidSeatClass(c string) bool {
	switch c {
	case ClassStandard, ClassPremium, ClassRecliner, ClassVIP:
		return true
	}
	return false
}
