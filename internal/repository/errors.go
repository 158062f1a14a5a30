// Package repository defines error types that are reused across multiple
// repositories. These sentinel values let higher layers distinguish
// failure scenarios without string matching. Contention errors in
// particular are expected outcomes, not exceptional ones: two callers
// racing for the same seat will always produce exactly one ErrSeatConflict.
package repository

import "errors"

// ErrShowingNotFound indicates that a showing was not located in the DB.
var ErrShowingNotFound = errors.New("showing not found")

// ErrShowingCancelled is returned when an operation targets a showing
// that has been administratively cancelled.
var ErrShowingCancelled = errors.New("showing cancelled")

// ErrBookingNotFound indicates that a booking was not located in the DB.
var ErrBookingNotFound = errors.New("booking not found")

// ErrSeatConflict is returned when a guarded seat transition finds the
// seat in a different state than expected. The loser of a race receives
// this error; the winner's write is never overwritten. Callers must
// surface it as "seat no longer available" and never retry blindly on
// the same seat.
var ErrSeatConflict = errors.New("seat state conflict")

// ErrSeatNoLongerHeld is returned by booking creation when one or more
// requested seats are not currently held by the caller, either because
// the hold expired and was swept or because it was never granted. The
// booking is not created and no partial rows remain.
var ErrSeatNoLongerHeld = errors.New("seat no longer held by caller")

// ErrHoldExpired is returned when a payment success arrives after the
// booking's seat holds have lapsed. The booking is cancelled and the
// captured funds must be refunded by the Payment collaborator.
var ErrHoldExpired = errors.New("hold expired before confirmation")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")
