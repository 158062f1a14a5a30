package model

import "time"

// Booking statuses.  PENDING is the only non-terminal state; the
// confirmation path is the sole writer of CONFIRMED and CANCELLED.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking aggregates the seats and add-on items a caller purchased for
// one showing.  It is created in PENDING state while payment is
// attempted and moved to exactly one terminal state afterwards.
//
// Fields:
//  ID              – primary key identifier.
//  BookingRef      – UUID exposed to external collaborators; used as the
//                    idempotency handle for payment callbacks.
//  CallerID        – opaque authenticated caller id that owns the booking.
//  ShowingID       – showing the seats belong to.
//  Status          – PENDING, CONFIRMED or CANCELLED.
//  SeatsTotalCents – sum of the seat price snapshots.
//  ItemsTotalCents – sum of quantity × unit price over the add-on items.
//  TotalCents      – SeatsTotalCents + ItemsTotalCents.
//  PaymentRef      – external payment reference once known (nullable).
//  Seats           – seat line items referencing showing_seats rows.
//  Items           – add-on line items (opaque to this core).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Booking struct {
	ID              uint64        // bookings.id
	BookingRef      string        // bookings.booking_ref
	CallerID        string        // bookings.caller_id
	ShowingID       uint64        // bookings.showing_id
	Status          string        // bookings.status
	SeatsTotalCents uint32        // bookings.seats_total_cents
	ItemsTotalCents uint32        // bookings.items_total_cents
	TotalCents      uint32        // bookings.total_cents
	PaymentRef      *string       // bookings.payment_ref (nullable)
	Seats           []BookingSeat // bookings -> booking_seats
	Items           []BookingItem // bookings -> booking_items
	CreatedAt       time.Time     // bookings.created_at
	UpdatedAt       time.Time     // bookings.updated_at
}

// Terminal reports whether the booking has reached CONFIRMED or
// CANCELLED.  Payment callbacks are delivered at least once, so the
// confirmation path treats a terminal booking as a no-op and returns
// the existing state instead of erroring.
func (b *Booking) Terminal() bool {
	return b.Status == BookingConfirmed || b.Status == BookingCancelled
}

// BookingSeat links a booking to one showing seat at the price the
// seat was sold for.
//
// Fields:
//  ID            – primary key identifier.
//  BookingID     – owning booking.
//  ShowingSeatID – the showing_seats row this line sold.
//  PriceCents    – seat price at booking time.
type BookingSeat struct {
	ID            uint64 // booking_seats.id
	BookingID     uint64 // booking_seats.booking_id
	ShowingSeatID uint64 // booking_seats.showing_seat_id
	PriceCents    uint32 // booking_seats.price_cents
}

// BookingItem is an add-on line item such as a snack combo.  The core
// treats it as opaque: only the description, quantity and unit price
// matter here; catalog and pricing live with external collaborators.
//
// Fields:
//  ID             – primary key identifier.
//  BookingID      – owning booking.
//  Description    – human-readable label supplied by the caller.
//  Quantity       – number of units ordered; must be positive.
//  UnitPriceCents – price per unit in cents.
type BookingItem struct {
	ID             uint64 // booking_items.id
	BookingID      uint64 // booking_items.booking_id
	Description    string // booking_items.description
	Quantity       uint32 // booking_items.quantity
	UnitPriceCents uint32 // booking_items.unit_price_cents
}

// LineTotalCents returns quantity × unit price for one add-on item,
// widened to 64 bits so an oversized line cannot wrap around.
func (i BookingItem) LineTotalCents() uint64 {
	return uint64(i.Quantity) * uint64(i.UnitPriceCents)
}

// PaymentOutcome is the result the Payment collaborator reports for a
// booking.  Anything other than these two values is rejected.
const (
	PaymentSucceeded = "SUCCEEDED"
	PaymentFailed    = "FAILED"
)

// ValidPaymentOutcome reports whether o is a recognised payment outcome.
func ValidPaymentOutcome(o string) bool {
	return o == PaymentSucceeded || o == PaymentFailed
}
