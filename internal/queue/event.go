// Package queue defines the message payloads exchanged with external
// collaborators over the broker, the publisher that emits them and the
// consumer that feeds payment results into the confirmation path.
package queue

// Queue names. Durable queues on the default exchange, one per message
// kind, matching what the collaborators declare on their side.
const (
	BookingStateQueue  = "booking.state-changed"
	RefundRequestQueue = "refund.requested"
	PaymentResultQueue = "payment.results"
)

// BookingStateChangedEvent is emitted whenever a booking enters a new
// state (PENDING on creation, CONFIRMED or CANCELLED on finalization).
// It carries enough for the Notification collaborator to build a ticket
// or cancellation message without querying the primary database.
type BookingStateChangedEvent struct {
	BookingID  uint64   `json:"booking_id"`
	BookingRef string   `json:"booking_ref"`
	NewStatus  string   `json:"new_status"`
	CallerID   string   `json:"caller_id"`
	ShowingID  uint64   `json:"showing_id"`
	SeatIDs    []uint64 `json:"seat_ids"`
	TotalCents uint32   `json:"total_cents"`
	OccurredAt string   `json:"occurred_at"`
}

// RefundRequestedEvent is emitted toward the Payment collaborator when
// captured funds must be returned: a payment success arrived after the
// booking's holds had lapsed. This obligation is surfaced explicitly,
// never silently absorbed.
type RefundRequestedEvent struct {
	BookingRef string `json:"booking_ref"`
	PaymentRef string `json:"payment_ref"`
	Reason     string `json:"reason"`
	OccurredAt string `json:"occurred_at"`
}

// PaymentResultEvent is consumed from the Payment collaborator. The
// outcome is SUCCEEDED or FAILED; delivery is at-least-once, so the
// confirmation path treats repeats as no-ops.
type PaymentResultEvent struct {
	BookingRef string `json:"booking_ref"`
	Outcome    string `json:"outcome"`
	PaymentRef string `json:"payment_ref"`
}
