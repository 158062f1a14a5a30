package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/metrics"
	"cinema-booking-core/internal/repository"
)

// ErrNoSeats is returned when a request carries no usable seat IDs.
var ErrNoSeats = errors.New("no seat ids provided")

// HoldManager grants, renews and releases time-bounded seat holds for
// one caller, enforcing all-or-nothing semantics across each requested
// set. The underlying guarded transitions make the store the arbiter of
// which of two racing callers wins; the loser always sees the seat in
// the rejected list, never a silently overwritten hold.
type HoldManager struct {
	txm     repository.TxManager
	seats   SeatInventory
	holdTTL time.Duration
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewHoldManager constructs a HoldManager. holdTTL is the hold window
// granted on acquire and renew; the product default is 8 minutes.
func NewHoldManager(txm repository.TxManager, seats SeatInventory, holdTTL time.Duration, m *metrics.Metrics) *HoldManager {
	return &HoldManager{
		txm:     txm,
		seats:   seats,
		holdTTL: holdTTL,
		metrics: m,
		now:     time.Now,
	}
}

// HoldTTL returns the configured hold window.
func (m *HoldManager) HoldTTL() time.Duration { return m.holdTTL }

// AcquireResult reports the outcome of an acquire call. Granted and
// Rejected are mutually exclusive: the batch either succeeds for every
// requested seat or fails for the contested ones with nothing held.
type AcquireResult struct {
	Granted   []uint64
	Rejected  []uint64
	ExpiresAt time.Time
}

// Acquire attempts to hold every seat in seatIDs for callerID. If any
// seat is unavailable the whole transaction rolls back and the result
// lists exactly which seats were lost to a race, so the checkout UI can
// highlight them for reselection. A partial seat map is not a sellable
// outcome, so there is no partial grant path.
func (m *HoldManager) Acquire(ctx context.Context, showingID uint64, seatIDs []uint64, callerID string) (AcquireResult, error) {
	ids := dedupeIDs(seatIDs)
	if len(ids) == 0 {
		return AcquireResult{}, ErrNoSeats
	}
	expiresAt := m.now().UTC().Add(m.holdTTL)

	tx, err := m.txm.Begin(ctx)
	if err != nil {
		return AcquireResult{}, err
	}
	rejected, err := m.seats.HoldSeatsTx(ctx, tx, showingID, ids, callerID, expiresAt)
	if err != nil {
		_ = tx.Rollback()
		return AcquireResult{}, err
	}
	if len(rejected) > 0 {
		// All or nothing: undo the seats that did transition.
		_ = tx.Rollback()
		m.metrics.HoldsTotal.WithLabelValues("rejected").Inc()
		logger.Debug("hold rejected",
			zap.Uint64("showing_id", showingID),
			zap.String("caller_id", callerID),
			zap.Uint64s("rejected", rejected),
		)
		return AcquireResult{Rejected: rejected}, nil
	}
	if err := tx.Commit(); err != nil {
		return AcquireResult{}, err
	}
	m.metrics.HoldsTotal.WithLabelValues("granted").Inc()
	logger.Info("seats held",
		zap.Uint64("showing_id", showingID),
		zap.String("caller_id", callerID),
		zap.Int("count", len(ids)),
		zap.Time("expires_at", expiresAt),
	)
	return AcquireResult{Granted: ids, ExpiresAt: expiresAt}, nil
}

// Release frees every seat of the showing currently held by callerID
// and returns the released seat IDs. A hold that already expired and
// was taken over by someone else is left alone; the guarded transition
// only matches rows whose holder is exactly callerID.
func (m *HoldManager) Release(ctx context.Context, showingID uint64, callerID string) ([]uint64, error) {
	tx, err := m.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	released, err := m.seats.ReleaseByHolderTx(ctx, tx, showingID, callerID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if len(released) > 0 {
		logger.Info("holds released",
			zap.Uint64("showing_id", showingID),
			zap.String("caller_id", callerID),
			zap.Int("count", len(released)),
		)
	}
	return released, nil
}

// RenewResult reports which holds were extended and until when.
type RenewResult struct {
	Renewed   []uint64
	ExpiresAt time.Time
}

// Renew extends the expiry of the requested seats where they are still
// held by callerID. Seats the caller does not hold are silently skipped
// rather than erroring; the caller has no claim to extend on them.
// Holds are not indefinitely renewable in effect: booking creation must
// still complete before expiry or checkout restarts at seat selection.
func (m *HoldManager) Renew(ctx context.Context, showingID uint64, seatIDs []uint64, callerID string) (RenewResult, error) {
	ids := dedupeIDs(seatIDs)
	if len(ids) == 0 {
		return RenewResult{}, ErrNoSeats
	}
	expiresAt := m.now().UTC().Add(m.holdTTL)

	tx, err := m.txm.Begin(ctx)
	if err != nil {
		return RenewResult{}, err
	}
	renewed, err := m.seats.RenewHoldsTx(ctx, tx, showingID, ids, callerID, expiresAt)
	if err != nil {
		_ = tx.Rollback()
		return RenewResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return RenewResult{}, err
	}
	return RenewResult{Renewed: renewed, ExpiresAt: expiresAt}, nil
}

// Sweep releases expired holds for one showing and returns the freed
// seat IDs. Safe to call concurrently with itself and with acquires:
// each row change is guarded by the expiry predicate, so a hold renewed
// or sold between scan and update is left untouched.
func (m *HoldManager) Sweep(ctx context.Context, showingID uint64) ([]uint64, error) {
	tx, err := m.txm.Begin(ctx)
	if err != nil {
		return nil, err
	}
	freed, err := m.seats.SweepExpiredTx(ctx, tx, showingID)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if len(freed) > 0 {
		m.metrics.SweptSeatsTotal.Add(float64(len(freed)))
		logger.Info("expired holds swept",
			zap.Uint64("showing_id", showingID),
			zap.Int("count", len(freed)),
		)
	}
	return freed, nil
}

// SweepAll sweeps every showing that currently has held seats and
// returns the total number of freed seats.
func (m *HoldManager) SweepAll(ctx context.Context) (int, error) {
	showings, err := m.seats.ShowingsWithActiveHolds(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range showings {
		freed, err := m.Sweep(ctx, id)
		if err != nil {
			return total, err
		}
		total += len(freed)
	}
	if held, err := m.seats.CountHeld(ctx); err == nil {
		m.metrics.HeldSeats.Set(float64(held))
	}
	return total, nil
}

// dedupeIDs drops zero values and duplicates while preserving order.
func dedupeIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
