package service

import (
	"context"
	"sync"
	"time"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/repository"
)

// memInventory is an in-memory SeatInventory plus TxManager that mirrors
// the guarded transitions of SeatInventoryRepo. A transaction holds the
// store lock from Begin to Commit/Rollback and keeps an undo log, so
// racing service calls serialise exactly like InnoDB row locks do and a
// rolled-back batch leaves no trace. The concurrency property tests run
// real services against it.
type memInventory struct {
	mu    sync.Mutex
	seats map[uint64]map[uint64]*memSeat
	now   func() time.Time
}

type memSeat struct {
	status     string
	holder     string
	expiresAt  time.Time
	priceCents uint32
}

func newMemInventory(now func() time.Time) *memInventory {
	return &memInventory{seats: make(map[uint64]map[uint64]*memSeat), now: now}
}

// addSeats seeds a showing with available seats at the given price.
func (s *memInventory) addSeats(showingID uint64, price uint32, seatIDs ...uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.seats[showingID]
	if !ok {
		m = make(map[uint64]*memSeat)
		s.seats[showingID] = m
	}
	for _, id := range seatIDs {
		m[id] = &memSeat{status: model.SeatAvailable, priceCents: price}
	}
}

func (s *memInventory) seat(showingID, seatID uint64) memSeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.seats[showingID][seatID]
}

type memTx struct {
	inv  *memInventory
	undo []func()
	done bool
}

func (s *memInventory) Begin(context.Context) (repository.Tx, error) {
	s.mu.Lock()
	return &memTx{inv: s}, nil
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.inv.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.inv.mu.Unlock()
	return nil
}

// change snapshots one seat into the undo log and applies fn to it.
func (t *memTx) change(seat *memSeat, fn func(*memSeat)) {
	prev := *seat
	t.undo = append(t.undo, func() { *seat = prev })
	fn(seat)
}

func (s *memInventory) ListByShowing(ctx context.Context, showingID uint64) ([]repository.SeatRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rows := make([]repository.SeatRow, 0, len(s.seats[showingID]))
	for id, seat := range s.seats[showingID] {
		row := repository.SeatRow{ID: id, ShowingID: showingID, Status: seat.status, PriceCents: seat.priceCents}
		if seat.status == model.SeatHeld && seat.expiresAt.After(now) {
			holder, exp := seat.holder, seat.expiresAt
			row.HolderID, row.HoldExpiresAt = &holder, &exp
		} else if seat.status == model.SeatHeld {
			row.Status = model.SeatAvailable
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *memInventory) CreateSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seats []repository.SeatRow) error {
	m, ok := s.seats[showingID]
	if !ok {
		m = make(map[uint64]*memSeat)
		s.seats[showingID] = m
	}
	for i, row := range seats {
		m[uint64(i)+1] = &memSeat{status: model.SeatAvailable, priceCents: row.PriceCents}
	}
	return nil
}

func (s *memInventory) HoldSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	t := tx.(*memTx)
	now := s.now()
	var rejected []uint64
	for _, id := range seatIDs {
		seat, ok := s.seats[showingID][id]
		if !ok {
			rejected = append(rejected, id)
			continue
		}
		lapsed := seat.status == model.SeatHeld && !seat.expiresAt.After(now)
		if seat.status != model.SeatAvailable && !lapsed {
			rejected = append(rejected, id)
			continue
		}
		t.change(seat, func(x *memSeat) {
			x.status, x.holder, x.expiresAt = model.SeatHeld, callerID, expiresAt
		})
	}
	return rejected, nil
}

func (s *memInventory) ReleaseByHolderTx(ctx context.Context, tx repository.Tx, showingID uint64, callerID string) ([]uint64, error) {
	t := tx.(*memTx)
	var released []uint64
	for id, seat := range s.seats[showingID] {
		if seat.status == model.SeatHeld && seat.holder == callerID {
			t.change(seat, func(x *memSeat) {
				x.status, x.holder, x.expiresAt = model.SeatAvailable, "", time.Time{}
			})
			released = append(released, id)
		}
	}
	return released, nil
}

func (s *memInventory) RenewHoldsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	t := tx.(*memTx)
	now := s.now()
	var renewed []uint64
	for _, id := range seatIDs {
		seat, ok := s.seats[showingID][id]
		if !ok || seat.status != model.SeatHeld || seat.holder != callerID || !seat.expiresAt.After(now) {
			continue
		}
		t.change(seat, func(x *memSeat) { x.expiresAt = expiresAt })
		renewed = append(renewed, id)
	}
	return renewed, nil
}

func (s *memInventory) SweepExpiredTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error) {
	t := tx.(*memTx)
	now := s.now()
	var freed []uint64
	for id, seat := range s.seats[showingID] {
		if seat.status == model.SeatHeld && !seat.expiresAt.After(now) {
			t.change(seat, func(x *memSeat) {
				x.status, x.holder, x.expiresAt = model.SeatAvailable, "", time.Time{}
			})
			freed = append(freed, id)
		}
	}
	return freed, nil
}

func (s *memInventory) HeldForUpdateTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) (map[uint64]uint32, []uint64, error) {
	now := s.now()
	prices := make(map[uint64]uint32, len(seatIDs))
	var missing []uint64
	for _, id := range seatIDs {
		seat, ok := s.seats[showingID][id]
		if !ok || seat.status != model.SeatHeld || seat.holder != callerID || !seat.expiresAt.After(now) {
			missing = append(missing, id)
			continue
		}
		prices[id] = seat.priceCents
	}
	return prices, missing, nil
}

func (s *memInventory) MarkSoldTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) ([]uint64, error) {
	t := tx.(*memTx)
	now := s.now()
	var failed []uint64
	for _, id := range seatIDs {
		seat, ok := s.seats[showingID][id]
		if !ok || seat.status != model.SeatHeld || seat.holder != callerID || !seat.expiresAt.After(now) {
			failed = append(failed, id)
			continue
		}
		t.change(seat, func(x *memSeat) { x.status, x.expiresAt = model.SeatSold, time.Time{} })
	}
	return failed, nil
}

func (s *memInventory) ReleaseSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) error {
	t := tx.(*memTx)
	for _, id := range seatIDs {
		seat, ok := s.seats[showingID][id]
		if !ok || seat.status != model.SeatHeld || seat.holder != callerID {
			continue
		}
		t.change(seat, func(x *memSeat) {
			x.status, x.holder, x.expiresAt = model.SeatAvailable, "", time.Time{}
		})
	}
	return nil
}

func (s *memInventory) ForceReleaseShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) (int64, error) {
	t := tx.(*memTx)
	var n int64
	for _, seat := range s.seats[showingID] {
		if seat.status == model.SeatHeld {
			t.change(seat, func(x *memSeat) {
				x.status, x.holder, x.expiresAt = model.SeatAvailable, "", time.Time{}
			})
			n++
		}
	}
	return n, nil
}

func (s *memInventory) ShowingsWithActiveHolds(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for showingID, seats := range s.seats {
		for _, seat := range seats {
			if seat.status == model.SeatHeld {
				ids = append(ids, showingID)
				break
			}
		}
	}
	return ids, nil
}

func (s *memInventory) CountHeld(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for _, seats := range s.seats {
		for _, seat := range seats {
			if seat.status == model.SeatHeld && seat.expiresAt.After(now) {
				n++
			}
		}
	}
	return n, nil
}

// memClock is a settable clock shared by the store and the services.
type memClock struct {
	mu sync.Mutex
	t  time.Time
}

func newMemClock(start time.Time) *memClock { return &memClock{t: start} }

func (c *memClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *memClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
