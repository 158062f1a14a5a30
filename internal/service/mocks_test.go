package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
)

// MockTxManager implements repository.TxManager.
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Tx), args.Error(1)
}

// MockTx implements repository.Tx.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// newTxPair wires a manager that hands out one tx expecting the given
// terminal call.
func newTxPair(commit bool) (*MockTxManager, *MockTx) {
	tx := new(MockTx)
	if commit {
		tx.On("Commit").Return(nil)
	}
	tx.On("Rollback").Return(nil).Maybe()
	txm := new(MockTxManager)
	txm.On("Begin", mock.Anything).Return(tx, nil)
	return txm, tx
}

// MockSeatInventory implements SeatInventory.
type MockSeatInventory struct {
	mock.Mock
}

func (m *MockSeatInventory) ListByShowing(ctx context.Context, showingID uint64) ([]repository.SeatRow, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SeatRow), args.Error(1)
}

func (m *MockSeatInventory) CreateSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seats []repository.SeatRow) error {
	args := m.Called(ctx, tx, showingID, seats)
	return args.Error(0)
}

func (m *MockSeatInventory) HoldSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) ReleaseByHolderTx(ctx context.Context, tx repository.Tx, showingID uint64, callerID string) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) RenewHoldsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) SweepExpiredTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) HeldForUpdateTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) (map[uint64]uint32, []uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID)
	var prices map[uint64]uint32
	if args.Get(0) != nil {
		prices = args.Get(0).(map[uint64]uint32)
	}
	var missing []uint64
	if args.Get(1) != nil {
		missing = args.Get(1).([]uint64)
	}
	return prices, missing, args.Error(2)
}

func (m *MockSeatInventory) MarkSoldTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) ReleaseSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) error {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID)
	return args.Error(0)
}

func (m *MockSeatInventory) ForceReleaseShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) (int64, error) {
	args := m.Called(ctx, tx, showingID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSeatInventory) ShowingsWithActiveHolds(ctx context.Context) ([]uint64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockSeatInventory) CountHeld(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockBookingStore implements BookingStore.
type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) CreateTx(ctx context.Context, tx repository.Tx, b *model.Booking) error {
	args := m.Called(ctx, tx, b)
	return args.Error(0)
}

func (m *MockBookingStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) GetByRef(ctx context.Context, ref string) (*model.Booking, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) GetForUpdateTx(ctx context.Context, tx repository.Tx, id uint64) (*model.Booking, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *MockBookingStore) SetStatusTx(ctx context.Context, tx repository.Tx, id uint64, status string, paymentRef *string) (bool, error) {
	args := m.Called(ctx, tx, id, status, paymentRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) PendingByShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *MockBookingStore) ListByCaller(ctx context.Context, callerID string) ([]*model.Booking, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}

// MockShowingStore implements ShowingStore.
type MockShowingStore struct {
	mock.Mock
}

func (m *MockShowingStore) CreateTx(ctx context.Context, tx repository.Tx, s *model.Showing) error {
	args := m.Called(ctx, tx, s)
	return args.Error(0)
}

func (m *MockShowingStore) GetByID(ctx context.Context, id uint64) (*model.Showing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Showing), args.Error(1)
}

func (m *MockShowingStore) CancelTx(ctx context.Context, tx repository.Tx, id uint64) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockShowingStore) Upcoming(ctx context.Context, limit int) ([]model.Showing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Showing), args.Error(1)
}

// MockEventPublisher implements EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishBookingStateChanged(ctx context.Context, ev queue.BookingStateChangedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishRefundRequested(ctx context.Context, ev queue.RefundRequestedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}
