package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cinema-booking-core/internal/metrics"
	"cinema-booking-core/internal/middleware"
	"cinema-booking-core/internal/repository"
	"cinema-booking-core/internal/service"
)

// mockTxManager and friends mirror the service-level test doubles; the
// handlers sit on concrete services, so tests drive them through mocked
// stores underneath.
type mockTxManager struct{ mock.Mock }

func (m *mockTxManager) Begin(ctx context.Context) (repository.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(repository.Tx), args.Error(1)
}

type mockTx struct{ mock.Mock }

func (m *mockTx) Commit() error   { return m.Called().Error(0) }
func (m *mockTx) Rollback() error { return m.Called().Error(0) }

type mockSeats struct{ mock.Mock }

func (m *mockSeats) ListByShowing(ctx context.Context, showingID uint64) ([]repository.SeatRow, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SeatRow), args.Error(1)
}

func (m *mockSeats) CreateSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seats []repository.SeatRow) error {
	return m.Called(ctx, tx, showingID, seats).Error(0)
}

func (m *mockSeats) HoldSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) ReleaseByHolderTx(ctx context.Context, tx repository.Tx, showingID uint64, callerID string) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) RenewHoldsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string, expiresAt time.Time) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) SweepExpiredTx(ctx context.Context, tx repository.Tx, showingID uint64) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) HeldForUpdateTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) (map[uint64]uint32, []uint64, error) {
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

func (m *mockSeats) MarkSoldTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) ([]uint64, error) {
	args := m.Called(ctx, tx, showingID, seatIDs, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) ReleaseSeatsTx(ctx context.Context, tx repository.Tx, showingID uint64, seatIDs []uint64, callerID string) error {
	return m.Called(ctx, tx, showingID, seatIDs, callerID).Error(0)
}

func (m *mockSeats) ForceReleaseShowingTx(ctx context.Context, tx repository.Tx, showingID uint64) (int64, error) {
	args := m.Called(ctx, tx, showingID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSeats) ShowingsWithActiveHolds(ctx context.Context) ([]uint64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint64), args.Error(1)
}

func (m *mockSeats) CountHeld(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newHoldManager(seats *mockSeats, commit bool) *service.HoldManager {
	tx := new(mockTx)
	if commit {
		tx.On("Commit").Return(nil)
	}
	tx.On("Rollback").Return(nil).Maybe()
	txm := new(mockTxManager)
	txm.On("Begin", mock.Anything).Return(tx, nil)
	return service.NewHoldManager(txm, seats, 8*time.Minute, metrics.NewWithRegistry(prometheus.NewRegistry()))
}

func doCheckout(t *testing.T, h func(c echo.Context) error, method, target, body, caller string, showingID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(target)
	c.SetParamNames("id")
	c.SetParamValues(showingID)
	if caller != "" {
		c.Set(middleware.ContextCallerID, caller)
	}
	require.NoError(t, h(c))
	return rec
}

func TestHoldSeatsCreated(t *testing.T) {
	seats := new(mockSeats)
	seats.On("HoldSeatsTx", mock.Anything, mock.Anything, uint64(7), []uint64{11, 12}, "caller-1", mock.Anything).
		Return([]uint64{}, nil)

	h := NewCheckoutHandler(newHoldManager(seats, true))
	rec := doCheckout(t, h.HoldSeats, http.MethodPost, "/v1/showings/:id/hold",
		`{"seat_ids":[11,12]}`, "caller-1", "7")

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Granted   []uint64 `json:"granted"`
		ExpiresAt string   `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []uint64{11, 12}, resp.Granted)
	assert.NotEmpty(t, resp.ExpiresAt)
}

func TestHoldSeatsConflictListsRejected(t *testing.T) {
	seats := new(mockSeats)
	seats.On("HoldSeatsTx", mock.Anything, mock.Anything, uint64(7), []uint64{11, 12}, "caller-1", mock.Anything).
		Return([]uint64{12}, nil)

	h := NewCheckoutHandler(newHoldManager(seats, false))
	rec := doCheckout(t, h.HoldSeats, http.MethodPost, "/v1/showings/:id/hold",
		`{"seat_ids":[11,12]}`, "caller-1", "7")

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp struct {
		Rejected []uint64 `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []uint64{12}, resp.Rejected)
}

func TestHoldSeatsRequiresAuth(t *testing.T) {
	seats := new(mockSeats)
	h := NewCheckoutHandler(newHoldManager(seats, false))

	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/v1/showings/7/hold", strings.NewReader(`{"seat_ids":[11]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")

	err := h.HoldSeats(c)
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
	// The handler must stop before touching the inventory.
	seats.AssertNotCalled(t, "HoldSeatsTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHoldSeatsBadShowingID(t *testing.T) {
	h := NewCheckoutHandler(newHoldManager(new(mockSeats), false))
	rec := doCheckout(t, h.HoldSeats, http.MethodPost, "/v1/showings/:id/hold",
		`{"seat_ids":[11]}`, "caller-1", "zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseHold(t *testing.T) {
	seats := new(mockSeats)
	seats.On("ReleaseByHolderTx", mock.Anything, mock.Anything, uint64(7), "caller-1").
		Return([]uint64{11}, nil)

	h := NewCheckoutHandler(newHoldManager(seats, true))
	rec := doCheckout(t, h.ReleaseHold, http.MethodDelete, "/v1/showings/:id/hold",
		"", "caller-1", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Released []uint64 `json:"released"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []uint64{11}, resp.Released)
}

func TestRenewHoldReportsRenewedSubset(t *testing.T) {
	seats := new(mockSeats)
	seats.On("RenewHoldsTx", mock.Anything, mock.Anything, uint64(7), []uint64{11, 12}, "caller-1", mock.Anything).
		Return([]uint64{11}, nil)

	h := NewCheckoutHandler(newHoldManager(seats, true))
	rec := doCheckout(t, h.RenewHold, http.MethodPost, "/v1/showings/:id/hold/renew",
		`{"seat_ids":[11,12]}`, "caller-1", "7")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Renewed []uint64 `json:"renewed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []uint64{11}, resp.Renewed)
}
