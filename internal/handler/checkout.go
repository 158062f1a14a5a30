package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"cinema-booking-core/internal/service"
)

// CheckoutHandler drives the seat-selection phase: acquiring, renewing
// and releasing holds for the authenticated customer.
type CheckoutHandler struct {
	holds *service.HoldManager
}

// NewCheckoutHandler constructs the handler.
func NewCheckoutHandler(holds *service.HoldManager) *CheckoutHandler {
	return &CheckoutHandler{holds: holds}
}

type holdRequest struct {
	SeatIDs []uint64 `json:"seat_ids" validate:"required,min=1,max=10,dive,gt=0"`
}

// HoldSeats handles POST /v1/showings/:id/hold. The batch is
// all-or-nothing: when any seat is taken, nothing is held and the
// response lists the seats lost to the race so the customer can reselect.
func (h *CheckoutHandler) HoldSeats(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	showingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}

	res, err := h.holds.Acquire(c.Request().Context(), showingID, body.SeatIDs, caller)
	if err != nil {
		if errors.Is(err, service.ErrNoSeats) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid seat IDs provided"})
		}
		return fail(c, err)
	}
	if len(res.Rejected) > 0 {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":    "some seats are unavailable",
			"rejected": res.Rejected,
		})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"granted":    res.Granted,
		"expires_at": res.ExpiresAt.Format(time.RFC3339),
	})
}

// ReleaseHold handles DELETE /v1/showings/:id/hold and frees every seat
// the caller holds on the showing. Releasing nothing is not an error.
func (h *CheckoutHandler) ReleaseHold(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	showingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	released, err := h.holds.Release(c.Request().Context(), showingID, caller)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// RenewHold handles POST /v1/showings/:id/hold/renew. Only seats still
// held by the caller get the fresh expiry; lapsed ones are reported back
// as not renewed rather than silently re-acquired.
func (h *CheckoutHandler) RenewHold(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	showingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body holdRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	res, err := h.holds.Renew(c.Request().Context(), showingID, body.SeatIDs, caller)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"renewed":    res.Renewed,
		"expires_at": res.ExpiresAt.Format(time.RFC3339),
	})
}
