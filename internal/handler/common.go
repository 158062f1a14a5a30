// Package handler exposes the booking core over HTTP. Handlers bind and
// validate request bodies, delegate to the service layer and translate
// its sentinel errors into JSON responses; no business rules live here.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"cinema-booking-core/internal/middleware"
	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/repository"
)

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// callerID returns the authenticated caller. Without one it returns an
// HTTPError so the handler stops; echo renders the 401.
func callerID(c echo.Context) (string, error) {
	id := middleware.CallerID(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// fail maps repository and service sentinels to HTTP responses; unknown
// errors become an opaque 500.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrShowingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "showing not found"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrShowingCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "showing is cancelled"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// bookingResponse is the JSON shape of a booking across all endpoints.
type bookingResponse struct {
	ID         uint64             `json:"id"`
	BookingRef string             `json:"booking_ref"`
	ShowingID  uint64             `json:"showing_id"`
	Status     string             `json:"status"`
	SeatIDs    []uint64           `json:"seat_ids"`
	AddOns     []addOnResponse    `json:"add_ons,omitempty"`
	SeatsCents uint32             `json:"seats_total_cents"`
	ItemsCents uint32             `json:"items_total_cents"`
	TotalCents uint32             `json:"total_cents"`
	PaymentRef *string            `json:"payment_ref,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

type addOnResponse struct {
	Description    string `json:"description"`
	Quantity       uint32 `json:"quantity"`
	UnitPriceCents uint32 `json:"unit_price_cents"`
}

func toBookingResponse(b *model.Booking) bookingResponse {
	resp := bookingResponse{
		ID:         b.ID,
		BookingRef: b.BookingRef,
		ShowingID:  b.ShowingID,
		Status:     b.Status,
		SeatsCents: b.SeatsTotalCents,
		ItemsCents: b.ItemsTotalCents,
		TotalCents: b.TotalCents,
		PaymentRef: b.PaymentRef,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	for _, s := range b.Seats {
		resp.SeatIDs = append(resp.SeatIDs, s.ShowingSeatID)
	}
	for _, it := range b.Items {
		resp.AddOns = append(resp.AddOns, addOnResponse{
			Description:    it.Description,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}
	return resp
}
