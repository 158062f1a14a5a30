package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/repository"
	"cinema-booking-core/internal/service"
)

// BookingHandler covers booking creation, payment confirmation and
// caller-scoped reads.
type BookingHandler struct {
	bookings *service.BookingCoordinator
	confirm  *service.ConfirmationService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(bookings *service.BookingCoordinator, confirm *service.ConfirmationService) *BookingHandler {
	return &BookingHandler{bookings: bookings, confirm: confirm}
}

type addOnRequest struct {
	Description    string `json:"description" validate:"required,max=255"`
	Quantity       uint32 `json:"quantity" validate:"required,gt=0,lte=100"`
	UnitPriceCents uint32 `json:"unit_price_cents" validate:"lte=10000000"`
}

type createBookingRequest struct {
	ShowingID  uint64         `json:"showing_id" validate:"required,gt=0"`
	SeatIDs    []uint64       `json:"seat_ids" validate:"required,min=1,max=10,dive,gt=0"`
	AddOns     []addOnRequest `json:"add_ons" validate:"max=20,dive"`
	TotalCents uint32         `json:"total_cents" validate:"required,gt=0"`
}

// Create handles POST /v1/bookings. The caller submits the seats it
// holds plus optional add-ons and the quoted grand total; the booking is
// written atomically after every seat's hold is re-verified.
func (h *BookingHandler) Create(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	in := service.CreateBookingInput{
		CallerID:   caller,
		ShowingID:  body.ShowingID,
		SeatIDs:    body.SeatIDs,
		TotalCents: body.TotalCents,
	}
	for _, a := range body.AddOns {
		in.Items = append(in.Items, model.BookingItem{
			Description:    a.Description,
			Quantity:       a.Quantity,
			UnitPriceCents: a.UnitPriceCents,
		})
	}

	booking, missing, err := h.bookings.Create(c.Request().Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatNoLongerHeld):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":   "seats are no longer held",
				"missing": missing,
			})
		case errors.Is(err, service.ErrTotalsMismatch):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "total does not match line items"})
		case errors.Is(err, service.ErrNoSeats):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid seat IDs provided"})
		default:
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusCreated, toBookingResponse(booking))
}

type confirmRequest struct {
	Outcome    string `json:"outcome" validate:"required,oneof=SUCCEEDED FAILED"`
	PaymentRef string `json:"payment_ref" validate:"max=128"`
}

// Confirm handles POST /v1/bookings/:id/confirm, the Payment
// collaborator's push path. Delivery is at-least-once, so a booking
// already in a terminal state is answered with that state and 200.
// A payment that succeeded after the holds lapsed yields the cancelled
// booking with refund_requested set.
func (h *BookingHandler) Confirm(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var body confirmRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	var ref *string
	if body.PaymentRef != "" {
		ref = &body.PaymentRef
	}

	booking, err := h.confirm.Finalize(c.Request().Context(), bookingID, body.Outcome, ref)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrHoldExpired):
			return c.JSON(http.StatusOK, echo.Map{
				"booking":          toBookingResponse(booking),
				"refund_requested": true,
			})
		case errors.Is(err, service.ErrInvalidOutcome):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payment outcome"})
		default:
			return fail(c, err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": toBookingResponse(booking)})
}

// Get handles GET /v1/bookings/:id. Bookings are private to their
// creator; someone else's booking reads as 403, not 404.
func (h *BookingHandler) Get(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	booking, err := h.bookings.GetForCaller(c.Request().Context(), bookingID, caller)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResponse(booking))
}

// List handles GET /v1/my-bookings.
func (h *BookingHandler) List(c echo.Context) error {
	caller, err := callerID(c)
	if err != nil {
		return err
	}
	bookings, err := h.bookings.ListForCaller(c.Request().Context(), caller)
	if err != nil {
		return fail(c, err)
	}
	out := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingResponse(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
