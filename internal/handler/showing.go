package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"cinema-booking-core/internal/model"
	"cinema-booking-core/internal/service"
)

// ShowingHandler serves the public seat-map read path and the Catalog
// collaborator's ingestion and cancellation endpoints.
type ShowingHandler struct {
	showings *service.ShowingService
}

// NewShowingHandler constructs the handler.
func NewShowingHandler(showings *service.ShowingService) *ShowingHandler {
	return &ShowingHandler{showings: showings}
}

type seatTemplateRequest struct {
	RowLabel   string `json:"row_label" validate:"required,max=8"`
	SeatNumber uint32 `json:"seat_number" validate:"required,gt=0"`
	SeatClass  string `json:"seat_class" validate:"required"`
}

type createShowingRequest struct {
	MovieTitle string                `json:"movie_title" validate:"required,max=255"`
	ScreenName string                `json:"screen_name" validate:"required,max=64"`
	StartsAt   time.Time             `json:"starts_at" validate:"required"`
	PriceTable map[string]uint32     `json:"price_table" validate:"required,min=1"`
	Seats      []seatTemplateRequest `json:"seats" validate:"required,min=1,max=1000,dive"`
}

// Create handles POST /v1/showings. The Catalog collaborator pushes the
// showing metadata, the seat map template and the per-class price table;
// showing and inventory are created together and immutable afterwards.
func (h *ShowingHandler) Create(c echo.Context) error {
	var body createShowingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&body); err != nil {
		return err
	}
	in := service.CreateShowingInput{
		MovieTitle: body.MovieTitle,
		ScreenName: body.ScreenName,
		StartsAt:   body.StartsAt.UTC(),
		PriceTable: body.PriceTable,
	}
	for _, s := range body.Seats {
		in.Seats = append(in.Seats, model.SeatTemplate{
			RowLabel:   s.RowLabel,
			SeatNumber: s.SeatNumber,
			SeatClass:  s.SeatClass,
		})
	}
	showing, seatCount, err := h.showings.CreateShowing(c.Request().Context(), in)
	if err != nil {
		if errors.Is(err, service.ErrEmptySeatMap) || errors.Is(err, service.ErrBadTemplate) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":          showing.ID,
		"movie_title": showing.MovieTitle,
		"screen_name": showing.ScreenName,
		"starts_at":   showing.StartsAt.Format(time.RFC3339),
		"status":      showing.Status,
		"seat_count":  seatCount,
	})
}

// Cancel handles DELETE /v1/showings/:id: cancels the showing, its
// pending bookings, and frees every held seat.
func (h *ShowingHandler) Cancel(c echo.Context) error {
	showingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	cancelled, err := h.showings.CancelShowing(c.Request().Context(), showingID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":             model.ShowingCancelled,
		"bookings_cancelled": cancelled,
	})
}

type seatResponse struct {
	ID         uint64 `json:"id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	SeatClass  string `json:"seat_class"`
	PriceCents uint32 `json:"price_cents"`
	Status     string `json:"status"`
}

// Seats handles GET /v1/showings/:id/seats, the public browse path.
// Lapsed holds are presented as AVAILABLE even before the sweeper runs.
func (h *ShowingHandler) Seats(c echo.Context) error {
	showingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if _, err := h.showings.GetShowing(c.Request().Context(), showingID); err != nil {
		return fail(c, err)
	}
	seats, err := h.showings.ListSeats(c.Request().Context(), showingID)
	if err != nil {
		return fail(c, err)
	}
	out := make([]seatResponse, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatResponse{
			ID:         s.ID,
			RowLabel:   s.RowLabel,
			SeatNumber: s.SeatNumber,
			SeatClass:  s.SeatClass,
			PriceCents: s.PriceCents,
			Status:     s.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": out})
}

// Upcoming handles GET /v1/showings.
func (h *ShowingHandler) Upcoming(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	showings, err := h.showings.ListUpcoming(c.Request().Context(), limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(showings))
	for _, s := range showings {
		out = append(out, echo.Map{
			"id":          s.ID,
			"movie_title": s.MovieTitle,
			"screen_name": s.ScreenName,
			"starts_at":   s.StartsAt.Format(time.RFC3339),
			"status":      s.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"showings": out})
}
