// Package router wires handlers, middleware and route groups onto the
// echo instance.
package router

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"cinema-booking-core/internal/config"
	"cinema-booking-core/internal/handler"
	"cinema-booking-core/internal/middleware"
)

// Deps carries everything the routes need.
type Deps struct {
	Checkout  *handler.CheckoutHandler
	Bookings  *handler.BookingHandler
	Showings  *handler.ShowingHandler
	JWTSecret string
	Redis     *redis.Client
	RateCfg   config.RateLimitConfig
	CacheCfg  config.CacheConfig

	// MetricsUser/MetricsPass guard /metrics; empty user leaves the
	// endpoint open (dev setups).
	MetricsUser string
	MetricsPass string
}

// Register mounts every route. The public browse path carries the
// response cache; the hold endpoints carry the rate limiter; role
// groups separate customer, payment and catalog callers.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	metricsHandler := echo.WrapHandler(promhttp.Handler())
	if d.MetricsUser != "" {
		mg := e.Group("/metrics")
		mg.Use(echomw.BasicAuth(func(user, pass string, c echo.Context) (bool, error) {
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(d.MetricsUser)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(d.MetricsPass)) == 1
			return userOK && passOK, nil
		}))
		mg.GET("", metricsHandler)
	} else {
		e.GET("/metrics", metricsHandler)
	}

	// Public browse endpoints, no identity required.
	e.GET("/v1/showings", d.Showings.Upcoming)
	e.GET("/v1/showings/:id/seats", d.Showings.Seats,
		middleware.ResponseCache(d.CacheCfg, d.Redis))

	// Customer checkout and booking reads.
	customer := e.Group("/v1")
	customer.Use(middleware.CallerAuth(d.JWTSecret))
	customer.Use(middleware.RequireRole(middleware.RoleCustomer))

	rl := middleware.RateLimit(d.RateCfg, d.Redis)
	customer.POST("/showings/:id/hold", d.Checkout.HoldSeats, rl)
	customer.DELETE("/showings/:id/hold", d.Checkout.ReleaseHold, rl)
	customer.POST("/showings/:id/hold/renew", d.Checkout.RenewHold, rl)
	customer.POST("/bookings", d.Bookings.Create, rl)
	customer.GET("/bookings/:id", d.Bookings.Get)
	customer.GET("/my-bookings", d.Bookings.List)

	// Payment collaborator push path.
	payment := e.Group("/v1")
	payment.Use(middleware.CallerAuth(d.JWTSecret))
	payment.Use(middleware.RequireRole(middleware.RolePayment))
	payment.POST("/bookings/:id/confirm", d.Bookings.Confirm)

	// Catalog collaborator ingestion and cancellation.
	catalog := e.Group("/v1")
	catalog.Use(middleware.CallerAuth(d.JWTSecret))
	catalog.Use(middleware.RequireRole(middleware.RoleCatalog))
	catalog.POST("/showings", d.Showings.Create)
	catalog.DELETE("/showings/:id", d.Showings.Cancel)
}
