// Command server runs the seat booking core: HTTP API, hold sweeper and
// payment result consumer.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"cinema-booking-core/internal/config"
	"cinema-booking-core/internal/database"
	"cinema-booking-core/internal/handler"
	"cinema-booking-core/internal/logger"
	"cinema-booking-core/internal/metrics"
	"cinema-booking-core/internal/middleware"
	"cinema-booking-core/internal/queue"
	"cinema-booking-core/internal/repository"
	"cinema-booking-core/internal/router"
	"cinema-booking-core/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger.Set(logger.New(cfg.Env))
	defer logger.Sync()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(db, cfg.MigrationsDir); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, rate limiting and response cache disabled")
	}

	m := metrics.New()

	txm := repository.NewTxManager(db)
	seatRepo := repository.NewSeatInventoryRepo(db)
	showingRepo := repository.NewShowingRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	events := queue.NewPublisher(cfg.AMQPURL)

	holds := service.NewHoldManager(txm, seatRepo, cfg.HoldTTL, m)
	bookings := service.NewBookingCoordinator(txm, seatRepo, bookingRepo, showingRepo, events, m)
	confirm := service.NewConfirmationService(txm, seatRepo, bookingRepo, events, m)
	showings := service.NewShowingService(txm, showingRepo, seatRepo, bookingRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewHoldSweeper(holds, cfg.SweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	go queue.StartPaymentConsumer(ctx, cfg.AMQPURL, confirm)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Instrument(m))

	router.Register(e, router.Deps{
		Checkout:    handler.NewCheckoutHandler(holds),
		Bookings:    handler.NewBookingHandler(bookings, confirm),
		Showings:    handler.NewShowingHandler(showings),
		JWTSecret:   cfg.JWTSecret,
		Redis:       rdb,
		RateCfg:     config.LoadRateLimitConfig(),
		CacheCfg:    config.LoadCacheConfig(),
		MetricsUser: cfg.MetricsUser,
		MetricsPass: cfg.MetricsPass,
	})

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil {
			logger.Info("http server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}
