package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"cinema-booking-core/internal/logger"
)

// HoldSweeper periodically releases lapsed holds so stale HELD rows do
// not linger in seat listings. Correctness never depends on it running:
// every read and guarded transition re-checks expiry against the
// database clock, the sweeper only keeps presented state tidy.
type HoldSweeper struct {
	holds    *HoldManager
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHoldSweeper builds a sweeper ticking at the given interval.
func NewHoldSweeper(holds *HoldManager, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{
		holds:    holds,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. One pass runs
// immediately so a restart clears holds that lapsed while the process
// was down.
func (w *HoldSweeper) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the loop and waits for the in-flight pass to finish.
func (w *HoldSweeper) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *HoldSweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("hold sweeper started", zap.Duration("interval", w.interval))
	w.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-w.stopCh:
			logger.Info("hold sweeper stopped")
			return
		case <-ctx.Done():
			logger.Info("hold sweeper stopped", zap.Error(ctx.Err()))
			return
		}
	}
}

func (w *HoldSweeper) sweep(ctx context.Context) {
	swept, err := w.holds.SweepAll(ctx)
	if err != nil {
		logger.Error("hold sweep pass failed", zap.Error(err))
		return
	}
	if swept > 0 {
		logger.Info("hold sweep pass", zap.Int("seats_released", swept))
	}
}
