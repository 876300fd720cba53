package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Stopper is anything that can shut down within a deadline.
type Stopper func(ctx context.Context) error

// Wait blocks until SIGINT or SIGTERM, then runs the stoppers in order under
// a shared timeout. Order matters: listeners first so no new work arrives,
// then the fan-out and bus, storage last.
func Wait(timeout time.Duration, logger *zap.Logger, stoppers ...Stopper) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, stop := range stoppers {
		if err := stop(ctx); err != nil {
			logger.Error("Shutdown step failed", zap.Error(err))
		}
	}
	logger.Info("Shutdown complete")
}
