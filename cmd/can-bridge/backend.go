package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/hub"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// initBackend selects the backend, starts its RX loop and returns a frame
// sender plus a cleanup. Errors are returned instead of exiting so the
// caller can shut down gracefully.
func initBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	switch cfg.backend {
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, h, l, wg)
	case "slcan":
		return initSlcanBackend(ctx, cfg, h, l, wg)
	default:
		return nil, func() {}, fmt.Errorf("unknown backend %q (use socketcan|slcan)", cfg.backend)
	}
}
