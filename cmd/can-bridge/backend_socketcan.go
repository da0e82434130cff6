package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/hub"
	"github.com/kstaniek/go-can-driver/internal/metrics"
	"github.com/kstaniek/go-can-driver/socketcan"
)

// canBus is the driver surface the backend needs; *socketcan.Driver in
// production, fakes in tests.
type canBus interface {
	WaitForFrames(timeout time.Duration) (bool, error)
	ReadBatch(n int) ([]can.Frame, error)
	SendFrame(f can.Frame, forceExtended bool) (int, error)
	Close() error
}

// openCANDriver is a hook for tests (overridden in unit tests).
var openCANDriver = func(cfg *appConfig) (canBus, error) {
	return socketcan.Open(cfg.canIf,
		socketcan.WithFilter(cfg.filterMask),
		socketcan.WithDefaultSender(can.Identifier(cfg.defaultSender)),
	)
}

// initSocketCANBackend opens the driver and launches the RX loop: wait for
// readiness, then drain the reported pending count as one batch.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, h *hub.Hub, l *slog.Logger, wg *sync.WaitGroup) (func(can.Frame) error, func(), error) {
	drv, err := openCANDriver(cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("socketcan_open", "if", cfg.canIf, "filter_mask", fmt.Sprintf("%#x", cfg.filterMask))
	tw := socketcan.NewTXWriter(ctx, drv, txQueueSize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		backoff := rxBackoffMin
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			ok, err := drv.WaitForFrames(rxPollTimeout)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, socketcan.ErrInvalidSocket) {
					return
				}
				metrics.IncError(metrics.ErrDriverRead)
				l.Warn("socketcan_wait_error", "error", err, "backoff", backoff)
				sleepFn(backoff)
				backoff *= 2
				if backoff > rxBackoffMax {
					backoff = rxBackoffMax
				}
				continue
			}
			if !ok {
				continue
			}
			frames, err := drv.ReadBatch(0)
			for _, fr := range frames {
				h.Broadcast(fr)
			}
			metrics.AddDriverRx(len(frames))
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, socketcan.ErrInvalidSocket) {
					return
				}
				metrics.IncError(metrics.ErrDriverRead)
				l.Warn("socketcan_read_error", "error", err)
				continue
			}
			backoff = rxBackoffMin
		}
	}()
	return tw.SendFrame, func() { tw.Close(); _ = drv.Close() }, nil
}
