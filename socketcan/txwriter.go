package socketcan

import (
	"context"
	"errors"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/metrics"
	"github.com/kstaniek/go-can-driver/internal/transport"
)

// ErrTxOverflow is returned when the async send buffer is full.
var ErrTxOverflow = errors.New("socketcan tx overflow")

// Sender is the send surface the TXWriter needs. Implemented by *Driver in
// production and by fakes in tests.
type Sender interface {
	SendFrame(can.Frame, bool) (int, error)
}

// TXWriter funnels driver sends through a single goroutine so many
// producers can share one Driver without contending on its send lock.
type TXWriter struct{ base *transport.AsyncTx }

// NewTXWriter creates a TXWriter with a buffered channel of size buf.
func NewTXWriter(parent context.Context, s Sender, buf int) *TXWriter {
	send := func(fr can.Frame) error {
		_, err := s.SendFrame(fr, false)
		return err
	}
	hooks := transport.Hooks{
		OnError: func(err error) { metrics.IncError(metrics.ErrDriverWrite) },
		OnAfter: func() { metrics.IncDriverTx() },
		OnDrop: func() error {
			metrics.IncError(metrics.ErrDriverOver)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

// SendFrame queues a frame for asynchronous write (drops with ErrTxOverflow
// if the buffer is full).
func (w *TXWriter) SendFrame(fr can.Frame) error { return w.base.SendFrame(fr) }

// Close stops the writer and waits for the worker goroutine to finish.
func (w *TXWriter) Close() { w.base.Close() }
