package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/hub"
	"github.com/kstaniek/go-can-driver/internal/metrics"
)

// tcpServer streams raw 16-byte can_frame records in both directions:
// frames arriving from clients go to the backend, frames broadcast by the
// backend go to every client.
type tcpServer struct {
	hub  *hub.Hub
	send func(can.Frame) error
	l    *slog.Logger

	lnMu  sync.Mutex
	ln    net.Listener
	wg    sync.WaitGroup
	ready chan struct{}
}

func newTCPServer(h *hub.Hub, send func(can.Frame) error, l *slog.Logger) *tcpServer {
	return &tcpServer{hub: h, send: send, l: l, ready: make(chan struct{})}
}

// Ready is closed once the listener is bound.
func (s *tcpServer) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address (empty before Ready).
func (s *tcpServer) Addr() string {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Serve listens on addr and accepts clients until the context is done.
func (s *tcpServer) Serve(ctx context.Context, addr string, bufSize int) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lnMu.Lock()
	s.ln = ln
	s.lnMu.Unlock()
	close(s.ready)
	s.l.Info("tcp_listen", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			metrics.IncError(metrics.ErrTCPRead)
			continue
		}
		cl := &hub.Client{Out: make(chan can.Frame, bufSize), Closed: make(chan struct{})}
		s.hub.Add(cl)
		s.l.Info("client_connected", "remote", conn.RemoteAddr().String())
		s.startReader(ctx, conn, cl)
		s.startWriter(ctx, conn, cl)
	}
}

// startReader decodes client records and forwards them to the backend.
func (s *tcpServer) startReader(ctx context.Context, conn net.Conn, cl *hub.Client) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cl.Close()
		var buf [can.FrameSize]byte
		for {
			if _, err := io.ReadFull(conn, buf[:]); err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
					return
				}
				metrics.IncError(metrics.ErrTCPRead)
				return
			}
			fr, err := can.Unmarshal(buf[:])
			if err != nil {
				metrics.IncMalformed()
				continue
			}
			metrics.IncTCPRx()
			if err := s.send(fr); err != nil {
				s.l.Debug("backend_tx_drop", "can_id", fr.ID.String(), "error", err)
			}
		}
	}()
}

// startWriter pushes hub frames to one client connection.
func (s *tcpServer) startWriter(ctx context.Context, conn net.Conn, cl *hub.Client) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			_ = conn.Close()
			s.hub.Remove(cl)
			s.l.Info("client_disconnected", "remote", conn.RemoteAddr().String())
		}()
		for {
			select {
			case fr := <-cl.Out:
				wire := fr.Marshal(false)
				if _, err := conn.Write(wire[:]); err != nil {
					metrics.IncError(metrics.ErrTCPWrite)
					return
				}
				metrics.AddTCPTx(1)
			case <-cl.Closed:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}
