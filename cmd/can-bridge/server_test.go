package main

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-can-driver/can"
	"github.com/kstaniek/go-can-driver/internal/hub"
)

func TestTCPServerRoundTrip(t *testing.T) {
	h := hub.New()
	var mu sync.Mutex
	var sent []can.Frame
	send := func(fr can.Frame) error {
		mu.Lock()
		sent = append(sent, fr)
		mu.Unlock()
		return nil
	}

	srv := newTCPServer(h, send, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, "127.0.0.1:0", 8) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}

	conn, err := net.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Client to backend direction.
	out := can.New(0x123, []byte{0x01, 0x02}).Marshal(false)
	if _, err := conn.Write(out[:]); err != nil {
		t.Fatalf("write: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(sent)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frame never reached backend send")
		}
		time.Sleep(time.Millisecond)
	}
	mu.Lock()
	if sent[0].ID != 0x123 || sent[0].Len != 2 {
		t.Errorf("backend got %+v", sent[0])
	}
	mu.Unlock()

	// Backend to client direction via the hub.
	for h.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(time.Millisecond)
	}
	h.Broadcast(can.New(0x456, []byte{0xAA}))
	var buf [can.FrameSize]byte
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, buf[:]); err != nil {
		t.Fatalf("read: %v", err)
	}
	fr, err := can.Unmarshal(buf[:])
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if fr.ID != 0x456 || fr.Len != 1 || fr.Data[0] != 0xAA {
		t.Errorf("client got %+v", fr)
	}

	cancel()
	_ = conn.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not stop")
	}
}
