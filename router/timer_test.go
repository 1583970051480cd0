package router

import (
	"testing"
	"time"
)

// TestKeepAlivePing mirrors the non-timeout half of spec.md §8 scenario 5:
// a registered peer within its keep_alive_timeout window receives a ping
// with response_required set, rather than being closed.
func TestKeepAlivePing(t *testing.T) {
	r, _ := newTestCore(t)
	r.c.KeepAliveTimeout = time.Second * 5

	peerID := uint32(7)
	cs, peer := addTestConnection(t, r, "127.0.0.1:1", &peerID, true, true)

	err := r.dispatchSync(
		func() {
			cs.LastMessageTime = time.Now().UTC()
			r.onTick()
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	msg := readFramedVsmMessage(t, peer, time.Second)
	if !msg.ResponseRequired {
		t.Fatalf("expected keep-alive ping to set response_required")
	}
	if msg.MessageID == 0 {
		t.Fatalf("expected keep-alive ping to carry an allocated message_id")
	}
}

// TestKeepAliveTimeoutClosesConnection mirrors the timeout half of
// spec.md §8 scenario 5.
func TestKeepAliveTimeoutClosesConnection(t *testing.T) {
	r, _ := newTestCore(t)
	r.c.KeepAliveTimeout = time.Second * 5

	peerID := uint32(8)
	cs, peer := addTestConnection(t, r, "127.0.0.1:1", &peerID, true, true)

	err := r.dispatchSync(
		func() {
			cs.LastMessageTime = time.Now().UTC().Add(-time.Second * 10)
			r.onTick()
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	peer.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = peer.Read(buf)
	if err == nil {
		t.Fatalf("expected connection closed, but a byte was readable")
	}
}

// TestRegisterPeerTimeoutClosesConnection covers the pre-handshake branch
// of spec.md §4.7.
func TestRegisterPeerTimeoutClosesConnection(t *testing.T) {
	r, _ := newTestCore(t)
	r.c.RegisterPeerTimeout = time.Millisecond * 50

	cs, peer := addTestConnection(t, r, "127.0.0.1:1", nil, false, true)

	err := r.dispatchSync(
		func() {
			cs.LastMessageTime = time.Now().UTC().Add(-time.Second)
			r.onTick()
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	peer.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 1)
	_, err = peer.Read(buf)
	if err == nil {
		t.Fatalf("expected connection closed due to handshake stall, but a byte was readable")
	}
}
