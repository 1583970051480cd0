// Package conn defines the per-connection context (spec.md §3 "Connection
// context"). Every mutable field here except Decoder is touched only from
// inside a closure dispatched onto the core's single Arbiter (spec §5);
// Decoder is driven only by the read-loop goroutine that owns the socket,
// so plain fields suffice without atomics or locks.
package conn

import (
	"fmt"
	"net"
	"time"

	"github.com/vsm-go/ucs-core/frame"
)

// State is one live TCP connection's context.
type State struct {
	StreamID uint32
	Address  string
	Conn     net.Conn

	// PeerID is nil until the handshake completes (spec §3 "peer_id —
	// unset until handshake completes").
	PeerID *uint32

	// Primary: at most one connection per peer_id is primary at any time.
	Primary bool

	// IsCompatible: if false the connection is kept open but nothing is
	// ever sent on it (spec §4.2 step 4).
	IsCompatible bool

	LastMessageTime time.Time

	// PendingRegistrations: request_message_id -> device_id, tracking
	// Register_device requests awaiting a device_response from this peer
	// (spec §3).
	PendingRegistrations map[uint32]uint32

	// RegisteredDevices: device_id values this peer has acknowledged with
	// STATUS_OK (spec §3).
	RegisteredDevices map[uint32]struct{}

	// Decoder is this connection's private frame-decoding state machine
	// (spec §4.1, §3 "Framing state"), driven by the connection's read loop.
	Decoder *frame.Decoder
}

// New builds a fresh connection context at accept time (spec §3
// "Lifecycle: Connections: created on accept").
func New(streamID uint32, address string, c net.Conn, maxMessageLen uint32) *State {
	return &State{
		StreamID:             streamID,
		Address:              address,
		Conn:                 c,
		PeerID:               nil,
		Primary:              false,
		IsCompatible:         true,
		LastMessageTime:      time.Now().UTC(),
		PendingRegistrations: make(map[uint32]uint32),
		RegisteredDevices:    make(map[uint32]struct{}),
		Decoder:              frame.NewDecoder(maxMessageLen),
	}
}

// IsLoopback reports whether this connection's remote address is a
// loopback address (spec §4.2 step 3 "Primary selection (loopback
// preferring)").
func (s *State) IsLoopback() bool {
	host, _, err := net.SplitHostPort(s.Address)
	if err != nil {
		host = s.Address
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback()
}

// HandshakeDone reports whether PeerID has been set (spec §4.2).
func (s *State) HandshakeDone() bool {
	return s.PeerID != nil
}

// Descriptor is a human-readable connection label for log lines, formatted
// on each call; it includes the peer_id once the handshake has set it.
func (s *State) Descriptor() string {
	if s.PeerID == nil {
		return fmt.Sprintf("[%d]<-<%s>", s.StreamID, s.Address)
	}
	return fmt.Sprintf("[%d]peer<%d>-<%s>", s.StreamID, *s.PeerID, s.Address)
}
