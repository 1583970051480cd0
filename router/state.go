package router

import (
	"sync/atomic"

	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/device"
)

// State holds every piece of data the spec requires to be touched
// exclusively from the arbiter goroutine (spec §3, §5), plus the two id
// generators, which are atomic; every caller in this package invokes them
// from the arbiter goroutine as well.
type State struct {
	// connections: stream_id -> connection context (spec §3).
	connections map[uint32]*conn.State

	// devices: device_id -> device context (spec §3).
	devices map[uint32]*device.Context

	streamIDGen  atomic.Uint32
	messageIDGen atomic.Uint32
}

func NewState() *State {
	return &State{
		connections: make(map[uint32]*conn.State),
		devices:     make(map[uint32]*device.Context),
	}
}

// nextStreamID returns the next locally-unique stream_id; 0 is reserved
// and never assigned (spec §3 "Stream id").
func (s *State) nextStreamID() uint32 {
	for {
		id := s.streamIDGen.Add(1)
		if id != 0 {
			return id
		}
	}
}

// nextMessageID returns a fresh request_message_id (spec §4.3 rule 3, rule
// 5). 0 is avoided so "no message_id present" can still be represented as
// a zero value where callers need it.
func (s *State) nextMessageID() uint32 {
	for {
		id := s.messageIDGen.Add(1)
		if id != 0 {
			return id
		}
	}
}

// connectionsForPeer returns every live connection sharing peerID, used by
// duplicate detection (§4.2 step 2) and primary failover (§4.5 step 3).
func (s *State) connectionsForPeer(peerID uint32) []*conn.State {
	var out []*conn.State
	for _, cs := range s.connections {
		if cs.PeerID != nil && *cs.PeerID == peerID {
			out = append(out, cs)
		}
	}
	return out
}
