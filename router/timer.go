package router

import (
	"log"
	"time"

	"github.com/vsm-go/ucs-core/message"
)

// onTick is the 1 Hz recurring timer body (spec §4.7), invoked on the
// arbiter goroutine by the group.GroupTick TimerAsync armed in
// scheduleTick.
func (r *Core) onTick() {
	now := time.Now().UTC()

	for _, cs := range r.state.connections {
		if cs.PeerID == nil {
			if now.Sub(cs.LastMessageTime) > r.c.RegisterPeerTimeout {
				log.Printf("%s: %s: handshake stalled past %v, closing", r.c.LogPrefix, cs.Descriptor(), r.c.RegisterPeerTimeout)
				r.closeConnection(cs)
			}
			continue
		}

		if r.c.KeepAliveTimeout <= 0 {
			continue
		}

		if now.Sub(cs.LastMessageTime) > r.c.KeepAliveTimeout {
			log.Printf("%s: %s: timed out, no message for %v", r.c.LogPrefix, cs.Descriptor(), now.Sub(cs.LastMessageTime))
			r.closeConnection(cs)
			continue
		}

		r.sendOnConnection(
			cs,
			&message.VsmMessage{
				DeviceID:         0,
				ResponseRequired: true,
			},
		)
	}
}
