package router

import (
	"log"

	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/frame"
)

// readLoop runs on its own goroutine per connection: block on I/O, decode,
// dispatch the decoded message onto the arbiter, repeat until the
// connection fails.
func (r *Core) readLoop(cs *conn.State) {
	descriptor := cs.Descriptor()
	log.Printf("%s: %s: read loop starting", r.c.LogPrefix, descriptor)

	defer func() {
		log.Printf("%s: %s: read loop exiting", r.c.LogPrefix, descriptor)
		r.onConnectionClosed(cs)
	}()

	for {
		body, err := frame.ReadFrame(cs.Conn, cs.Decoder)
		if err != nil {
			log.Printf("%s: %s: read loop failed, err=%s", r.c.LogPrefix, descriptor, err.Error())
			return
		}

		msg, err := decodeMessage(body)
		if err != nil {
			log.Printf("%s: %s: failed to decode message, err=%s", r.c.LogPrefix, descriptor, err.Error())
			return
		}
		if r.c.LogDebug {
			log.Printf("%s: %s: received msg=%+v", r.c.LogPrefix, descriptor, msg)
		}

		err = r.dispatch(
			func() {
				// invoked on arbiter goroutine
				if _, ok := r.state.connections[cs.StreamID]; !ok {
					return
				}
				r.onInboundMessage(cs, msg)
			},
		)
		if err != nil {
			log.Printf("%s: %s: failed to dispatch inbound message, err=%s", r.c.LogPrefix, descriptor, err.Error())
			return
		}
	}
}

// onConnectionClosed runs the teardown procedure (spec §4.5) from the read
// loop's own goroutine, dispatched onto the arbiter like everything else.
func (r *Core) onConnectionClosed(cs *conn.State) {
	err := r.dispatch(
		func() {
			// invoked on arbiter goroutine
			r.teardownConnection(cs)
		},
	)
	if err != nil {
		log.Printf("%s: %s: failed to dispatch teardown, err=%s", r.c.LogPrefix, cs.Descriptor(), err.Error())
	}
}
