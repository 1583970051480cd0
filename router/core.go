// Package router implements the VSM-side connection multiplexer core
// (spec.md §1-§7): one arbiter goroutine owns every connection and device
// context, accepting inbound UCS connections via a transport.Detector and
// routing messages between them and local devices.
package router

import (
	"fmt"
	"hash/fnv"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-arbiter/arbiter"
	"github.com/Meander-Cloud/go-schedule/scheduler"
	"github.com/google/uuid"

	"github.com/vsm-go/ucs-core/config"
	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/group"
	"github.com/vsm-go/ucs-core/message"
	"github.com/vsm-go/ucs-core/transport"
)

// Core is the single owner of every connection and device context (spec §3,
// §5). Its unexported methods run exclusively on a.Dispatch'd closures,
// except dispatch, dispatchSync, scheduleTick, onIncomingConnection,
// readLoop and onConnectionClosed, which are called from other goroutines.
type Core struct {
	c *config.Config
	a *arbiter.Arbiter[group.Group]

	state *State

	detector transport.Detector

	pendingAdsb atomic.Int64
}

// NewCore validates config, builds the arbiter, wires the transport's
// inbound channel, and starts the keep-alive tick, failing cleanly with
// Shutdown on any error.
func NewCore(c *config.Config, detector transport.Detector) (*Core, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	if c.SelfPeerID == 0 {
		c.SelfPeerID = derivePeerID()
		log.Printf("%s: no ucs.self_peer_id configured, derived peer_id=%d for this process instance", c.LogPrefix, c.SelfPeerID)
	}

	r := &Core{
		c: c,
		a: arbiter.New[group.Group](
			&arbiter.Options[group.Group]{
				LogPrefix: c.LogPrefix,
				LogDebug:  c.LogDebug,
			},
		),
		state:    NewState(),
		detector: detector,
	}

	defer func() {
		if err != nil {
			r.Shutdown() // wait
		}
	}()

	if c.Disable {
		log.Printf("%s: disabled, not attaching transport channel", c.LogPrefix)
		return r, nil
	}

	err = detector.RegisterChannel("ucs", r.onIncomingConnection)
	if err != nil {
		err = fmt.Errorf("%s: failed to register ucs channel, err=%s", c.LogPrefix, err.Error())
		log.Printf("%s", err.Error())
		return nil, err
	}

	if c.TransportDetectorOnWhenDisconnected {
		// spec §4.5 step 5 only ever deactivates when not pinned on; mirror
		// that by activating unconditionally at startup rather than waiting
		// for the first handshake (spec §4.2 step 5).
		detector.Activate(true)
	}

	r.scheduleTick()

	return r, nil
}

func (r *Core) Shutdown() {
	if r.detector != nil {
		r.detector.Activate(false)
	}

	if r.a != nil {
		var remainingDevices int
		err := r.dispatchSync(
			func() {
				for streamID, cs := range r.state.connections {
					cs.Conn.Close()
					delete(r.state.connections, streamID)
				}
				remainingDevices = len(r.state.devices)
			},
		)
		if err != nil {
			log.Printf("%s: failed to dispatch shutdown connection drain, err=%s", r.c.LogPrefix, err.Error())
		}

		assertf(remainingDevices == 0, "%s: shutdown with %d device(s) still registered", r.c.LogPrefix, remainingDevices)

		r.a.Shutdown() // wait
	}
}

// assertf is for conditions that indicate a bug in the embedding program
// rather than a runtime failure (spec §5, §7): it logs and panics, never
// used for ordinary runtime/I-O/protocol errors.
func assertf(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("%s", msg)
	panic(msg)
}

// Config exposes the validated config back to the embedding program.
func (r *Core) Config() *config.Config {
	return r.c
}

// onIncomingConnection is transport.Detector's accept callback (spec §6
// "Listening"). It assigns a stream_id, builds the connection context, and
// spawns the read loop.
func (r *Core) onIncomingConnection(c net.Conn, address string) {
	var cs *conn.State
	done := make(chan struct{})

	err := r.dispatch(
		func() {
			// invoked on arbiter goroutine
			defer close(done)

			streamID := r.state.nextStreamID()
			cs = conn.New(streamID, address, c, r.c.ProtoMaxMessageLen)
			r.state.connections[streamID] = cs

			log.Printf("%s: %s: new connection accepted", r.c.LogPrefix, cs.Descriptor())

			r.sendRegisterPeer(cs)
		},
	)
	if err != nil {
		log.Printf("%s: failed to dispatch accept for address=%s, err=%s", r.c.LogPrefix, address, err.Error())
		c.Close()
		return
	}
	<-done

	go r.readLoop(cs)
}

// scheduleTick arms the single recurring 1 Hz timer driving keep-alive
// pings and handshake timeouts (spec §4.7).
func (r *Core) scheduleTick() {
	r.a.Scheduler().ProcessSync(
		&scheduler.ScheduleAsyncEvent[group.Group]{
			AsyncVariant: scheduler.TimerAsync(
				true,
				[]group.Group{group.GroupTick},
				time.Second,
				func() {
					// invoked on arbiter goroutine
					r.onTick()
				},
				nil,
			),
		},
	)
}

// derivePeerID generates a stable-for-this-process-instance peer_id from a
// random uuid, folded to the wire's 32-bit peer_id via fnv since a uuid
// itself doesn't fit.
func derivePeerID() uint32 {
	h := fnv.New32a()
	h.Write([]byte(uuid.New().String()))
	v := h.Sum32()
	if v == 0 {
		v = 1
	}
	return v
}

// dispatch submits f to the arbiter goroutine. go-arbiter's Dispatch is
// fire-and-forget and cannot fail, so this always returns nil; callers keep
// the error-returning shape for the (external, out-of-scope) case of a
// future arbiter implementation that can reject dispatch.
func (r *Core) dispatch(f func()) error {
	r.a.Dispatch(f)
	return nil
}

// dispatchSync runs f on the arbiter goroutine and blocks the caller until
// it completes.
func (r *Core) dispatchSync(f func()) error {
	done := make(chan struct{})
	err := r.dispatch(
		func() {
			defer close(done)
			f()
		},
	)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// encodeAndSend frames and writes payload to cs, enforcing WriteTimeout
// (spec §4.3 rule 6). Caller must be on the arbiter goroutine since it
// touches cs fields only for logging; the actual net.Conn.Write call itself
// is safe from any goroutine, but callers in this package always already
// hold the arbiter.
func (r *Core) encodeAndSend(cs *conn.State, msg *message.VsmMessage) error {
	payload, err := encodeMessage(msg)
	if err != nil {
		log.Printf("%s: %s: failed to encode message, err=%s", r.c.LogPrefix, cs.Descriptor(), err.Error())
		return err
	}

	framed := frameBytes(payload)

	cs.Conn.SetWriteDeadline(time.Now().UTC().Add(r.c.WriteTimeout))
	n, err := cs.Conn.Write(framed)
	if err != nil {
		log.Printf("%s: %s: failed to write %d bytes, err=%s", r.c.LogPrefix, cs.Descriptor(), len(framed), err.Error())
		return err
	}
	if r.c.LogDebug {
		log.Printf("%s: %s: wrote %d bytes", r.c.LogPrefix, cs.Descriptor(), n)
	}

	return nil
}
