package router

import (
	"log"

	"github.com/vsm-go/ucs-core/conn"
)

// teardownConnection runs the five-step close procedure (spec §4.5). It is
// always invoked on the arbiter goroutine, and is idempotent: if the
// connection was already removed (e.g. closeConnection raced with a prior
// teardown) this is a no-op.
func (r *Core) teardownConnection(cs *conn.State) {
	if _, found := r.state.connections[cs.StreamID]; !found {
		return
	}

	// step 1: snapshot
	wasPrimary := cs.Primary
	peerID := cs.PeerID
	registeredDevices := make([]uint32, 0, len(cs.RegisteredDevices))
	for deviceID := range cs.RegisteredDevices {
		registeredDevices = append(registeredDevices, deviceID)
	}

	// step 2: remove
	delete(r.state.connections, cs.StreamID)
	log.Printf("%s: %s: connection closed, peer_id_set=%t, primary=%t, registered_devices=%d", r.c.LogPrefix, cs.Descriptor(), peerID != nil, wasPrimary, len(registeredDevices))

	// step 3: primary failover
	if wasPrimary && peerID != nil {
		siblings := r.state.connectionsForPeer(*peerID)
		var promoted *conn.State
		for _, sib := range siblings {
			if sib.IsLoopback() {
				promoted = sib
				break
			}
		}
		if promoted == nil && len(siblings) > 0 {
			promoted = siblings[0]
		}
		if promoted != nil {
			promoted.Primary = true
			log.Printf("%s: %s: promoted to primary after failover", r.c.LogPrefix, promoted.Descriptor())
		}
	}

	// step 4: notify affected devices
	for _, deviceID := range registeredDevices {
		r.notifyDevicePeerSet(deviceID)
	}

	// step 5: deactivate transport detector if idle
	if len(r.state.connections) == 0 && !r.c.TransportDetectorOnWhenDisconnected {
		r.detector.Activate(false)
	}
}
