package router

import (
	"log"

	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/message"
)

// sendRegisterPeer sends this VSM's own register_peer immediately on
// accept, before the peer's own handshake has been seen (spec §4.2 "the
// core immediately sends its own register_peer message").
func (r *Core) sendRegisterPeer(cs *conn.State) {
	msg := &message.VsmMessage{
		DeviceID: 0,
		RegisterPeer: &message.RegisterPeer{
			PeerID:       r.c.SelfPeerID,
			PeerType:     message.PeerTypeVSM,
			Name:         r.c.LogPrefix,
			VersionMajor: r.c.VersionMajor,
			VersionMinor: r.c.VersionMinor,
			VersionBuild: r.c.VersionBuild,
		},
	}

	err := r.encodeAndSend(cs, msg)
	if err != nil {
		r.closeConnection(cs)
	}
}

// onRegisterPeer implements spec §4.2 steps 1-6, invoked on the arbiter
// goroutine once a connection's first inbound message is register_peer.
func (r *Core) onRegisterPeer(cs *conn.State, rp *message.RegisterPeer) {
	// step 1: reject unless peer_type absent or SERVER
	if rp.PeerType != message.PeerTypeUnspecified && rp.PeerType != message.PeerTypeSERVER {
		log.Printf(
			"%s: %s: rejecting peer_type=%s, only SERVER or unspecified accepted",
			r.c.LogPrefix, cs.Descriptor(), rp.PeerType,
		)
		r.closeConnection(cs)
		return
	}

	peerID := rp.PeerID

	// step 2: duplicate detection (informational only; primary selection
	// below is what actually matters to routing)
	siblings := r.state.connectionsForPeer(peerID)
	if len(siblings) > 0 {
		log.Printf("%s: %s: duplicate connection for peer_id=%d, %d sibling(s) already present", r.c.LogPrefix, cs.Descriptor(), peerID, len(siblings))
	}

	cs.PeerID = &peerID

	// step 3: primary selection, loopback preferring
	var existingPrimary *conn.State
	for _, sib := range siblings {
		if sib.Primary {
			existingPrimary = sib
			break
		}
	}

	switch {
	case existingPrimary == nil:
		cs.Primary = true
	case !existingPrimary.IsLoopback() && cs.IsLoopback():
		existingPrimary.Primary = false
		cs.Primary = true
		log.Printf("%s: %s: promoted to primary, demoting %s", r.c.LogPrefix, cs.Descriptor(), existingPrimary.Descriptor())
	default:
		cs.Primary = false
	}

	// step 4: compatibility check
	if versionLess(rp.VersionMajor, rp.VersionMinor, r.c.VersionMajor, r.c.VersionMinor) {
		cs.IsCompatible = false
		log.Printf(
			"%s: %s: incompatible peer version=%d.%d, supported=%d.%d",
			r.c.LogPrefix, cs.Descriptor(), rp.VersionMajor, rp.VersionMinor, r.c.VersionMajor, r.c.VersionMinor,
		)
	} else {
		cs.IsCompatible = true
	}

	log.Printf(
		"%s: %s: handshake complete, peer_id=%d, primary=%t, is_compatible=%t",
		r.c.LogPrefix, cs.Descriptor(), peerID, cs.Primary, cs.IsCompatible,
	)

	// step 5: activate transport-detector on first connection for this peer
	if len(siblings) == 0 {
		r.detector.Activate(true)
	}

	// step 6: replay device catalogue through the normal router path
	for deviceID, dc := range r.state.devices {
		reg := &message.VsmMessage{
			DeviceID:       deviceID,
			RegisterDevice: dc.RegistrationMessage,
		}
		r.sendOnConnection(cs, reg)
	}
}

// versionLess reports whether (major, minor) is strictly less than
// (wantMajor, wantMinor) (spec §4.2 step 4).
func versionLess(major, minor, wantMajor, wantMinor uint16) bool {
	if major != wantMajor {
		return major < wantMajor
	}
	return minor < wantMinor
}
