package router

import (
	"log"

	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/message"
)

// sendOnConnection enforces the per-connection send rules in order
// (spec §4.3). It mutates msg and cs's pending_registrations/
// registered_devices as the rules require, then serializes and writes.
// A write failure closes the connection.
func (r *Core) sendOnConnection(cs *conn.State, msg *message.VsmMessage) {
	// rule 1
	if cs.PeerID == nil {
		if !msg.IsHandshake() {
			log.Printf("%s: %s: refusing to send non-register_peer message before handshake", r.c.LogPrefix, cs.Descriptor())
			return
		}
		msg.DeviceID = 0
	}

	// rule 2
	if !cs.IsCompatible {
		return
	}

	// rule 3
	if msg.RegisterDevice != nil {
		msg.ResponseRequired = true
		msg.MessageID = r.state.nextMessageID()
		cs.PendingRegistrations[msg.MessageID] = msg.DeviceID
	} else if msg.DeviceID != 0 {
		// rule 4
		if _, ok := cs.RegisteredDevices[msg.DeviceID]; !ok {
			log.Printf("%s: %s: dropping message for device_id=%d, not registered on this connection", r.c.LogPrefix, cs.Descriptor(), msg.DeviceID)
			return
		}
		if msg.UnregisterDevice != nil {
			delete(cs.RegisteredDevices, msg.DeviceID)
			for messageID, deviceID := range cs.PendingRegistrations {
				if deviceID == msg.DeviceID {
					delete(cs.PendingRegistrations, messageID)
				}
			}
		}
	}

	// rule 5
	if msg.ResponseRequired && msg.MessageID == 0 {
		msg.MessageID = r.state.nextMessageID()
	}

	// rule 6
	err := r.encodeAndSend(cs, msg)
	if err != nil {
		r.closeConnection(cs)
	}
}

// broadcast sends msg on every primary connection (spec §4.3 "Broadcast").
func (r *Core) broadcast(msg *message.VsmMessage) {
	for _, cs := range r.state.connections {
		if !cs.Primary {
			continue
		}
		clone := cloneMessage(msg)
		r.sendOnConnection(cs, clone)
	}
}

// onSendUcsMessage implements the device-originated ingress surface
// (spec §4.3 "Device-originated message"). streamID == 0 broadcasts.
func (r *Core) onSendUcsMessage(deviceID uint32, msg *message.VsmMessage, streamID uint32) {
	dc, ok := r.state.devices[deviceID]
	if !ok {
		log.Printf("%s: device_id=%d: unknown device, dropping outbound message", r.c.LogPrefix, deviceID)
		return
	}

	if msg.DeviceStatus != nil {
		for _, f := range msg.DeviceStatus.TelemetryFields {
			dc.MergeTelemetry(f)
		}
		for _, a := range msg.DeviceStatus.CommandAvailability {
			dc.MergeAvailability(a)
		}
	}
	msg.DeviceID = deviceID

	if streamID != 0 {
		cs, ok := r.state.connections[streamID]
		if !ok {
			log.Printf("%s: device_id=%d: stream_id=%d not found, dropping outbound message", r.c.LogPrefix, deviceID, streamID)
			return
		}
		r.sendOnConnection(cs, msg)
		return
	}

	r.broadcast(msg)
}

// closeConnection closes the socket; the read loop's own defer runs the
// teardown procedure once it observes the resulting I/O error, so cleanup
// always happens from that one call site rather than being duplicated at
// every failure branch.
func (r *Core) closeConnection(cs *conn.State) {
	cs.Conn.Close()
}

// cloneMessage produces a shallow per-connection copy so that rule 3/5's
// mutations (message_id allocation, response_required) on a broadcast
// don't leak between sibling sends.
func cloneMessage(msg *message.VsmMessage) *message.VsmMessage {
	clone := *msg
	return &clone
}
