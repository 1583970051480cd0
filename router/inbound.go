package router

import (
	"log"
	"time"

	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/message"
)

// onInboundMessage implements the full classification tree (spec §4.4),
// invoked on the arbiter goroutine for every frame a connection's read
// loop decodes.
func (r *Core) onInboundMessage(cs *conn.State, msg *message.VsmMessage) {
	if !cs.HandshakeDone() {
		if !msg.IsHandshake() {
			log.Printf("%s: %s: dropping non-register_peer message before handshake", r.c.LogPrefix, cs.Descriptor())
			return
		}
		r.onRegisterPeer(cs, msg.RegisterPeer)
		return
	}

	cs.LastMessageTime = time.Now().UTC()

	if msg.DeviceResponse != nil {
		if deviceID, pending := cs.PendingRegistrations[msg.MessageID]; pending {
			r.onRegistrationResponse(cs, msg.MessageID, deviceID, msg.DeviceResponse)
			return
		}
	}

	r.routeToDevice(cs, msg)
}

// onRegistrationResponse implements the device_response dispatch inside
// spec §4.4's pending_registrations branch.
func (r *Core) onRegistrationResponse(cs *conn.State, messageID uint32, deviceID uint32, resp *message.DeviceResponse) {
	switch resp.Code {
	case message.StatusOK:
		cs.RegisteredDevices[deviceID] = struct{}{}
		delete(cs.PendingRegistrations, messageID)

		log.Printf("%s: %s: device_id=%d registered", r.c.LogPrefix, cs.Descriptor(), deviceID)

		r.notifyDevicePeerSet(deviceID)

		dc, ok := r.state.devices[deviceID]
		if !ok {
			return
		}
		snapshot := dc.ReplaySnapshot()
		if snapshot.TelemetryFields == nil && snapshot.CommandAvailability == nil {
			return
		}
		r.sendOnConnection(
			cs,
			&message.VsmMessage{
				DeviceID:     deviceID,
				DeviceStatus: snapshot,
			},
		)

	case message.StatusInProgress:
		log.Printf("%s: %s: device_id=%d registration in progress, progress=%d", r.c.LogPrefix, cs.Descriptor(), deviceID, resp.Progress)

	default:
		log.Printf("%s: %s: device_id=%d registration failed, code=%s, status=%s", r.c.LogPrefix, cs.Descriptor(), deviceID, resp.Code, resp.Status)
		delete(cs.PendingRegistrations, messageID)
	}
}

// routeToDevice implements spec §4.4's final branch: deliver to the
// addressed device (or the peer itself if device_id == 0), with the
// response-template/completion-callback wiring.
func (r *Core) routeToDevice(cs *conn.State, msg *message.VsmMessage) {
	if msg.DeviceID == 0 {
		if msg.ResponseRequired {
			r.respondImmediate(cs, msg, message.StatusOK, "")
		}
		return
	}

	dc, ok := r.state.devices[msg.DeviceID]
	if !ok {
		if msg.ResponseRequired {
			r.respondImmediate(cs, msg, message.StatusInvalidSessionID, "unknown device_id")
			return
		}
		log.Printf("%s: %s: dropping message for unknown device_id=%d", r.c.LogPrefix, cs.Descriptor(), msg.DeviceID)
		return
	}

	var complete func(*message.VsmMessage)
	if msg.ResponseRequired {
		streamID := cs.StreamID
		requestMessageID := msg.MessageID
		deviceID := msg.DeviceID
		complete = func(resp *message.VsmMessage) {
			// invoked from the device's own processing context; re-enter
			// the arbiter to perform the actual send
			respCopy := resp
			err := r.dispatch(
				func() {
					// invoked on arbiter goroutine
					replyCS, ok := r.state.connections[streamID]
					if !ok {
						log.Printf("%s: stream_id=%d no longer present, dropping response for device_id=%d", r.c.LogPrefix, streamID, deviceID)
						return
					}
					respCopy.DeviceID = deviceID
					respCopy.MessageID = requestMessageID
					respCopy.ResponseRequired = false
					r.sendOnConnection(replyCS, respCopy)
				},
			)
			if err != nil {
				log.Printf("%s: failed to dispatch device response, err=%s", r.c.LogPrefix, err.Error())
			}
		}
	}

	dc.Device.OnUcsMessage(msg, complete)
}

// respondImmediate builds and sends a device_response template directly
// from the router, used for the device_id==0/response_required and
// unknown-device/response_required branches of spec §4.4. It writes
// without sendOnConnection's rule 4, since an unknown device is never in
// the connection's registered_devices.
func (r *Core) respondImmediate(cs *conn.State, msg *message.VsmMessage, code message.StatusCode, status string) {
	if !cs.IsCompatible {
		return
	}
	err := r.encodeAndSend(
		cs,
		&message.VsmMessage{
			DeviceID:       msg.DeviceID,
			MessageID:      msg.MessageID,
			DeviceResponse: &message.DeviceResponse{Code: code, Status: status},
		},
	)
	if err != nil {
		r.closeConnection(cs)
	}
}
