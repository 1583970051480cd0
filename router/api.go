// Device-facing API (spec §6): RegisterDevice is synchronous since the
// caller needs the registration outcome before proceeding; everything else
// is a fire-and-forget dispatch onto the arbiter.
package router

import (
	"fmt"
	"log"

	"github.com/vsm-go/ucs-core/config"
	"github.com/vsm-go/ucs-core/device"
	"github.com/vsm-go/ucs-core/message"
)

// RegisterDevice builds the device's registration message synchronously
// (the device populates it), stores a device context, and broadcasts the
// registration (spec §4.3 "Device registration").
func (r *Core) RegisterDevice(d device.Device) error {
	return r.dispatchSync(
		func() {
			deviceID := d.SessionID()
			_, exists := r.state.devices[deviceID]
			// programming error: double registration of the same device id (spec §7)
			assertf(!exists, "%s: device_id=%d already registered", r.c.LogPrefix, deviceID)

			reg := &message.RegisterDevice{}
			d.PopulateRegistration(reg)

			r.state.devices[deviceID] = device.New(d, reg)
			log.Printf("%s: device_id=%d registered locally, name=%s", r.c.LogPrefix, deviceID, reg.Name)

			r.broadcast(
				&message.VsmMessage{
					DeviceID:       deviceID,
					RegisterDevice: reg,
				},
			)
		},
	)
}

// UnregisterDevice erases the device context and broadcasts an
// unregister_device notice (spec §4.3).
func (r *Core) UnregisterDevice(deviceID uint32) error {
	return r.dispatch(
		func() {
			// invoked on arbiter goroutine
			if _, ok := r.state.devices[deviceID]; !ok {
				log.Printf("%s: device_id=%d: unregister of unknown device, ignoring", r.c.LogPrefix, deviceID)
				return
			}
			delete(r.state.devices, deviceID)

			r.broadcast(
				&message.VsmMessage{
					DeviceID:         deviceID,
					UnregisterDevice: &message.UnregisterDevice{},
				},
			)

			// broadcast only reaches primary connections, and sendOnConnection's
			// rule 4 only cleans up a connection on which the device was
			// already registered, so the bookkeeping of every connection is
			// cleared directly.
			for _, cs := range r.state.connections {
				delete(cs.RegisteredDevices, deviceID)
				for messageID, pendingDeviceID := range cs.PendingRegistrations {
					if pendingDeviceID == deviceID {
						delete(cs.PendingRegistrations, messageID)
					}
				}
			}
		},
	)
}

// SendUcsMessage is the device-originated ingress surface (spec §4.3).
// streamID == 0 broadcasts to every primary connection.
func (r *Core) SendUcsMessage(deviceID uint32, msg *message.VsmMessage, streamID uint32) error {
	return r.dispatch(
		func() {
			// invoked on arbiter goroutine
			r.onSendUcsMessage(deviceID, msg, streamID)
		},
	)
}

// SendAdsbReport broadcasts an ADS-B contact report. It is not
// device-scoped, so it bypasses onSendUcsMessage's cache-merge step and
// broadcasts directly. Queued-but-undispatched reports are capped at
// config.MaxPendingAdsbReports; once the cap is hit, new reports are
// dropped rather than blocking the caller.
func (r *Core) SendAdsbReport(report *message.AdsbReport) error {
	if r.pendingAdsb.Load() >= config.MaxPendingAdsbReports {
		err := fmt.Errorf("%s: adsb report dropped, %d reports already pending", r.c.LogPrefix, config.MaxPendingAdsbReports)
		log.Printf("%s", err.Error())
		return err
	}
	r.pendingAdsb.Add(1)

	err := r.dispatch(
		func() {
			// invoked on arbiter goroutine
			defer r.pendingAdsb.Add(-1)
			r.broadcast(
				&message.VsmMessage{
					AdsbReport: report,
				},
			)
		},
	)
	if err != nil {
		r.pendingAdsb.Add(-1)
	}
	return err
}

// SendPeripheralRegister broadcasts a peripheral registration notice.
func (r *Core) SendPeripheralRegister(reg *message.PeripheralRegister) error {
	return r.dispatch(
		func() {
			// invoked on arbiter goroutine
			r.broadcast(
				&message.VsmMessage{
					PeripheralRegister: reg,
				},
			)
		},
	)
}

// SendPeripheralUpdate broadcasts a peripheral state update.
func (r *Core) SendPeripheralUpdate(update *message.PeripheralUpdate) error {
	return r.dispatch(
		func() {
			// invoked on arbiter goroutine
			r.broadcast(
				&message.VsmMessage{
					PeripheralUpdate: update,
				},
			)
		},
	)
}
