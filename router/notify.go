package router

import (
	"log"

	"github.com/vsm-go/ucs-core/device"
)

// notifyDevicePeerSet implements spec §4.6: recompute the set of
// connections through which deviceID is currently registered and deliver
// it to the device via its own processing context.
func (r *Core) notifyDevicePeerSet(deviceID uint32) {
	dc, ok := r.state.devices[deviceID]
	if !ok {
		return
	}

	var infos []device.UcsInfo
	for _, cs := range r.state.connections {
		if _, registered := cs.RegisteredDevices[deviceID]; !registered {
			continue
		}
		infos = append(infos, device.UcsInfo{
			PeerID:          *cs.PeerID,
			Address:         cs.Address,
			Primary:         cs.Primary,
			LastMessageTime: cs.LastMessageTime,
		})
	}

	d := dc.Device
	err := d.Dispatch(
		func() {
			d.OnUcsInfo(infos)
		},
	)
	if err != nil {
		log.Printf("%s: device_id=%d: failed to dispatch peer-set notification, err=%s", r.c.LogPrefix, deviceID, err.Error())
	}
}
