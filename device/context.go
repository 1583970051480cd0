// Package device defines the per-device context (spec.md §3 "Device
// context") and the contract a local vehicle context implements to
// participate in the core (spec.md §6 "Device-facing API").
package device

import (
	"time"

	"github.com/vsm-go/ucs-core/message"
)

// Device is the contract a registered local device implements (spec §6:
// "Device implements On_ucs_message(...) and Handle_ucs_info(list); the
// device also exposes Get_session_id() and Get_processing_ctx()").
type Device interface {
	// SessionID is this device's process-unique device_id (spec §3
	// "Device id").
	SessionID() uint32

	// Dispatch submits f onto this device's own processing context, the
	// Go analogue of Get_processing_ctx() (spec §4.6): the router uses it
	// to deliver peer-set notifications serialized with the device's own
	// work.
	Dispatch(f func()) error

	// PopulateRegistration is invoked synchronously during RegisterDevice
	// so the device can fill in its own registration message (spec §4.3
	// "the device is asked to populate it").
	PopulateRegistration(reg *message.RegisterDevice)

	// OnUcsMessage delivers a message addressed to this device. If the
	// message required a response, complete must eventually be invoked by
	// the device with the completed response message (spec §4.4); complete
	// is nil when no response was requested.
	OnUcsMessage(msg *message.VsmMessage, complete func(*message.VsmMessage))

	// OnUcsInfo delivers the device's current UCS peer set (spec §4.6).
	OnUcsInfo(infos []UcsInfo)
}

// UcsInfo is one entry of the peer-set snapshot delivered via OnUcsInfo
// (spec §4.6).
type UcsInfo struct {
	PeerID          uint32
	Address         string
	Primary         bool
	LastMessageTime time.Time
}

// Context is the router-owned per-device state (spec §3 "Device context").
type Context struct {
	Device Device

	// RegistrationMessage is the cached message assembled at registration
	// time (spec §3).
	RegistrationMessage *message.RegisterDevice

	// TelemetryCache: field_id -> latest field value message.
	TelemetryCache map[uint32]*message.TelemetryField

	// AvailabilityCache: command_id -> latest availability message.
	AvailabilityCache map[uint32]*message.CommandAvailability
}

// New builds a fresh device context. reg is the registration message the
// device has just populated (spec §4.3).
func New(d Device, reg *message.RegisterDevice) *Context {
	return &Context{
		Device:              d,
		RegistrationMessage: reg,
		TelemetryCache:      make(map[uint32]*message.TelemetryField),
		AvailabilityCache:   make(map[uint32]*message.CommandAvailability),
	}
}

// MergeTelemetry inserts or overwrites a telemetry cache entry by field_id
// (spec §4.3 "Device-originated message: merges any telemetry/availability
// fields from the message into the device's caches").
func (c *Context) MergeTelemetry(f *message.TelemetryField) {
	c.TelemetryCache[f.FieldID] = f
}

// MergeAvailability inserts or overwrites an availability cache entry by
// command_id.
func (c *Context) MergeAvailability(a *message.CommandAvailability) {
	c.AvailabilityCache[a.CommandID] = a
}

// ReplaySnapshot builds the full-cache synthetic device_status sent on
// fresh registration (spec §4.4 scenario 4: "excluding entries with
// meta-value N/A").
func (c *Context) ReplaySnapshot() *message.DeviceStatus {
	status := &message.DeviceStatus{}
	for _, f := range c.TelemetryCache {
		if f.NotAvailable {
			continue
		}
		status.TelemetryFields = append(status.TelemetryFields, f)
	}
	for _, a := range c.AvailabilityCache {
		status.CommandAvailability = append(status.CommandAvailability, a)
	}
	return status
}

// TelemetryCacheLen and AvailabilityCacheLen report cache sizes; there is
// no eviction policy, so a misbehaving device's caches only go away on
// UnregisterDevice. Package router keeps its device contexts unexported and
// has no accessor for them.
func (c *Context) TelemetryCacheLen() int    { return len(c.TelemetryCache) }
func (c *Context) AvailabilityCacheLen() int { return len(c.AvailabilityCache) }
