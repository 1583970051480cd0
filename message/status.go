package message

// TelemetryField is one entry of a device's telemetry cache (spec §3
// "Device context", §4.4 scenario 4). NotAvailable represents the explicit
// "N/A" meta-value spec §3 calls out: such entries are retained in the
// cache but excluded from replay on new registration.
type TelemetryField struct {
	FieldID      uint32  `msgpack:"field_id"`
	NotAvailable bool    `msgpack:"not_available"`
	Value        float64 `msgpack:"value,omitempty"`
	StringValue  string  `msgpack:"string_value,omitempty"`
}

// CommandAvailability is one entry of a device's availability cache.
type CommandAvailability struct {
	CommandID uint32 `msgpack:"command_id"`
	Available bool   `msgpack:"available"`
}

// DeviceStatus carries either a device's live telemetry/availability delta
// (spec §3 "Device-originated message") or, as a synthetic message built by
// the router, the full replay of a newly-registered device's caches
// (spec §4.4 scenario 4).
type DeviceStatus struct {
	TelemetryFields     []*TelemetryField      `msgpack:"telemetry_fields,omitempty"`
	CommandAvailability []*CommandAvailability `msgpack:"command_availability,omitempty"`
}

// AdsbReport, PeripheralRegister and PeripheralUpdate are additive message
// shapes: best-effort broadcasts that are not tied to any one device's
// context. They are broadcast-only and not device-scoped.
type AdsbReport struct {
	ICAOAddress uint32  `msgpack:"icao_address"`
	Latitude    float64 `msgpack:"latitude"`
	Longitude   float64 `msgpack:"longitude"`
	AltitudeM   float64 `msgpack:"altitude_m"`
	HeadingDeg  float64 `msgpack:"heading_deg"`
}

type PeripheralRegister struct {
	PeripheralID uint32 `msgpack:"peripheral_id"`
	Name         string `msgpack:"name"`
}

type PeripheralUpdate struct {
	PeripheralID uint32 `msgpack:"peripheral_id"`
	State        string `msgpack:"state"`
}
