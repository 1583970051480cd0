package group

// Group is the type parameter for the core's Arbiter[Group]/Scheduler[Group].
// The core only ever needs one recurring timer group — the 1 Hz tick
// driving keep-alive pings and handshake timeouts (spec §4.7).
type Group uint8

const (
	GroupInvalid Group = 0
	GroupTick    Group = 1
)

func (g Group) String() string {
	switch g {
	case GroupInvalid:
		return "Invalid Group"
	case GroupTick:
		return "Tick"
	default:
		return "Unknown Group"
	}
}
