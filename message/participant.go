package message

// PeerType distinguishes handshake participants (spec §4.2 step 1: "Reject
// unless peer_type is absent or equals SERVER").
type PeerType uint8

const (
	PeerTypeUnspecified PeerType = 0
	PeerTypeVSM         PeerType = 1
	PeerTypeSERVER      PeerType = 2
)

func (t PeerType) String() string {
	switch t {
	case PeerTypeUnspecified:
		return "Unspecified"
	case PeerTypeVSM:
		return "VSM"
	case PeerTypeSERVER:
		return "SERVER"
	default:
		return "Unknown PeerType"
	}
}

// RegisterPeer is the handshake message exchanged by both sides of a fresh
// connection (spec §4.2).
type RegisterPeer struct {
	PeerID   uint32   `msgpack:"peer_id"`
	PeerType PeerType `msgpack:"peer_type"`
	Name     string   `msgpack:"name"`

	VersionMajor uint16 `msgpack:"version_major"`
	VersionMinor uint16 `msgpack:"version_minor"`
	VersionBuild string `msgpack:"version_build"`
}
