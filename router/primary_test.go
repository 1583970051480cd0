package router

import (
	"testing"

	"github.com/vsm-go/ucs-core/message"
)

// TestDuplicateLoopbackPreference mirrors spec.md §8 scenario 2: a
// non-loopback connection for peer P becomes primary first; a later
// loopback connection for the same P demotes it and becomes primary
// itself.
func TestDuplicateLoopbackPreference(t *testing.T) {
	r, _ := newTestCore(t)

	peerID := uint32(0x1001)

	nonLoopback, _ := addTestConnection(t, r, "10.0.0.5:5000", nil, false, true)
	err := r.dispatchSync(
		func() {
			r.onRegisterPeer(
				nonLoopback,
				&message.RegisterPeer{
					PeerID:       peerID,
					PeerType:     message.PeerTypeSERVER,
					VersionMajor: r.c.VersionMajor,
					VersionMinor: r.c.VersionMinor,
				},
			)
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	loopback, _ := addTestConnection(t, r, "127.0.0.1:5001", nil, false, true)
	err = r.dispatchSync(
		func() {
			r.onRegisterPeer(
				loopback,
				&message.RegisterPeer{
					PeerID:       peerID,
					PeerType:     message.PeerTypeSERVER,
					VersionMajor: r.c.VersionMajor,
					VersionMinor: r.c.VersionMinor,
				},
			)
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	err = r.dispatchSync(
		func() {
			if !loopback.Primary {
				t.Errorf("expected loopback connection to be primary")
			}
			if nonLoopback.Primary {
				t.Errorf("expected non-loopback connection to be demoted")
			}
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}
}

// TestVersionIncompatiblePeer mirrors spec.md §8 scenario 3.
func TestVersionIncompatiblePeer(t *testing.T) {
	r, _ := newTestCore(t)

	cs, _ := addTestConnection(t, r, "127.0.0.1:5002", nil, false, true)
	err := r.dispatchSync(
		func() {
			r.onRegisterPeer(
				cs,
				&message.RegisterPeer{
					PeerID:       0x2002,
					PeerType:     message.PeerTypeSERVER,
					VersionMajor: r.c.VersionMajor - 1,
					VersionMinor: r.c.VersionMinor,
				},
			)
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	err = r.dispatchSync(
		func() {
			if cs.IsCompatible {
				t.Errorf("expected is_compatible=false for downlevel peer version")
			}
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}
}
