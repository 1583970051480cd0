package router

import (
	"net"
	"testing"
	"time"

	"github.com/vsm-go/ucs-core/config"
	"github.com/vsm-go/ucs-core/conn"
	"github.com/vsm-go/ucs-core/frame"
	"github.com/vsm-go/ucs-core/message"
)

// fakeDetector stands in for the real transport-detector collaborator in
// tests: it records the registered callback and Activate(bool) calls
// instead of listening on a real socket.
type fakeDetector struct {
	onConn    func(conn net.Conn, address string)
	activated []bool
}

func (f *fakeDetector) RegisterChannel(name string, onConnection func(conn net.Conn, address string)) error {
	f.onConn = onConnection
	return nil
}

func (f *fakeDetector) Activate(on bool) {
	f.activated = append(f.activated, on)
}

func testConfig(logPrefix string) *config.Config {
	return &config.Config{
		SelfPeerID:          0xE1EC7,
		SelfAddress:         "127.0.0.1:0",
		VersionMajor:        config.SupportedVersionMajor,
		VersionMinor:        config.SupportedVersionMinor,
		VersionBuild:        "test",
		KeepAliveTimeout:    0,
		RegisterPeerTimeout: time.Second,
		LogPrefix:           logPrefix,
		LogDebug:            false,
	}
}

func newTestCore(t *testing.T) (*Core, *fakeDetector) {
	t.Helper()

	detector := &fakeDetector{}
	r, err := NewCore(testConfig(t.Name()), detector)
	if err != nil {
		t.Fatalf("NewCore failed: %s", err.Error())
	}
	t.Cleanup(r.Shutdown)

	return r, detector
}

// addTestConnection inserts a connection directly into the core's state
// (bypassing onIncomingConnection/handshake) for unit tests that exercise
// router logic against known connection fields. The returned net.Conn is
// the peer-visible end of a net.Pipe; the core writes to local.
func addTestConnection(t *testing.T, r *Core, address string, peerID *uint32, primary, compatible bool) (*conn.State, net.Conn) {
	t.Helper()

	local, peer := net.Pipe()
	t.Cleanup(func() { local.Close(); peer.Close() })

	var cs *conn.State
	err := r.dispatchSync(
		func() {
			streamID := r.state.nextStreamID()
			cs = conn.New(streamID, address, local, r.c.ProtoMaxMessageLen)
			cs.PeerID = peerID
			cs.Primary = primary
			cs.IsCompatible = compatible
			r.state.connections[streamID] = cs
		},
	)
	if err != nil {
		t.Fatalf("dispatchSync failed: %s", err.Error())
	}

	return cs, peer
}

func readFramedMessage(t *testing.T, r net.Conn, timeout time.Duration) []byte {
	t.Helper()

	r.SetReadDeadline(time.Now().Add(timeout))

	d := frame.NewDecoder(1 << 20)
	body, err := frame.ReadFrame(r, d)
	if err != nil {
		t.Fatalf("failed to read framed message: %s", err.Error())
	}
	return body
}

func readFramedVsmMessage(t *testing.T, c net.Conn, timeout time.Duration) *message.VsmMessage {
	t.Helper()

	body := readFramedMessage(t, c, timeout)
	msg, err := decodeMessage(body)
	if err != nil {
		t.Fatalf("failed to decode message: %s", err.Error())
	}
	return msg
}

func writeFramedVsmMessage(t *testing.T, c net.Conn, msg *message.VsmMessage) {
	t.Helper()

	payload, err := encodeMessage(msg)
	if err != nil {
		t.Fatalf("failed to encode message: %s", err.Error())
	}

	_, err = c.Write(frame.Encode(payload))
	if err != nil {
		t.Fatalf("failed to write framed message: %s", err.Error())
	}
}

// waitUntil polls cond (itself run synchronously on the arbiter) until it
// returns true or timeout elapses, the way a test against a serialized
// single-executor core has to wait for asynchronously-dispatched work to
// land.
func waitUntil(t *testing.T, r *Core, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		var result bool
		err := r.dispatchSync(
			func() {
				result = cond()
			},
		)
		if err != nil {
			t.Fatalf("dispatchSync failed: %s", err.Error())
		}
		if result {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v", timeout)
		}
		time.Sleep(time.Millisecond * 10)
	}
}
