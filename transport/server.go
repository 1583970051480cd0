// Package transport adapts go-transport's TcpServer into the spec's
// "transport-detector" collaborator (spec.md §6 "Listening"): the core
// never binds a socket directly, it asks for an inbound channel named
// "ucs" and receives On_incoming_connection(address, stream) callbacks.
//
// Outbound dialing is an explicit Non-goal of this core (spec.md §1), so
// only the inbound listener half is adapted here; go-transport's client/dial
// side has no caller in this module.
package transport

import (
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-transport/tcp"
)

// Detector models the out-of-scope transport-detector subsystem (spec.md
// §1, §6): the core calls RegisterChannel once to learn about inbound
// connections, and Activate(bool) to tell the (external, real) link-probing
// logic whether it should be running. Server below is the only
// implementation this module ships — a real transport-detector would sit
// behind this interface rather than doing its own socket accept.
type Detector interface {
	RegisterChannel(name string, onConnection func(conn net.Conn, address string)) error
	Activate(on bool)
}

// Server is the default Detector: it listens for real inbound TCP
// connections via go-transport/tcp.TcpServer and treats every accepted
// connection as type TCP by construction (spec.md §6 "The core rejects
// anything whose stream type is not TCP" — structural here rather than a
// runtime check, since go-transport's listener is TCP-only).
type Server struct {
	options   *tcp.Options
	tcpServer *tcp.TcpServer

	channelName string
	onConn      func(conn net.Conn, address string)

	active atomic.Bool
}

// NewServer binds address and starts accepting. Connections are dropped
// (closed immediately) until RegisterChannel has been called.
func NewServer(address string, keepAliveInterval time.Duration, keepAliveCount uint16, logPrefix string, logDebug bool) (*Server, error) {
	s := &Server{}

	s.options = &tcp.Options{
		Address:           address,
		KeepAliveInterval: keepAliveInterval,
		KeepAliveCount:    keepAliveCount,
		Protocol:          nil,
		LogPrefix:         logPrefix,
		LogDebug:          logDebug,
	}
	s.options.Protocol = s

	tcpServer, err := tcp.NewTcpServer(s.options)
	if err != nil {
		err = fmt.Errorf("%s: failed to start tcp server on address=%s, err=%s", logPrefix, address, err.Error())
		log.Printf("%s", err.Error())
		return nil, err
	}
	s.tcpServer = tcpServer

	return s, nil
}

// ReadLoop is go-transport's accept callback contract (tcp.Options.Protocol
// is wired to it). It does no I/O itself — just hands the raw connection to
// whatever RegisterChannel installed.
func (s *Server) ReadLoop(c net.Conn) {
	onConn := s.onConn
	if onConn == nil {
		log.Printf("%s: no channel registered, rejecting connection from %s", s.options.LogPrefix, c.RemoteAddr().String())
		c.Close()
		return
	}
	onConn(c, c.RemoteAddr().String())
}

// RegisterChannel corresponds to spec.md §6's "asks the transport-detector
// for an inbound channel named 'ucs'". Only one channel is supported since
// this core only ever listens on one address.
func (s *Server) RegisterChannel(name string, onConnection func(conn net.Conn, address string)) error {
	s.channelName = name
	s.onConn = onConnection
	return nil
}

// Activate toggles the (external, out-of-scope) link-probing switch. The
// real transport-detector would start/stop its own probing here; this
// default implementation only logs, since go-transport's listener runs
// unconditionally once constructed and has no separate on/off switch.
func (s *Server) Activate(on bool) {
	wasActive := s.active.Swap(on)
	if wasActive == on {
		return
	}
	log.Printf("%s: channel=%s, transport detector active=%t", s.options.LogPrefix, s.channelName, on)
}

// Close satisfies tcp.Protocol: go-transport's server lifecycle goroutine
// calls it once after closing the listener, as part of Shutdown().
func (s *Server) Close() {
}

func (s *Server) Shutdown() {
	if s.tcpServer != nil {
		s.tcpServer.Shutdown() // wait
	}
}
