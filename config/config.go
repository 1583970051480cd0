package config

import (
	"fmt"
	"log"
	"strconv"
	"time"
)

// defaults for when not provided in Config
const (
	EventChannelLength uint16 = 1024

	// WriteTimeout bounds a single async write to a peer connection (spec §4.3 rule 6).
	WriteTimeout time.Duration = time.Second * 60

	// RegisterPeerTimeout bounds how long a connection may sit with peer_id unset
	// before the keep-alive tick closes it (spec §4.2, §4.7).
	RegisterPeerTimeout time.Duration = time.Second * 10

	// ProtoMaxMessageLen is the hard cap on a decoded frame body length (spec §4.1).
	ProtoMaxMessageLen uint32 = 1 << 20 // 1 MiB

	SupportedVersionMajor uint16 = 1
	SupportedVersionMinor uint16 = 0

	// MaxPendingAdsbReports bounds queued-but-unsent ADS-B broadcasts before
	// the core falls back to dropping new ones rather than queuing unbounded.
	MaxPendingAdsbReports int64 = 16
)

// Config is a plain struct populated by the embedding program (or
// FromProperties below) and validated once before use.
type Config struct {
	// SelfPeerID is this VSM instance's stable process-instance peer id
	// (spec §3 "Peer identity"). If zero, NewCore derives one from a
	// generated uuid.
	SelfPeerID uint32

	SelfAddress string

	VersionMajor uint16
	VersionMinor uint16
	VersionBuild string

	EventChannelLength uint16

	// KeepAliveTimeout: zero disables keep-alive pings/idle timeout for
	// registered peers entirely (spec §6 "ucs.keep_alive_timeout").
	KeepAliveTimeout time.Duration

	WriteTimeout        time.Duration
	RegisterPeerTimeout time.Duration
	ProtoMaxMessageLen  uint32

	// Disable corresponds to presence of "ucs.disable" in the properties
	// store: the core is fully constructed but never attaches a listener
	// or starts its timer.
	Disable bool

	// TransportDetectorOnWhenDisconnected corresponds to presence of
	// "ucs.transport_detector_on_when_diconnected".
	TransportDetectorOnWhenDisconnected bool

	LogPrefix string
	LogDebug  bool
}

func (c *Config) Validate() error {
	if c == nil {
		err := fmt.Errorf("nil config")
		log.Printf("%s", err.Error())
		return err
	}

	if c.SelfAddress == "" {
		err := fmt.Errorf("invalid SelfAddress=%s", c.SelfAddress)
		log.Printf("%s", err.Error())
		return err
	}

	if c.VersionMajor == 0 && c.VersionMinor == 0 {
		err := fmt.Errorf("invalid version 0.0")
		log.Printf("%s", err.Error())
		return err
	}

	if c.LogPrefix == "" {
		err := fmt.Errorf("invalid LogPrefix=%s", c.LogPrefix)
		log.Printf("%s", err.Error())
		return err
	}

	if c.EventChannelLength == 0 {
		c.EventChannelLength = EventChannelLength
	}

	if c.WriteTimeout == 0 {
		c.WriteTimeout = WriteTimeout
	}

	if c.RegisterPeerTimeout == 0 {
		c.RegisterPeerTimeout = RegisterPeerTimeout
	}

	if c.ProtoMaxMessageLen == 0 {
		c.ProtoMaxMessageLen = ProtoMaxMessageLen
	}

	return nil
}

// FromProperties recognizes the keys spec.md §6 names plus ucs.self_address,
// ucs.version_build, ucs.self_peer_id and ucs.log_debug. Every other Config
// field is left zero (LogPrefix is set to "UCS" and the version to the
// supported major/minor), so Validate fills in its defaults. The properties store itself (how the
// map got populated — file, env, flags) is an external collaborator per
// spec.md §1 and is not this function's concern.
func FromProperties(props map[string]string) (*Config, error) {
	c := &Config{
		SelfAddress:  props["ucs.self_address"],
		VersionMajor: SupportedVersionMajor,
		VersionMinor: SupportedVersionMinor,
		VersionBuild: props["ucs.version_build"],
		LogPrefix:    "UCS",
	}

	if _, ok := props["ucs.disable"]; ok {
		c.Disable = true
	}

	if _, ok := props["ucs.transport_detector_on_when_diconnected"]; ok {
		c.TransportDetectorOnWhenDisconnected = true
	}

	if raw, ok := props["ucs.keep_alive_timeout"]; ok && raw != "" {
		seconds, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			err = fmt.Errorf("invalid ucs.keep_alive_timeout=%s, err=%s", raw, err.Error())
			log.Printf("%s", err.Error())
			return nil, err
		}
		c.KeepAliveTimeout = time.Second * time.Duration(seconds)
	}

	if raw, ok := props["ucs.self_peer_id"]; ok && raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			err = fmt.Errorf("invalid ucs.self_peer_id=%s, err=%s", raw, err.Error())
			log.Printf("%s", err.Error())
			return nil, err
		}
		c.SelfPeerID = uint32(v)
	}

	if raw, ok := props["ucs.log_debug"]; ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			err = fmt.Errorf("invalid ucs.log_debug=%s, err=%s", raw, err.Error())
			log.Printf("%s", err.Error())
			return nil, err
		}
		c.LogDebug = v
	}

	return c, nil
}
