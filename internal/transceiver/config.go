package transceiver

import (
	"net/netip"
	"time"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/infrastructure/config"
)

const (
	defaultListenPort        = 5555
	defaultSenderPort        = 5556
	defaultReceiveBufferSize = 120000
	defaultCreationQueueSize = 16
	defaultSendTimeout       = time.Second

	// maxDatagramSize is the largest UDP payload.
	maxDatagramSize = 65535
)

// Config holds transport settings.
type Config struct {
	// ListenHost restricts the listener to one interface. Empty listens on all.
	ListenHost string

	ListenPort        int
	SenderPort        int
	ReceiveBufferSize int
	CreationQueueSize int
	SendTimeout       time.Duration
}

// ConfigFrom maps the transport section of the controller configuration.
func ConfigFrom(cfg config.TransportConfig) Config {
	return Config{
		ListenPort:        cfg.ListenPort,
		SenderPort:        cfg.SenderPort,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		CreationQueueSize: cfg.CreationQueueSize,
		SendTimeout:       cfg.SendTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ListenPort == 0 {
		c.ListenPort = defaultListenPort
	}
	if c.SenderPort == 0 {
		c.SenderPort = defaultSenderPort
	}
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = defaultReceiveBufferSize
	}
	if c.CreationQueueSize <= 0 {
		c.CreationQueueSize = defaultCreationQueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = defaultSendTimeout
	}
	return c
}

// Declaration is a device configured before any traffic arrives.
// Address "" and ID device.NoID mean "not configured".
type Declaration struct {
	Name    string
	Address string
	ID      int
}

// DeclarationsFrom maps the devices section of the controller configuration.
func DeclarationsFrom(devices []config.DeviceConfig) []Declaration {
	out := make([]Declaration, 0, len(devices))
	for _, d := range devices {
		out = append(out, Declaration{Name: d.Name, Address: d.Address, ID: d.DeviceID()})
	}
	return out
}

// Sanitize cleans pre-declared devices before they enter the registry.
//
// Addresses that are not valid IPs are dropped and the rest are
// canonicalised. Ids below device.NoID are dropped. An address or id
// already claimed by an earlier declaration is dropped from the later
// one. Every declaration is kept; only the offending field is cleared.
func Sanitize(decls []Declaration, logger Logger) []Declaration {
	if logger == nil {
		logger = noopLogger{}
	}

	out := make([]Declaration, len(decls))
	copy(out, decls)

	for i := range out {
		d := &out[i]
		if d.Address != "" {
			addr, err := netip.ParseAddr(d.Address)
			if err != nil {
				logger.Warn("pre-declared address is not a valid IP, removing", "name", d.Name, "address", d.Address)
				d.Address = ""
			} else {
				d.Address = addr.Unmap().String()
			}
		}
		if d.ID < device.NoID {
			logger.Warn("pre-declared id is invalid, removing", "name", d.Name, "id", d.ID)
			d.ID = device.NoID
		}
	}

	seenAddr := make(map[string]bool)
	seenID := make(map[int]bool)
	for i := range out {
		d := &out[i]
		if d.Address != "" {
			if seenAddr[d.Address] {
				logger.Warn("duplicate pre-declared address, removing", "name", d.Name, "address", d.Address)
				d.Address = ""
			} else {
				seenAddr[d.Address] = true
			}
		}
		if d.ID >= 0 {
			if seenID[d.ID] {
				logger.Warn("duplicate pre-declared id, removing", "name", d.Name, "id", d.ID)
				d.ID = device.NoID
			} else {
				seenID[d.ID] = true
			}
		}
	}
	return out
}
