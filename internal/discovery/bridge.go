package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge is a bridge found on the network.
type Bridge struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "studio-mac.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the GUI endpoint port
	Port int

	// Path is the WebSocket path
	Path string

	// Version is the bridge version from the TXT record
	Version string

	// Metadata holds every TXT record
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable description of the bridge.
func (b *Bridge) String() string {
	return fmt.Sprintf("Bridge %q (%s) at %s", b.Instance, b.Hostname, net.JoinHostPort(b.IP, strconv.Itoa(b.Port)))
}

// URL returns the WebSocket URL of the GUI endpoint.
func (b *Bridge) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(b.IP, strconv.Itoa(b.Port)), b.Path)
}

// GetMetadata retrieves a TXT value by key, or returns empty string if not found.
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
