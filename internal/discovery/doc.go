// Package discovery advertises the bridge's GUI endpoint over mDNS and
// finds running bridges on the local network.
//
// The bridge registers itself as a "_pushclone._tcp" service. TXT records
// carry the WebSocket path and the bridge version, so a GUI can connect
// without any configuration.
//
// # Usage Example
//
//	// Advertise the GUI endpoint
//	ad, err := discovery.Advertise("studio", 8765, "/link", version.Short())
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	// Find bridges with a 3-second timeout
//	bridges, err := discovery.ScanForBridges(3 * time.Second)
//	for _, b := range bridges {
//	    fmt.Println(b.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridge and GUI must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
