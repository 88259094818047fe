package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func newEntry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
		wantPath string
		wantURL  string
	}{
		{
			name: "bridge with IPv4",
			entry: newEntry("studio", "studio-mac.local.", 8765,
				[]net.IP{net.ParseIP("192.168.4.16")}, nil,
				"proto=pushclone-wire", "path=/link", "version=1.2.0"),
			wantIP:   "192.168.4.16",
			wantPort: 8765,
			wantPath: "/link",
			wantURL:  "ws://192.168.4.16:8765/link",
		},
		{
			name: "missing path defaults",
			entry: newEntry("studio", "studio-mac.local.", 9000,
				[]net.IP{net.ParseIP("10.0.0.5")}, nil),
			wantIP:   "10.0.0.5",
			wantPort: 9000,
			wantPath: DefaultPath,
			wantURL:  "ws://10.0.0.5:9000/link",
		},
		{
			name: "IPv6 only bridge",
			entry: newEntry("studio", "studio-mac.local.", 8765,
				nil, []net.IP{net.ParseIP("fe80::1")}, "path=/gui"),
			wantIP:   "fe80::1",
			wantPort: 8765,
			wantPath: "/gui",
			wantURL:  "ws://[fe80::1]:8765/gui",
		},
		{
			name: "both families prefers IPv4",
			entry: newEntry("studio", "studio-mac.local.", 8765,
				[]net.IP{net.ParseIP("192.168.1.50")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "192.168.1.50",
			wantPort: 8765,
			wantPath: DefaultPath,
			wantURL:  "ws://192.168.1.50:8765/link",
		},
		{
			name: "foreign protocol tag",
			entry: newEntry("other", "other.local.", 8765,
				[]net.IP{net.ParseIP("192.168.1.1")}, nil, "proto=something-else"),
			wantNil: true,
		},
		{
			name:    "empty hostname",
			entry:   newEntry("studio", "", 8765, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   newEntry("studio", "studio-mac.local.", 0, []net.IP{net.ParseIP("192.168.1.1")}, nil),
			wantNil: true,
		},
		{
			name:    "no IP address",
			entry:   newEntry("studio", "studio-mac.local.", 8765, nil, nil),
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridge := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if bridge != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", bridge)
				}
				return
			}
			if bridge == nil {
				t.Fatal("parseServiceEntry() = nil, want bridge")
			}

			if bridge.IP != tt.wantIP {
				t.Errorf("bridge.IP = %v, want %v", bridge.IP, tt.wantIP)
			}
			if bridge.Port != tt.wantPort {
				t.Errorf("bridge.Port = %v, want %v", bridge.Port, tt.wantPort)
			}
			if bridge.Path != tt.wantPath {
				t.Errorf("bridge.Path = %v, want %v", bridge.Path, tt.wantPath)
			}
			if bridge.URL() != tt.wantURL {
				t.Errorf("bridge.URL() = %v, want %v", bridge.URL(), tt.wantURL)
			}
			if bridge.Instance != tt.entry.Instance {
				t.Errorf("bridge.Instance = %v, want %v", bridge.Instance, tt.entry.Instance)
			}
			if time.Since(bridge.DiscoveredAt) > time.Second {
				t.Errorf("bridge.DiscoveredAt is not recent: %v", bridge.DiscoveredAt)
			}
		})
	}
}

func TestScanner_parseServiceEntry_Metadata(t *testing.T) {
	scanner := NewScanner()
	entry := newEntry("studio", "studio-mac.local.", 8765,
		[]net.IP{net.ParseIP("192.168.4.16")}, nil,
		"proto=pushclone-wire", "path=/link", "flag", "version=1.0")

	bridge := scanner.parseServiceEntry(entry)
	if bridge == nil {
		t.Fatal("parseServiceEntry() = nil, want bridge")
	}

	expected := map[string]string{
		"proto":   "pushclone-wire",
		"path":    "/link",
		"flag":    "",
		"version": "1.0",
	}
	if len(bridge.Metadata) != len(expected) {
		t.Errorf("bridge.Metadata has %d entries, want %d", len(bridge.Metadata), len(expected))
	}
	for key, want := range expected {
		if got := bridge.GetMetadata(key); got != want {
			t.Errorf("GetMetadata(%q) = %q, want %q", key, got, want)
		}
	}
	if bridge.Version != "1.0" {
		t.Errorf("bridge.Version = %q, want 1.0", bridge.Version)
	}
}

func TestTXTRecords(t *testing.T) {
	got := TXTRecords("", "dev")
	want := []string{"proto=pushclone-wire", "path=/link", "version=dev"}
	if len(got) != len(want) {
		t.Fatalf("TXTRecords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, got[i], want[i])
		}
	}

	entry := newEntry("studio", "studio-mac.local.", 8765, []net.IP{net.ParseIP("127.0.0.1")}, nil, got...)
	if NewScanner().parseServiceEntry(entry) == nil {
		t.Error("own TXT records were not accepted by the scanner")
	}
}

func TestNewScanner(t *testing.T) {
	scanner := NewScanner()
	if scanner.Timeout != DefaultScanTimeout {
		t.Errorf("scanner.Timeout = %v, want %v", scanner.Timeout, DefaultScanTimeout)
	}
}

func TestBridgeString(t *testing.T) {
	b := &Bridge{Instance: "studio", Hostname: "studio-mac.local.", IP: "192.168.4.16", Port: 8765}
	want := `Bridge "studio" (studio-mac.local.) at 192.168.4.16:8765`
	if b.String() != want {
		t.Errorf("String() = %v, want %v", b.String(), want)
	}
}
