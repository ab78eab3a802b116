package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestScanner_parseServiceEntry(t *testing.T) {
	scanner := NewScanner()

	tests := []struct {
		name       string
		entry      *zeroconf.ServiceEntry
		wantNil    bool
		wantName   string
		wantIP     string
		wantHAPort int
	}{
		{
			name: "home assistant with location name",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "a1b2c3"},
				HostName:      "homeassistant.local.",
				Port:          8123,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.20")},
				Text:          []string{"location_name=Home", "version=2026.3.1", "internal_url=http://192.168.1.20:8123/"},
			},
			wantName:   "Home",
			wantIP:     "192.168.1.20",
			wantHAPort: 8123,
		},
		{
			name: "falls back to instance name",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "Cabin"},
				HostName:      "cabin.local",
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantName:   "Cabin",
			wantIP:     "10.0.0.5",
			wantHAPort: DefaultHAPort,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				HostName: "ha6.local.",
				Port:     8123,
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:     "[fe80::1]",
			wantHAPort: 8123,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				HostName: "ghost.local.",
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := scanner.parseServiceEntry(tt.entry)

			if tt.wantNil {
				if srv != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", srv)
				}
				return
			}
			if srv == nil {
				t.Fatal("parseServiceEntry() = nil, want server")
			}
			if srv.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", srv.Name, tt.wantName)
			}
			if srv.IP != tt.wantIP {
				t.Errorf("IP = %q, want %q", srv.IP, tt.wantIP)
			}
			if srv.HAPort != tt.wantHAPort {
				t.Errorf("HAPort = %d, want %d", srv.HAPort, tt.wantHAPort)
			}
			if srv.Port != DefaultPort {
				t.Errorf("Port = %d, want %d", srv.Port, DefaultPort)
			}
		})
	}
}

func TestServer_URLs(t *testing.T) {
	srv := &Server{
		Name:     "Home",
		Hostname: "homeassistant.local",
		IP:       "192.168.1.20",
		Port:     5000,
		HAPort:   8123,
	}

	if got := srv.BaseURL(); got != "http://192.168.1.20:5000" {
		t.Errorf("BaseURL() = %s", got)
	}
	if got := srv.HomeAssistantURL(); got != "http://192.168.1.20:8123" {
		t.Errorf("HomeAssistantURL() = %s", got)
	}

	srv.Metadata = map[string]string{"internal_url": "http://ha.lan:8123/", "version": "2026.3.1"}
	if got := srv.HomeAssistantURL(); got != "http://ha.lan:8123" {
		t.Errorf("HomeAssistantURL() with metadata = %s", got)
	}
	if srv.Version() != "2026.3.1" {
		t.Errorf("Version() = %s", srv.Version())
	}
	if srv.String() != "Home (homeassistant.local) at 192.168.1.20:5000" {
		t.Errorf("String() = %s", srv.String())
	}
}

func TestServer_SuggestedName(t *testing.T) {
	tests := []struct {
		srv  Server
		want string
	}{
		{Server{Name: "My Home"}, "my-home"},
		{Server{Hostname: "homeassistant.local"}, "homeassistant"},
		{Server{}, "dao"},
	}
	for _, tt := range tests {
		if got := tt.srv.SuggestedName(); got != tt.want {
			t.Errorf("SuggestedName() = %q, want %q", got, tt.want)
		}
	}
}

func TestScanner_Scan(t *testing.T) {
	scanner := NewScanner()
	scanner.Timeout = 50 * time.Millisecond
	scanner.Browse = func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
		if service != ServiceType || domain != ServiceDomain {
			t.Errorf("Browse(%s, %s)", service, domain)
		}
		go func() {
			defer close(entries)
			for _, e := range []*zeroconf.ServiceEntry{
				{HostName: "b.local.", AddrIPv4: []net.IP{net.ParseIP("10.0.0.2")}, Text: []string{"location_name=Beta"}},
				{HostName: "a.local.", AddrIPv4: []net.IP{net.ParseIP("10.0.0.1")}, Text: []string{"location_name=Alpha"}},
				{HostName: "a.local.", AddrIPv4: []net.IP{net.ParseIP("10.0.0.1")}, Text: []string{"location_name=Alpha"}},
				{HostName: "none.local."},
			} {
				select {
				case entries <- e:
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	servers, err := scanner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("len(servers) = %d, want 2", len(servers))
	}
	if servers[0].Name != "Alpha" || servers[1].Name != "Beta" {
		t.Errorf("order = %s, %s", servers[0].Name, servers[1].Name)
	}
}

func TestScanner_Probe(t *testing.T) {
	dao := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == probePath {
			_, _ = w.Write([]byte(`{"type":"object"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer dao.Close()

	u, _ := url.Parse(dao.URL)
	port, _ := strconv.Atoi(u.Port())

	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL, _ := url.Parse(closed.URL)
	closedPort, _ := strconv.Atoi(closedURL.Port())
	closed.Close()

	servers := []*Server{
		{Name: "up", IP: u.Hostname(), Port: port},
		{Name: "down", IP: closedURL.Hostname(), Port: closedPort},
	}

	NewScanner().Probe(context.Background(), servers)

	if !servers[0].Reachable {
		t.Error("expected first server to be reachable")
	}
	if servers[1].Reachable {
		t.Error("expected second server to be unreachable")
	}
}
