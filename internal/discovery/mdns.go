package discovery

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/logging"
)

const (
	// ServiceType is the mDNS service Home Assistant advertises. The DAO
	// add-on does not advertise itself; it runs on the same host.
	ServiceType = "_home-assistant._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is the DAO webserver port
	DefaultPort = 5000

	// DefaultHAPort is the Home Assistant port when the entry carries none
	DefaultHAPort = 8123

	// probePath answers on every DAO webserver with the configuration API
	probePath = "/api/schema"
)

// Scanner handles mDNS discovery of Home Assistant hosts and probes them
// for a DAO webserver.
type Scanner struct {
	// Timeout is the maximum time to browse
	Timeout time.Duration

	// Port is where the DAO webserver is expected on each host
	Port int

	// HTTPClient is used by the probe
	HTTPClient *http.Client

	// Browse is the mDNS browse function; tests replace it
	Browse func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout:    DefaultScanTimeout,
		Port:       DefaultPort,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
		Browse:     browseZeroconf,
	}
}

func browseZeroconf(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}
	if err := resolver.Browse(ctx, service, domain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// Scan browses for Home Assistant hosts until the timeout and returns them
// sorted by name, one per IP address. Hosts are not probed.
func (s *Scanner) Scan(ctx context.Context) ([]*Server, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})

	var mu sync.Mutex
	byIP := make(map[string]*Server)

	go func() {
		defer close(done)
		for entry := range entries {
			srv := s.parseServiceEntry(entry)
			if srv == nil {
				continue
			}
			mu.Lock()
			if _, seen := byIP[srv.IP]; !seen {
				byIP[srv.IP] = srv
				logging.Debug("Discovered Home Assistant host",
					zap.String("name", srv.Name),
					zap.String("ip", srv.IP),
				)
			}
			mu.Unlock()
		}
	}()

	if err := s.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, err
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context ends
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	servers := make([]*Server, 0, len(byIP))
	for _, srv := range byIP {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].Name != servers[j].Name {
			return servers[i].Name < servers[j].Name
		}
		return servers[i].IP < servers[j].IP
	})
	return servers, nil
}

// Probe marks each server Reachable when its DAO webserver answers.
// Probes run concurrently.
func (s *Scanner) Probe(ctx context.Context, servers []*Server) {
	var wg sync.WaitGroup
	for _, srv := range servers {
		wg.Add(1)
		go func(srv *Server) {
			defer wg.Done()
			srv.Reachable = s.probe(ctx, srv.BaseURL())
		}(srv)
	}
	wg.Wait()
}

func (s *Scanner) probe(ctx context.Context, baseURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+probePath, nil)
	if err != nil {
		return false
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		logging.Debug("Probe failed", zap.String("url", baseURL), zap.Error(err))
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// parseServiceEntry converts a zeroconf service entry to a Server.
// Returns nil when the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Server {
	if entry == nil {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = "[" + entry.AddrIPv6[0].String() + "]"
	}
	if ip == "" {
		return nil
	}

	haPort := entry.Port
	if haPort == 0 {
		haPort = DefaultHAPort
	}

	port := s.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	name := metadata["location_name"]
	if name == "" {
		name = entry.Instance
	}

	return &Server{
		Name:         name,
		Hostname:     strings.TrimSuffix(entry.HostName, "."),
		IP:           ip,
		Port:         port,
		HAPort:       haPort,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
