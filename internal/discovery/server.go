package discovery

import (
	"fmt"
	"strings"
	"time"
)

// Server is a Home Assistant host that may run the DAO webserver.
type Server struct {
	// Name is the Home Assistant location name, or the mDNS instance name
	Name string

	// Hostname is the mDNS hostname without the trailing dot
	Hostname string

	// IP is the address to connect to; IPv6 addresses are bracketed
	IP string

	// Port is the DAO webserver port
	Port int

	// HAPort is the Home Assistant frontend port
	HAPort int

	// Metadata holds the TXT record (version, uuid, internal_url, ...)
	Metadata map[string]string

	// DiscoveredAt is when the host answered
	DiscoveredAt time.Time

	// Reachable is set by Scanner.Probe
	Reachable bool
}

// String returns a human-readable description
func (s *Server) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", s.Name, s.Hostname, s.IP, s.Port)
}

// BaseURL returns the DAO webserver URL
func (s *Server) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.IP, s.Port)
}

// HomeAssistantURL returns the advertised internal URL, or one built from
// the address and port.
func (s *Server) HomeAssistantURL() string {
	if u := strings.TrimRight(s.GetMetadata("internal_url"), "/"); u != "" {
		return u
	}
	return fmt.Sprintf("http://%s:%d", s.IP, s.HAPort)
}

// Version returns the advertised Home Assistant version
func (s *Server) Version() string {
	return s.GetMetadata("version")
}

// SuggestedName is a config-friendly key for the server: lower case,
// spaces replaced by dashes.
func (s *Server) SuggestedName() string {
	name := s.Name
	if name == "" {
		name = strings.TrimSuffix(s.Hostname, ".local")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.Join(strings.Fields(name), "-")
	if name == "" {
		return "dao"
	}
	return name
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Server) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
