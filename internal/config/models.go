package config

import (
	"fmt"
	"sort"
	"time"
)

// Registry represents the entire user configuration file: saved webservers
// and editor preferences.
type Registry struct {
	Version        int                 `yaml:"version" validate:"eq=1"`
	DefaultBackend string              `yaml:"default_backend,omitempty"`
	Backends       map[string]*Backend `yaml:"backends,omitempty" validate:"dive,keys,required,endkeys,required"`
	Preferences    *Preferences        `yaml:"preferences" validate:"required"`
}

// Backend is a saved DAO webserver.
type Backend struct {
	URL      string    `yaml:"url" validate:"required,url"`
	Nickname string    `yaml:"nickname,omitempty"`
	Source   string    `yaml:"source,omitempty" validate:"omitempty,oneof=manual mdns"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences tune the editor. Zero values fall back to defaults on load.
type Preferences struct {
	DebounceMs      int    `yaml:"debounce_ms" validate:"gte=0,lte=5000"`
	MinChars        int    `yaml:"min_chars" validate:"gte=0,lte=10"`
	MaxResults      int    `yaml:"max_results" validate:"gte=0,lte=1000"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds" validate:"gte=0,lte=86400"`
	ToastSeconds    int    `yaml:"toast_seconds" validate:"gte=0,lte=60"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" validate:"gte=0,lte=300"`
	DiscoverTimeout int    `yaml:"discover_timeout" validate:"gte=0,lte=120"`
	PatternParam    string `yaml:"pattern_param" validate:"omitempty,oneof=pattern q"`
	HelpFile        string `yaml:"help_file,omitempty" validate:"omitempty,filepath"`
}

// Default preference values
const (
	DefaultDebounceMs      = 300
	DefaultMinChars        = 2
	DefaultMaxResults      = 50
	DefaultCacheTTLSeconds = 300
	DefaultToastSeconds    = 4
	DefaultTimeoutSeconds  = 10
	DefaultDiscoverTimeout = 5
	DefaultPatternParam    = "pattern"
)

// NewPreferences returns preferences with every default filled in.
func NewPreferences() *Preferences {
	p := &Preferences{}
	p.applyDefaults()
	return p
}

func (p *Preferences) applyDefaults() {
	if p.DebounceMs == 0 {
		p.DebounceMs = DefaultDebounceMs
	}
	if p.MinChars == 0 {
		p.MinChars = DefaultMinChars
	}
	if p.MaxResults == 0 {
		p.MaxResults = DefaultMaxResults
	}
	if p.CacheTTLSeconds == 0 {
		p.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if p.ToastSeconds == 0 {
		p.ToastSeconds = DefaultToastSeconds
	}
	if p.TimeoutSeconds == 0 {
		p.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if p.DiscoverTimeout == 0 {
		p.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if p.PatternParam == "" {
		p.PatternParam = DefaultPatternParam
	}
}

// Debounce is the autocomplete quiet period.
func (p *Preferences) Debounce() time.Duration {
	return time.Duration(p.DebounceMs) * time.Millisecond
}

// CacheTTL is how long a full entity fetch stays fresh.
func (p *Preferences) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSeconds) * time.Second
}

// ToastDuration is how long a notification stays on screen.
func (p *Preferences) ToastDuration() time.Duration {
	return time.Duration(p.ToastSeconds) * time.Second
}

// Timeout is the HTTP request timeout.
func (p *Preferences) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DiscoverDuration is how long scan browses for webservers.
func (p *Preferences) DiscoverDuration() time.Duration {
	return time.Duration(p.DiscoverTimeout) * time.Second
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Backends:    make(map[string]*Backend),
		Preferences: NewPreferences(),
	}
}

// GetBackend retrieves a saved backend by name.
// Returns nil if no backend has that name.
func (r *Registry) GetBackend(name string) *Backend {
	return r.Backends[name]
}

// EnsureBackend creates or updates the backend called name.
func (r *Registry) EnsureBackend(name, url, source string) *Backend {
	if r.Backends == nil {
		r.Backends = make(map[string]*Backend)
	}

	b, ok := r.Backends[name]
	if !ok {
		b = &Backend{}
		r.Backends[name] = b
	}
	b.URL = url
	if source != "" {
		b.Source = source
	}
	if r.DefaultBackend == "" {
		r.DefaultBackend = name
	}
	return b
}

// TouchBackend records a successful connection.
func (r *Registry) TouchBackend(name string) {
	if b := r.Backends[name]; b != nil {
		b.LastSeen = time.Now()
	}
}

// SetDefaultBackend selects the backend used when no --url is given.
func (r *Registry) SetDefaultBackend(name string) error {
	if _, ok := r.Backends[name]; !ok {
		return fmt.Errorf("no saved backend named %q", name)
	}
	r.DefaultBackend = name
	return nil
}

// RemoveBackend deletes a saved backend, clearing the default if needed.
func (r *Registry) RemoveBackend(name string) bool {
	if _, ok := r.Backends[name]; !ok {
		return false
	}
	delete(r.Backends, name)
	if r.DefaultBackend == name {
		r.DefaultBackend = ""
	}
	return true
}

// BackendNames returns saved backend names in sorted order.
func (r *Registry) BackendNames() []string {
	names := make([]string, 0, len(r.Backends))
	for name := range r.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveBackend picks a saved backend: the named one, else the default,
// else the only one saved.
func (r *Registry) ResolveBackend(name string) (string, *Backend, error) {
	if name != "" {
		b := r.Backends[name]
		if b == nil {
			return "", nil, fmt.Errorf("no saved backend named %q", name)
		}
		return name, b, nil
	}
	if r.DefaultBackend != "" {
		if b := r.Backends[r.DefaultBackend]; b != nil {
			return r.DefaultBackend, b, nil
		}
	}
	if len(r.Backends) == 1 {
		for n, b := range r.Backends {
			return n, b, nil
		}
	}
	if len(r.Backends) == 0 {
		return "", nil, fmt.Errorf("no webserver configured (use --url, or run 'dao-cfg scan --save')")
	}
	return "", nil, fmt.Errorf("several backends saved and none is the default (use 'dao-cfg backends use <name>')")
}
