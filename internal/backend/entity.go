package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Entity is a snapshot of one Home Assistant entity as reported by the
// webserver. It may go stale; the entity ID is its identity.
type Entity struct {
	ID          string `json:"entity_id"`
	DisplayName string `json:"friendly_name,omitempty"`
	Domain      string `json:"domain,omitempty"`
	State       string `json:"state,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// UnmarshalJSON accepts a numeric or boolean state as well as a string.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string `json:"entity_id"`
		DisplayName string `json:"friendly_name"`
		Domain      string `json:"domain"`
		State       any    `json:"state"`
		Unit        string `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = Entity{
		ID:          raw.ID,
		DisplayName: raw.DisplayName,
		Domain:      raw.Domain,
		Unit:        raw.Unit,
	}

	switch s := raw.State.(type) {
	case nil:
	case string:
		e.State = s
	case float64:
		e.State = strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		e.State = strconv.FormatBool(s)
	default:
		return fmt.Errorf("entity %s: unsupported state %v", raw.ID, raw.State)
	}
	return nil
}

// EffectiveDomain returns Domain, or the part of the ID before the first dot.
func (e Entity) EffectiveDomain() string {
	if e.Domain != "" {
		return e.Domain
	}
	if i := strings.IndexByte(e.ID, '.'); i > 0 {
		return e.ID[:i]
	}
	return ""
}

// Label is the friendly name, or the ID when the entity has none.
func (e Entity) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	return e.ID
}

// HasKnownState reports whether State carries a real reading.
func (e Entity) HasKnownState() bool {
	switch e.State {
	case "", "unknown", "unavailable":
		return false
	}
	return true
}

// StateWithUnit formats the current reading, e.g. "21.5 °C". Empty when the
// state is unknown.
func (e Entity) StateWithUnit() string {
	if !e.HasKnownState() {
		return ""
	}
	if e.Unit == "" {
		return e.State
	}
	return e.State + " " + e.Unit
}

// ParseDomainFilter splits a comma-separated domain allow-list.
// An empty filter yields nil, meaning every domain matches.
func ParseDomainFilter(filter string) []string {
	var domains []string
	for _, d := range strings.Split(filter, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	return domains
}

// MatchesDomain reports whether the entity belongs to one of domains.
func (e Entity) MatchesDomain(domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	d := e.EffectiveDomain()
	for _, want := range domains {
		if d == want {
			return true
		}
	}
	return false
}
