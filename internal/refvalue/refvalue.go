// Package refvalue models a configuration value that is either a literal or
// a reference resolved at runtime: a Home Assistant entity ID, or a key in
// secrets.json.
//
// The stored value is the only source of truth. Whether a field shows its
// literal editor or its reference editor is derived from the value's shape
// every time it is needed:
//
//	refvalue.DeriveMode("sensor.outdoor_temp") // ModeEntity
//	refvalue.DeriveMode("!secret ha_token")   // ModeSecret
//	refvalue.DeriveMode(21.5)                 // ModeLiteral
//
// Shape sniffing is ambiguous by nature: a literal string that happens to
// contain a dot reads as an entity reference. The wire format is fixed, so
// the ambiguity is accepted and documented rather than resolved here.
package refvalue

import "strings"

// SecretPrefix marks a value read from secrets.json at runtime.
const SecretPrefix = "!secret "

// EntityPrefix is the reserved prefix of helper entities, which count as
// references even without a domain separator.
const EntityPrefix = "input_"

// Mode is the editor a value belongs to.
type Mode int

const (
	ModeLiteral Mode = iota
	ModeEntity
	ModeSecret
)

func (m Mode) String() string {
	switch m {
	case ModeEntity:
		return "entity"
	case ModeSecret:
		return "secret"
	default:
		return "literal"
	}
}

// IsReference reports whether the mode resolves elsewhere at runtime.
func (m Mode) IsReference() bool {
	return m != ModeLiteral
}

// IsEntityRef reports whether s has the shape of an entity ID: it contains a
// dot or starts with "input_". Paths (leading "/") never qualify.
func IsEntityRef(s string) bool {
	if s == "" || strings.HasPrefix(s, "/") {
		return false
	}
	return strings.Contains(s, ".") || strings.HasPrefix(s, EntityPrefix)
}

// IsSecretRef reports whether s is a secret reference.
func IsSecretRef(s string) bool {
	return strings.HasPrefix(s, SecretPrefix)
}

// EncodeSecret builds the reference for a secrets.json key.
func EncodeSecret(key string) string {
	return SecretPrefix + key
}

// DecodeSecret returns the key of a secret reference. ok is false when s is
// not one.
func DecodeSecret(s string) (key string, ok bool) {
	if !IsSecretRef(s) {
		return "", false
	}
	return strings.TrimPrefix(s, SecretPrefix), true
}

// DeriveMode classifies a value by shape. Secret references take precedence
// since "!secret x.y" also contains a dot.
func DeriveMode(v any) Mode {
	s, ok := v.(string)
	if !ok {
		return ModeLiteral
	}
	if IsSecretRef(s) {
		return ModeSecret
	}
	if IsEntityRef(s) {
		return ModeEntity
	}
	return ModeLiteral
}
