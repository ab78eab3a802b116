package refvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveMode(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  Mode
	}{
		{"entity id", "sensor.outdoor_temp", ModeEntity},
		{"helper without dot", "input_battery_min", ModeEntity},
		{"secret", "!secret ha_token", ModeSecret},
		{"secret with dotted key", "!secret db.password", ModeSecret},
		{"plain string", "cost", ModeLiteral},
		{"empty string", "", ModeLiteral},
		{"path with dot", "/config/dao/options.json", ModeLiteral},
		{"number", 21.5, ModeLiteral},
		{"bool", true, ModeLiteral},
		{"nil", nil, ModeLiteral},
		{"secret prefix without space", "!secretkey", ModeLiteral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveMode(tt.value))
		})
	}
}

func TestDecodeSecret(t *testing.T) {
	key, ok := DecodeSecret("!secret ha_token")
	assert.True(t, ok)
	assert.Equal(t, "ha_token", key)

	_, ok = DecodeSecret("ha_token")
	assert.False(t, ok)

	key, ok = DecodeSecret("!secret ")
	assert.True(t, ok)
	assert.Equal(t, "", key)
}

func TestLiteralDefault(t *testing.T) {
	five := 5.0

	tests := []struct {
		name string
		spec LiteralSpec
		want any
	}{
		{"bool", LiteralSpec{Kind: LiteralBool}, false},
		{"bool with default", LiteralSpec{Kind: LiteralBool, Default: true, HasDefault: true}, true},
		{"number", LiteralSpec{Kind: LiteralNumber}, float64(0)},
		{"number with minimum", LiteralSpec{Kind: LiteralNumber, Minimum: &five}, 5.0},
		{"number default beats minimum", LiteralSpec{Kind: LiteralNumber, Minimum: &five, Default: 7.0, HasDefault: true}, 7.0},
		{"enum", LiteralSpec{Kind: LiteralEnum, Options: []any{"cost", "co2"}}, "cost"},
		{"empty enum", LiteralSpec{Kind: LiteralEnum}, ""},
		{"string", LiteralSpec{Kind: LiteralString}, ""},
		{"reference-shaped default ignored", LiteralSpec{Kind: LiteralString, Default: "sensor.x", HasDefault: true}, ""},
		{"null default ignored", LiteralSpec{Kind: LiteralBool, Default: nil, HasDefault: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LiteralDefault(tt.spec))
		})
	}
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "entity", ModeEntity.String())
	assert.Equal(t, "secret", ModeSecret.String())
	assert.Equal(t, "literal", ModeLiteral.String())
	assert.True(t, ModeSecret.IsReference())
	assert.False(t, ModeLiteral.IsReference())
}
