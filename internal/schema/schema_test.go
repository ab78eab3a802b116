package schema

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayahead/daocfg/internal/refvalue"
)

const testSchema = `{
  "type": "object",
  "properties": {
    "interval": {"type": "string", "enum": ["1hour", "15min"], "default": "1hour"},
    "strategy": {
      "oneOf": [{"const": "minimize cost"}, {"const": "minimize consumption"}],
      "haEntityDomains": "input_select",
      "haEntityAllowValue": true
    },
    "max_gap": {"type": "number", "minimum": 0, "maximum": 1, "multipleOf": 0.01},
    "homeassistant": {"$ref": "#/$defs/HomeAssistant"},
    "battery": {
      "type": "array",
      "items": {"$ref": "#/$defs/Battery"}
    },
    "grid": {
      "anyOf": [{"$ref": "#/$defs/Grid"}, {"type": "null"}],
      "title": "Grid"
    }
  },
  "$defs": {
    "HomeAssistant": {
      "type": "object",
      "properties": {
        "url": {"type": "string", "title": "Home Assistant URL"},
        "token": {"type": "string", "format": "password", "haSecret": true, "haSecretAllowValue": true}
      }
    },
    "Battery": {
      "type": "object",
      "properties": {
        "name": {"type": "string"},
        "capacity": {"type": ["number", "string"], "haEntityDomains": "sensor,input_number", "haEntityAllowValue": true, "minimum": 1},
        "soc_entity": {"type": "string", "haEntityDomains": "sensor"},
        "present": {"type": "boolean", "haEntityDomains": "input_boolean", "haEntityAllowValue": true}
      }
    },
    "Grid": {
      "type": "object",
      "properties": {
        "max_power": {"type": "integer", "default": 17}
      }
    }
  }
}`

const testDocument = `{
  "interval": "1hour",
  "strategy": "input_select.dao_strategy",
  "max_gap": 0.1,
  "homeassistant": {"url": "http://supervisor/core", "token": "!secret ha_token"},
  "battery": [
    {"name": "Main", "capacity": 28, "soc_entity": "sensor.soc", "present": true},
    {"name": "Garage", "capacity": "sensor.garage_capacity", "soc_entity": "sensor.garage_soc", "present": false}
  ],
  "grid": {"max_power": 17}
}`

func mustParse(t *testing.T) *Schema {
	t.Helper()
	s, err := Parse([]byte(testSchema))
	require.NoError(t, err)
	return s
}

func TestParse_PropertyOrder(t *testing.T) {
	s := mustParse(t)
	assert.Equal(t,
		[]string{"interval", "strategy", "max_gap", "homeassistant", "battery", "grid"},
		s.Root.PropertyOrder)
}

func TestParse_Problems(t *testing.T) {
	bad := `{
	  "type": "object",
	  "properties": {
	    "a": {"$ref": "#/$defs/Missing"},
	    "b": {"type": "decimal"},
	    "c": {"type": "object", "properties": {"x": {"type": "string"}}, "haSecret": true},
	    "d": {"type": "number", "minimum": 5, "maximum": 1}
	  }
	}`

	_, err := Parse([]byte(bad))
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)
	assert.True(t, strings.HasPrefix(err.Error(), "schema has 4 problems:"))
	assert.Contains(t, err.Error(), "unresolved $ref #/$defs/Missing")
	assert.Contains(t, err.Error(), `unknown type "decimal"`)
}

func TestParse_RejectsNonObjectRoot(t *testing.T) {
	_, err := Parse([]byte(`{"type": "string"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestFields(t *testing.T) {
	s := mustParse(t)
	doc, err := DecodeDocument([]byte(testDocument))
	require.NoError(t, err)

	fields := s.Fields(doc)
	byID := map[string]Field{}
	var ids []string
	for _, f := range fields {
		byID[f.ID()] = f
		ids = append(ids, f.ID())
	}

	assert.Equal(t, []string{
		"interval", "strategy", "max_gap",
		"homeassistant.url", "homeassistant.token",
		"battery.0.name", "battery.0.capacity", "battery.0.soc_entity", "battery.0.present",
		"battery.1.name", "battery.1.capacity", "battery.1.soc_entity", "battery.1.present",
		"grid.max_power",
	}, ids)

	interval := byID["interval"]
	assert.Equal(t, refvalue.LiteralEnum, interval.Kind)
	assert.Equal(t, []any{"1hour", "15min"}, interval.Options)
	assert.False(t, interval.AllowsToggle())

	strategy := byID["strategy"]
	assert.Equal(t, refvalue.LiteralEnum, strategy.Kind)
	assert.Equal(t, []any{"minimize cost", "minimize consumption"}, strategy.Options)
	assert.True(t, strategy.AllowsToggle())
	assert.Equal(t, "input_select", strategy.DomainFilter())

	gap := byID["max_gap"]
	assert.Equal(t, refvalue.LiteralNumber, gap.Kind)
	assert.InDelta(t, 0.01, gap.Step(), 1e-12)

	token := byID["homeassistant.token"]
	assert.True(t, token.Secret)
	assert.True(t, token.Masked())
	assert.Equal(t, refvalue.ModeSecret, token.ReferenceMode())
	assert.Equal(t, "homeassistant", token.Category())

	url := byID["homeassistant.url"]
	assert.Equal(t, "Home Assistant URL", url.Title)

	capacity := byID["battery.1.capacity"]
	assert.Equal(t, refvalue.LiteralNumber, capacity.Kind)
	assert.Equal(t, "sensor,input_number", capacity.DomainFilter())
	require.NotNil(t, capacity.Minimum)
	assert.Equal(t, 1.0, *capacity.Minimum)
	assert.Equal(t, "capacity", capacity.Name())
	assert.Equal(t, "battery.1", capacity.Section())

	soc := byID["battery.0.soc_entity"]
	assert.True(t, soc.ReferenceOnly())
	assert.Equal(t, "Soc Entity", soc.Title)

	present := byID["battery.0.present"]
	assert.Equal(t, refvalue.LiteralBool, present.Kind)
	assert.Equal(t, false, refvalue.LiteralDefault(present.LiteralSpec()))

	power := byID["grid.max_power"]
	assert.True(t, power.Integer)
	assert.Equal(t, 1.0, power.Step())
	assert.Equal(t, 17.0, power.Default)
}

func TestFields_DefaultDomainsAndStep(t *testing.T) {
	s, err := Parse([]byte(`{"type":"object","properties":{"v":{"type":"number","haEntityDomains":""}}}`))
	require.NoError(t, err)

	fields := s.Fields(nil)
	require.Len(t, fields, 1)
	assert.Equal(t, DefaultEntityDomains, fields[0].DomainFilter())
	assert.Zero(t, fields[0].Step(), "no multipleOf, no granularity")
	assert.True(t, fields[0].ReferenceOnly())
}

func TestFields_EmptyArrayHasNoFields(t *testing.T) {
	s := mustParse(t)
	doc, err := DecodeDocument([]byte(`{"battery": []}`))
	require.NoError(t, err)

	for _, f := range s.Fields(doc) {
		assert.NotEqual(t, "battery", f.Path[0], "unexpected field %s", f.ID())
	}
}
