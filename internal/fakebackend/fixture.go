package fakebackend

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/schema"
)

//go:embed demo/*.json
var demoFS embed.FS

// Fixture is the state a Server answers from.
type Fixture struct {
	Entities  []backend.Entity
	Secrets   map[string]string
	Schema    json.RawMessage
	Documents map[string]json.RawMessage
}

// Clone returns a deep copy so servers never share mutable state.
func (f *Fixture) Clone() *Fixture {
	out := &Fixture{
		Entities:  append([]backend.Entity(nil), f.Entities...),
		Secrets:   make(map[string]string, len(f.Secrets)),
		Schema:    append(json.RawMessage(nil), f.Schema...),
		Documents: make(map[string]json.RawMessage, len(f.Documents)),
	}
	for k, v := range f.Secrets {
		out.Secrets[k] = v
	}
	for k, v := range f.Documents {
		out.Documents[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// LoadDemo returns the embedded demo installation: one battery, a handful
// of sensors and a few secrets.
func LoadDemo() (*Fixture, error) {
	f := &Fixture{Documents: make(map[string]json.RawMessage)}

	data, err := demoFS.ReadFile("demo/entities.json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &f.Entities); err != nil {
		return nil, fmt.Errorf("demo entities: %w", err)
	}

	data, err = demoFS.ReadFile("demo/secrets.json")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &f.Secrets); err != nil {
		return nil, fmt.Errorf("demo secrets: %w", err)
	}

	if f.Schema, err = demoFS.ReadFile("demo/schema.json"); err != nil {
		return nil, err
	}
	if _, err := schema.Parse(f.Schema); err != nil {
		return nil, fmt.Errorf("demo schema: %w", err)
	}

	options, err := demoFS.ReadFile("demo/options.json")
	if err != nil {
		return nil, err
	}
	f.Documents["options"] = options

	return f, nil
}

// DemoHelp returns the help catalog shipped with the demo.
func DemoHelp() (schema.HelpCatalog, error) {
	data, err := demoFS.ReadFile("demo/help.json")
	if err != nil {
		return nil, err
	}
	return schema.ParseHelp(data)
}
