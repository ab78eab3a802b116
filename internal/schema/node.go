package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Node is one JSON Schema node, restricted to the keywords the editor uses
// plus the Home Assistant vendor extensions.
type Node struct {
	Ref         string
	Types       []string
	Title       string
	Description string
	Format      string

	Default    any
	HasDefault bool
	Const      any
	HasConst   bool
	Enum       []any

	Minimum    *float64
	Maximum    *float64
	MultipleOf *float64

	Properties    map[string]*Node
	PropertyOrder []string
	Items         *Node
	OneOf         []*Node
	AnyOf         []*Node
	AllOf         []*Node
	Defs          map[string]*Node

	EntityDomains    string
	HasEntityDomains bool
	EntityAllowValue bool
	Secret           bool
	SecretAllowValue bool
}

type rawNode struct {
	Ref         string          `json:"$ref"`
	Type        json.RawMessage `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Format      string          `json:"format"`

	Default json.RawMessage `json:"default"`
	Const   json.RawMessage `json:"const"`
	Enum    []any           `json:"enum"`

	Minimum    *float64 `json:"minimum"`
	Maximum    *float64 `json:"maximum"`
	MultipleOf *float64 `json:"multipleOf"`

	Properties  json.RawMessage  `json:"properties"`
	Items       *Node            `json:"items"`
	OneOf       []*Node          `json:"oneOf"`
	AnyOf       []*Node          `json:"anyOf"`
	AllOf       []*Node          `json:"allOf"`
	Defs        map[string]*Node `json:"$defs"`
	Definitions map[string]*Node `json:"definitions"`

	EntityDomains    *string `json:"haEntityDomains"`
	EntityAllowValue bool    `json:"haEntityAllowValue"`
	Secret           bool    `json:"haSecret"`
	SecretAllowValue bool    `json:"haSecretAllowValue"`
}

// UnmarshalJSON decodes a schema node, keeping property declaration order.
func (n *Node) UnmarshalJSON(data []byte) error {
	// boolean schemas (true/false) carry no editable structure
	if t := bytes.TrimSpace(data); bytes.Equal(t, []byte("true")) || bytes.Equal(t, []byte("false")) {
		*n = Node{}
		return nil
	}

	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*n = Node{
		Ref:              raw.Ref,
		Title:            raw.Title,
		Description:      raw.Description,
		Format:           raw.Format,
		Enum:             raw.Enum,
		Minimum:          raw.Minimum,
		Maximum:          raw.Maximum,
		MultipleOf:       raw.MultipleOf,
		Items:            raw.Items,
		OneOf:            raw.OneOf,
		AnyOf:            raw.AnyOf,
		AllOf:            raw.AllOf,
		EntityAllowValue: raw.EntityAllowValue,
		Secret:           raw.Secret,
		SecretAllowValue: raw.SecretAllowValue,
	}

	if raw.EntityDomains != nil {
		n.EntityDomains = *raw.EntityDomains
		n.HasEntityDomains = true
	}

	types, err := decodeTypes(raw.Type)
	if err != nil {
		return err
	}
	n.Types = types

	if len(raw.Default) > 0 {
		if err := json.Unmarshal(raw.Default, &n.Default); err != nil {
			return fmt.Errorf("default: %w", err)
		}
		n.HasDefault = true
	}
	if len(raw.Const) > 0 {
		if err := json.Unmarshal(raw.Const, &n.Const); err != nil {
			return fmt.Errorf("const: %w", err)
		}
		n.HasConst = true
	}

	if len(raw.Properties) > 0 {
		props, order, err := decodeProperties(raw.Properties)
		if err != nil {
			return err
		}
		n.Properties = props
		n.PropertyOrder = order
	}

	if len(raw.Defs) > 0 || len(raw.Definitions) > 0 {
		n.Defs = make(map[string]*Node, len(raw.Defs)+len(raw.Definitions))
		for k, v := range raw.Definitions {
			n.Defs["#/definitions/"+k] = v
		}
		for k, v := range raw.Defs {
			n.Defs["#/$defs/"+k] = v
		}
	}

	return nil
}

// decodeTypes accepts "type": "x" as well as "type": ["x", "null"].
func decodeTypes(data json.RawMessage) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("type: %w", err)
	}
	return many, nil
}

func decodeProperties(data json.RawMessage) (map[string]*Node, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("properties: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("properties: expected an object")
	}

	props := make(map[string]*Node)
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("properties: %w", err)
		}
		key := tok.(string)

		var child Node
		if err := dec.Decode(&child); err != nil {
			return nil, nil, fmt.Errorf("properties.%s: %w", key, err)
		}
		if _, dup := props[key]; !dup {
			order = append(order, key)
		}
		props[key] = &child
	}
	return props, order, nil
}

// HasType reports whether t is one of the node's declared types.
func (n *Node) HasType(t string) bool {
	for _, have := range n.Types {
		if have == t {
			return true
		}
	}
	return false
}

// IsObject reports whether the node describes an object with properties.
func (n *Node) IsObject() bool {
	return len(n.Properties) > 0
}

// IsArray reports whether the node describes an array.
func (n *Node) IsArray() bool {
	return n.HasType("array") || n.Items != nil
}

// IsNull reports whether the node only admits null.
func (n *Node) IsNull() bool {
	return len(n.Types) == 1 && n.Types[0] == "null"
}
