package schema

import (
	"strconv"
	"strings"

	"github.com/dayahead/daocfg/internal/refvalue"
)

// DefaultEntityDomains is the domain filter of entity fields that do not
// declare haEntityDomains explicitly.
const DefaultEntityDomains = "input_number,sensor,number"

// Field is one editable scalar of the settings document.
type Field struct {
	Path        []string
	Title       string
	Description string
	Format      string

	Kind    refvalue.LiteralKind
	Integer bool
	Options []any

	Default    any
	HasDefault bool
	Minimum    *float64
	Maximum    *float64
	MultipleOf *float64

	Entity           bool
	EntityDomains    string
	EntityAllowValue bool
	Secret           bool
	SecretAllowValue bool
}

// ID is the dotted document path, e.g. "battery.0.capacity".
func (f Field) ID() string {
	return strings.Join(f.Path, ".")
}

// Name is the last non-index path segment.
func (f Field) Name() string {
	for i := len(f.Path) - 1; i >= 0; i-- {
		if _, err := strconv.Atoi(f.Path[i]); err != nil {
			return f.Path[i]
		}
	}
	return ""
}

// Section is the dotted path of the enclosing object, "" at top level.
func (f Field) Section() string {
	if len(f.Path) < 2 {
		return ""
	}
	return strings.Join(f.Path[:len(f.Path)-1], ".")
}

// Category is the top-level key a field lives under, used for help lookup.
func (f Field) Category() string {
	if len(f.Path) < 2 {
		return "general"
	}
	return f.Path[0]
}

// AllowsToggle reports whether the field may switch between a literal and
// a reference.
func (f Field) AllowsToggle() bool {
	return (f.Entity && f.EntityAllowValue) || (f.Secret && f.SecretAllowValue)
}

// ReferenceOnly reports whether the field only accepts a reference.
func (f Field) ReferenceOnly() bool {
	return (f.Entity && !f.EntityAllowValue) || (f.Secret && !f.SecretAllowValue)
}

// ReferenceMode is the reference kind the field accepts, or ModeLiteral for
// plain fields.
func (f Field) ReferenceMode() refvalue.Mode {
	switch {
	case f.Secret:
		return refvalue.ModeSecret
	case f.Entity:
		return refvalue.ModeEntity
	default:
		return refvalue.ModeLiteral
	}
}

// DomainFilter is the comma-separated entity domain allow-list.
func (f Field) DomainFilter() string {
	if f.EntityDomains != "" {
		return f.EntityDomains
	}
	return DefaultEntityDomains
}

// Step is the numeric input granularity, or 0 when any number is accepted.
func (f Field) Step() float64 {
	if f.MultipleOf != nil {
		return *f.MultipleOf
	}
	if f.Integer {
		return 1
	}
	return 0
}

// Masked reports whether literal input should be hidden while typing.
func (f Field) Masked() bool {
	return f.Format == "password"
}

// LiteralSpec describes the literal half of the field.
func (f Field) LiteralSpec() refvalue.LiteralSpec {
	return refvalue.LiteralSpec{
		Kind:       f.Kind,
		Default:    f.Default,
		HasDefault: f.HasDefault,
		Minimum:    f.Minimum,
		Options:    f.Options,
	}
}

// Fields flattens the schema into editable scalars, in declaration order.
// Array elements are enumerated from doc, since the schema alone does not
// say how many there are.
func (s *Schema) Fields(doc any) []Field {
	var out []Field
	s.collect(nil, s.Root, doc, &out)
	return out
}

func (s *Schema) collect(path []string, n *Node, value any, out *[]Field) {
	n = s.effective(n)

	if obj := s.objectBranch(n); obj != nil {
		container, _ := value.(*Object)
		for _, key := range obj.PropertyOrder {
			var child any
			if container != nil {
				child, _ = container.Get(key)
			}
			s.collect(appendPath(path, key), obj.Properties[key], child, out)
		}
		return
	}

	if n.IsArray() && !n.HasEntityDomains && !n.Secret {
		items, _ := value.([]any)
		for i, item := range items {
			s.collect(appendPath(path, strconv.Itoa(i)), n.Items, item, out)
		}
		return
	}

	if len(path) == 0 {
		return
	}
	*out = append(*out, s.leaf(path, n))
}

func appendPath(path []string, seg string) []string {
	p := make([]string, len(path), len(path)+1)
	copy(p, path)
	return append(p, seg)
}

// objectBranch returns the node describing an object, looking through
// anyOf/oneOf wrappers such as Optional[Model].
func (s *Schema) objectBranch(n *Node) *Node {
	if n.IsObject() {
		return n
	}
	if n.HasEntityDomains || n.Secret {
		return nil
	}
	for _, branches := range [][]*Node{n.AnyOf, n.OneOf} {
		for _, b := range branches {
			if e := s.effective(b); e.IsObject() {
				return e
			}
		}
	}
	return nil
}

// effective resolves $ref (and single-element allOf) and overlays the
// referring node's own keywords, which is where generators put titles,
// defaults and vendor extensions.
func (s *Schema) effective(n *Node) *Node {
	if n == nil {
		return &Node{}
	}

	var base *Node
	switch {
	case n.Ref != "":
		base = s.mustResolve(n)
	case len(n.AllOf) == 1 && !n.IsObject() && len(n.Types) == 0:
		base = s.effective(n.AllOf[0])
	default:
		return n
	}

	merged := *base
	merged.Ref = ""
	overlay(&merged, n)
	return &merged
}

func overlay(dst, src *Node) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if len(src.Types) > 0 {
		dst.Types = src.Types
	}
	if len(src.Enum) > 0 {
		dst.Enum = src.Enum
	}
	if src.HasDefault {
		dst.Default, dst.HasDefault = src.Default, true
	}
	if src.Minimum != nil {
		dst.Minimum = src.Minimum
	}
	if src.Maximum != nil {
		dst.Maximum = src.Maximum
	}
	if src.MultipleOf != nil {
		dst.MultipleOf = src.MultipleOf
	}
	if src.HasEntityDomains {
		dst.EntityDomains, dst.HasEntityDomains = src.EntityDomains, true
	}
	dst.EntityAllowValue = dst.EntityAllowValue || src.EntityAllowValue
	dst.Secret = dst.Secret || src.Secret
	dst.SecretAllowValue = dst.SecretAllowValue || src.SecretAllowValue
}

func (s *Schema) branches(n *Node) []*Node {
	var out []*Node
	for _, b := range append(append([]*Node(nil), n.OneOf...), n.AnyOf...) {
		out = append(out, s.effective(b))
	}
	return out
}

func (s *Schema) leaf(path []string, n *Node) Field {
	f := Field{
		Path:             path,
		Title:            n.Title,
		Description:      n.Description,
		Format:           n.Format,
		Default:          n.Default,
		HasDefault:       n.HasDefault,
		Minimum:          n.Minimum,
		Maximum:          n.Maximum,
		MultipleOf:       n.MultipleOf,
		Entity:           n.HasEntityDomains,
		EntityDomains:    n.EntityDomains,
		EntityAllowValue: n.EntityAllowValue,
		Secret:           n.Secret,
		SecretAllowValue: n.SecretAllowValue,
	}
	if f.Title == "" {
		f.Title = FieldTitle(f.Name())
	}

	branches := s.branches(n)
	for _, b := range branches {
		if f.Minimum == nil {
			f.Minimum = b.Minimum
		}
		if f.Maximum == nil {
			f.Maximum = b.Maximum
		}
		if f.MultipleOf == nil {
			f.MultipleOf = b.MultipleOf
		}
		if f.Format == "" {
			f.Format = b.Format
		}
	}

	if options := enumOptions(n, branches); len(options) > 0 {
		f.Kind = refvalue.LiteralEnum
		f.Options = options
		return f
	}

	switch primaryType(n, branches) {
	case "boolean":
		f.Kind = refvalue.LiteralBool
	case "number":
		f.Kind = refvalue.LiteralNumber
	case "integer":
		f.Kind = refvalue.LiteralNumber
		f.Integer = true
	default:
		f.Kind = refvalue.LiteralString
	}
	return f
}

// enumOptions finds a closed choice: enum on the node, enum on one of its
// branches, or branches that are all const.
func enumOptions(n *Node, branches []*Node) []any {
	if len(n.Enum) > 0 {
		return n.Enum
	}
	for _, b := range branches {
		if len(b.Enum) > 0 {
			return b.Enum
		}
	}

	var consts []any
	for _, b := range branches {
		if b.IsNull() {
			continue
		}
		if !b.HasConst {
			return nil
		}
		consts = append(consts, b.Const)
	}
	return consts
}

// primaryType is the first non-null declared type, looking at the node
// first and its branches second.
func primaryType(n *Node, branches []*Node) string {
	for _, t := range n.Types {
		if t != "null" {
			return t
		}
	}
	for _, b := range branches {
		for _, t := range b.Types {
			if t != "null" {
				return t
			}
		}
	}
	return ""
}
