package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// maxRefDepth bounds $ref chains so a self-referencing schema cannot loop.
const maxRefDepth = 32

var knownTypes = map[string]bool{
	"string": true, "number": true, "integer": true, "boolean": true,
	"object": true, "array": true, "null": true,
}

// Schema is a parsed settings schema.
type Schema struct {
	Root *Node
	defs map[string]*Node
	raw  json.RawMessage
}

// Parse decodes a settings schema and checks it for problems the editor
// cannot work around: unresolvable $refs, unknown types, and vendor
// extensions placed on nodes that cannot hold a reference. All problems are
// reported together.
func Parse(data []byte) (*Schema, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if !root.IsObject() {
		return nil, fmt.Errorf("schema root has no properties")
	}

	s := &Schema{
		Root: &root,
		defs: root.Defs,
		raw:  append(json.RawMessage(nil), data...),
	}
	if s.defs == nil {
		s.defs = map[string]*Node{}
	}

	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// Raw returns the schema document as received.
func (s *Schema) Raw() json.RawMessage {
	return s.raw
}

// Resolve follows $ref pointers until a concrete node is reached.
func (s *Schema) Resolve(n *Node) (*Node, error) {
	for depth := 0; n != nil && n.Ref != ""; depth++ {
		if depth >= maxRefDepth {
			return nil, fmt.Errorf("$ref chain too deep at %s", n.Ref)
		}
		target, ok := s.defs[n.Ref]
		if !ok {
			return nil, fmt.Errorf("unresolved $ref %s", n.Ref)
		}
		n = target
	}
	return n, nil
}

// mustResolve is Resolve for schemas that already passed check.
func (s *Schema) mustResolve(n *Node) *Node {
	r, err := s.Resolve(n)
	if err != nil {
		return &Node{}
	}
	return r
}

func (s *Schema) check() error {
	var result *multierror.Error
	visited := map[*Node]bool{}

	var walk func(path string, n *Node)
	walk = func(path string, n *Node) {
		if n == nil {
			return
		}
		if n.Ref != "" {
			target, err := s.Resolve(n)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
				return
			}
			n = target
		}
		if visited[n] {
			return
		}
		visited[n] = true

		for _, t := range n.Types {
			if !knownTypes[t] {
				result = multierror.Append(result, fmt.Errorf("%s: unknown type %q", path, t))
			}
		}
		if (n.HasEntityDomains || n.Secret) && n.IsObject() {
			result = multierror.Append(result, fmt.Errorf("%s: reference extension on an object node", path))
		}
		if n.HasEntityDomains && n.Secret {
			result = multierror.Append(result, fmt.Errorf("%s: both haEntityDomains and haSecret set", path))
		}
		if n.Minimum != nil && n.Maximum != nil && *n.Minimum > *n.Maximum {
			result = multierror.Append(result, fmt.Errorf("%s: minimum %v above maximum %v", path, *n.Minimum, *n.Maximum))
		}
		if n.MultipleOf != nil && *n.MultipleOf <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s: multipleOf must be positive", path))
		}

		for _, key := range n.PropertyOrder {
			walk(path+"/properties/"+key, n.Properties[key])
		}
		walk(path+"/items", n.Items)
		for i, c := range n.OneOf {
			walk(fmt.Sprintf("%s/oneOf/%d", path, i), c)
		}
		for i, c := range n.AnyOf {
			walk(fmt.Sprintf("%s/anyOf/%d", path, i), c)
		}
		for i, c := range n.AllOf {
			walk(fmt.Sprintf("%s/allOf/%d", path, i), c)
		}
	}

	walk("#", s.Root)

	keys := make([]string, 0, len(s.defs))
	for k := range s.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		walk(k, s.defs[k])
	}

	if result != nil {
		result.ErrorFormat = problemList
	}
	return result.ErrorOrNil()
}

func problemList(errs []error) string {
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = "  - " + err.Error()
	}
	noun := "problems"
	if len(errs) == 1 {
		noun = "problem"
	}
	return fmt.Sprintf("schema has %d %s:\n%s", len(errs), noun, strings.Join(lines, "\n"))
}
