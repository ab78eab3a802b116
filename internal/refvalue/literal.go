package refvalue

// LiteralKind is the type of the literal a field holds when it is not a
// reference.
type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBool
	LiteralEnum
)

func (k LiteralKind) String() string {
	switch k {
	case LiteralNumber:
		return "number"
	case LiteralBool:
		return "boolean"
	case LiteralEnum:
		return "enum"
	default:
		return "string"
	}
}

// LiteralSpec is the subset of a field schema needed to pick a literal value.
type LiteralSpec struct {
	Kind       LiteralKind
	Default    any
	HasDefault bool
	Minimum    *float64
	Options    []any
}

// LiteralDefault is the value a field takes when switched from a reference
// back to a literal. A declared default wins unless it is itself
// reference-shaped; otherwise booleans reset to false, numbers to their
// minimum (or 0), enums to their first option and strings to "".
func LiteralDefault(spec LiteralSpec) any {
	if spec.HasDefault && spec.Default != nil && DeriveMode(spec.Default) == ModeLiteral {
		return spec.Default
	}

	switch spec.Kind {
	case LiteralBool:
		return false
	case LiteralNumber:
		if spec.Minimum != nil {
			return *spec.Minimum
		}
		return float64(0)
	case LiteralEnum:
		if len(spec.Options) > 0 {
			return spec.Options[0]
		}
		return ""
	default:
		return ""
	}
}
