package refvalue

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSecretRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("DecodeSecret(EncodeSecret(k)) == k", prop.ForAll(
		func(key string) bool {
			got, ok := DecodeSecret(EncodeSecret(key))
			return ok && got == key
		},
		gen.AnyString(),
	))

	properties.Property("encoded secrets always derive ModeSecret", prop.ForAll(
		func(key string) bool {
			return DeriveMode(EncodeSecret(key)) == ModeSecret
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestDeriveModeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("derivation is deterministic", prop.ForAll(
		func(s string) bool {
			return DeriveMode(s) == DeriveMode(s)
		},
		gen.AnyString(),
	))

	properties.Property("domain.object ids derive ModeEntity", prop.ForAll(
		func(domain, object string) bool {
			return DeriveMode(domain+"."+object) == ModeEntity
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("numbers derive ModeLiteral", prop.ForAll(
		func(f float64) bool {
			return DeriveMode(f) == ModeLiteral
		},
		gen.Float64(),
	))

	properties.Property("paths never derive ModeEntity", prop.ForAll(
		func(s string) bool {
			return DeriveMode("/"+s) != ModeEntity
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestLiteralDefaultProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("bool fields reset to a literal bool", prop.ForAll(
		func(hasDefault bool, def bool) bool {
			v := LiteralDefault(LiteralSpec{Kind: LiteralBool, Default: def, HasDefault: hasDefault})
			b, ok := v.(bool)
			return ok && DeriveMode(v) == ModeLiteral && (hasDefault || !b)
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("enum fields reset to their first option", prop.ForAll(
		func(options []string) bool {
			opts := make([]any, len(options))
			for i, o := range options {
				opts[i] = o
			}
			v := LiteralDefault(LiteralSpec{Kind: LiteralEnum, Options: opts})
			if len(opts) == 0 {
				return v == ""
			}
			return v == opts[0]
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
