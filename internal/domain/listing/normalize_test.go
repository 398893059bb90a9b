package listing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeExamples(t *testing.T) {
	cases := map[string]string{
		"  A b":        "ab",
		"Sokha Dara":   "sokhadara",
		"\tX\nY Z": "xyz",
		"":             "",
		"Café":   "café",
		"សុខ ដារា":     "សុខដារា",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("normalize(normalize(s)) == normalize(s)", prop.ForAll(
		func(s string) bool {
			once := Normalize(s)
			return Normalize(once) == once
		},
		gen.AnyString(),
	))
	properties.Property("output has no whitespace", prop.ForAll(
		func(s string) bool {
			for _, r := range Normalize(s + " \t") {
				if r == ' ' || r == '\t' {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
