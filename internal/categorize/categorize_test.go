package categorize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"SBUX COFFEE #123", "Starbucks"},
		{"MAISON BREAD", "Bread"},
		{"Hyundai EV Charging Station", "Car Charging"},
		{"KOPITIEN PIK", "Eating"},
		{"random shop", "Others"},
		{"", "Others"},
		// first match wins: sbux is listed before maison
		{"MAISON SBUX", "Starbucks"},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.description))
		})
	}
}

func TestNew_ExtraRulesAreAppended(t *testing.T) {
	c := New(
		Rule{Substring: "  GRAB ", Label: "Transport"},
		Rule{Substring: "sbux", Label: "Coffee"},
		Rule{Substring: "", Label: "Ignored"},
		Rule{Substring: "x", Label: " "},
	)

	assert.Equal(t, "Transport", c.Categorize("GRAB* RIDE"))
	// the default sbux rule keeps precedence over the later duplicate
	assert.Equal(t, "Starbucks", c.Categorize("SBUX"))

	rules := c.Rules()
	assert.Len(t, rules, len(DefaultRules)+2)
	assert.Equal(t, Rule{Substring: "grab", Label: "Transport"}, rules[len(DefaultRules)])
}

func TestRules_ReturnsCopy(t *testing.T) {
	c := New()
	rules := c.Rules()
	rules[0].Label = "changed"

	assert.Equal(t, "Starbucks", c.Categorize("sbux"))
}
