// Package categorize maps transaction descriptions to category labels using an
// ordered list of substring rules.
package categorize

import "strings"

// Fallback is returned when no rule matches.
const Fallback = "Others"

// Rule assigns Label to any description containing Substring (case
// insensitive).
type Rule struct {
	Substring string `mapstructure:"match"`
	Label     string `mapstructure:"label"`
}

// DefaultRules is the built-in rule table. Order decides ties: new rules are
// appended, never inserted.
var DefaultRules = []Rule{
	{Substring: "sbux", Label: "Starbucks"},
	{Substring: "maison", Label: "Bread"},
	{Substring: "hyundai", Label: "Car Charging"},
	{Substring: "kopitien", Label: "Eating"},
}

// Categorizer applies an ordered rule table.
type Categorizer struct {
	rules []Rule
}

// New returns a Categorizer with DefaultRules followed by extra. Rules with an
// empty substring or label are ignored.
func New(extra ...Rule) *Categorizer {
	rules := make([]Rule, 0, len(DefaultRules)+len(extra))
	for _, r := range append(append([]Rule{}, DefaultRules...), extra...) {
		if strings.TrimSpace(r.Substring) == "" || strings.TrimSpace(r.Label) == "" {
			continue
		}
		rules = append(rules, Rule{
			Substring: strings.ToLower(strings.TrimSpace(r.Substring)),
			Label:     strings.TrimSpace(r.Label),
		})
	}
	return &Categorizer{rules: rules}
}

// Categorize returns the label of the first matching rule, or Fallback.
func (c *Categorizer) Categorize(description string) string {
	desc := strings.ToLower(description)
	for _, r := range c.rules {
		if strings.Contains(desc, r.Substring) {
			return r.Label
		}
	}
	return Fallback
}

// Rules returns a copy of the active rule table in match order.
func (c *Categorizer) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

var defaultCategorizer = New()

// Categorize applies DefaultRules.
func Categorize(description string) string {
	return defaultCategorizer.Categorize(description)
}
