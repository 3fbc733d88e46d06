// Package guard rejects query text that matches known injection patterns.
//
// The guard is a heuristic, allow-by-default filter. It is one layer of
// defense in depth and does not replace parameterized queries.
package guard

import (
	"fmt"
	"regexp"
	"strings"

	qerr "github.com/JonnyJiang123/smart-sql/pkg/errors"
)

// Rule is a single pattern check with a human-readable reason.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Reason  string
}

// DefaultRules are evaluated in order against the lower-cased query text.
var DefaultRules = []Rule{
	{
		Name:    "union-select",
		Pattern: regexp.MustCompile(`(;|--|\||\s)union\s+select`),
		Reason:  "UNION SELECT after a separator",
	},
	{
		Name:    "drop-table",
		Pattern: regexp.MustCompile(`drop\s+table\s+`),
		Reason:  "DROP TABLE statement",
	},
	{
		Name:    "alter-table",
		Pattern: regexp.MustCompile(`alter\s+table\s+`),
		Reason:  "ALTER TABLE statement",
	},
	{
		Name:    "database-ddl",
		Pattern: regexp.MustCompile(`(create|drop)\s+database`),
		Reason:  "CREATE/DROP DATABASE statement",
	},
	{
		Name:    "stacked-statement",
		Pattern: regexp.MustCompile(`;\s*\w+`),
		Reason:  "multiple statements",
	},
	{
		Name:    "dangerous-function",
		Pattern: regexp.MustCompile(`exec\s*\(|sp_executesql|xp_cmdshell`),
		Reason:  "dangerous function call",
	},
	{
		Name:    "comment",
		Pattern: regexp.MustCompile(`(\s|^)(--|#|/\*).*(\*/|$)`),
		Reason:  "comment sequence",
	},
}

// DefaultMetachars are suspicious substrings checked after the rules.
var DefaultMetachars = []string{
	"' or ",
	" or '",
	"'--",
	"' /*",
	"*/ '",
	"'= '",
	"'like '",
	"1=1",
	"' union ",
	"' and ",
	" and '",
	") or (",
	"' or ''='",
	"' or 1=1",
	") or 1=1--",
}

// Guard holds a rule set. The zero value has no rules; use New or Default.
type Guard struct {
	rules     []Rule
	metachars []string
}

// Violation describes the first rule a query matched.
type Violation struct {
	Rule   string
	Reason string
	Match  string
}

// New creates a guard with the given rules and metacharacter substrings.
func New(rules []Rule, metachars []string) *Guard {
	return &Guard{rules: rules, metachars: metachars}
}

// Default returns a guard with DefaultRules and DefaultMetachars.
func Default() *Guard {
	return New(DefaultRules, DefaultMetachars)
}

var defaultGuard = Default()

// Check runs the default guard against text.
func Check(text string) error {
	return defaultGuard.Check(text)
}

// Check returns an InjectionDetected error for the first match, or nil.
func (g *Guard) Check(text string) error {
	v := g.Inspect(text)
	if v == nil {
		return nil
	}
	return qerr.Newf(qerr.CodeInjectionDetected, "potential SQL injection detected: %s", v.Reason).
		WithDetail("rule", v.Rule)
}

// Inspect returns the first violation, or nil if the text passes.
func (g *Guard) Inspect(text string) *Violation {
	lower := strings.ToLower(text)

	for _, r := range g.rules {
		if loc := r.Pattern.FindStringIndex(lower); loc != nil {
			return &Violation{Rule: r.Name, Reason: r.Reason, Match: lower[loc[0]:loc[1]]}
		}
	}

	for _, mc := range g.metachars {
		if strings.Contains(lower, mc) {
			return &Violation{
				Rule:   "metachar",
				Reason: fmt.Sprintf("suspicious character sequence %q", mc),
				Match:  mc,
			}
		}
	}

	return nil
}
