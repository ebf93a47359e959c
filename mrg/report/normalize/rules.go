package normalize

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule is one rewrite step of a normalization pipeline. Rules are applied in
// table order and each one sees the output of the previous one.
type Rule interface {
	Name() string
	Apply(s string) string
}

// Literal replaces every non-overlapping occurrence of Old with New.
type Literal struct {
	Old string
	New string
}

func (r Literal) Name() string          { return "replace " + quote(r.Old) }
func (r Literal) Apply(s string) string { return strings.ReplaceAll(s, r.Old, r.New) }

// Pattern replaces every match of Re with Repl. Repl may reference groups as ${1}.
type Pattern struct {
	Label string
	Re    *regexp.Regexp
	Repl  string
}

func (r Pattern) Name() string          { return r.Label }
func (r Pattern) Apply(s string) string { return r.Re.ReplaceAllString(s, r.Repl) }

// Func wraps an arbitrary string transform that does not fit a literal or regexp.
type Func struct {
	Label string
	Fn    func(string) string
}

func (r Func) Name() string          { return r.Label }
func (r Func) Apply(s string) string { return r.Fn(s) }

// DeleteChars removes every rune that appears in Set.
type DeleteChars struct {
	Set string
}

func (r DeleteChars) Name() string { return "delete " + quote(r.Set) }

func (r DeleteChars) Apply(s string) string {
	return strings.Map(func(c rune) rune {
		if strings.ContainsRune(r.Set, c) {
			return -1
		}
		return c
	}, s)
}

// TrimPrefix drops Prefix once if the text starts with it.
type TrimPrefix struct {
	Prefix string
}

func (r TrimPrefix) Name() string          { return "trim prefix " + quote(r.Prefix) }
func (r TrimPrefix) Apply(s string) string { return strings.TrimPrefix(s, r.Prefix) }

// ApplyAll runs rules in order.
func ApplyAll(rules []Rule, s string) string {
	for _, r := range rules {
		s = r.Apply(s)
	}
	return s
}

func pattern(label, expr, repl string) Pattern {
	return Pattern{Label: label, Re: regexp.MustCompile(expr), Repl: repl}
}

// collapse squeezes runs of a repeated character into one.
func collapse(ch string) Pattern {
	return pattern("collapse "+quote(ch), regexp.QuoteMeta(ch)+"{2,}", ch)
}

// pad surrounds each listed character with single spaces.
func pad(chars ...string) []Rule {
	rules := make([]Rule, 0, len(chars))
	for _, c := range chars {
		rules = append(rules, Literal{Old: c, New: " " + c + " "})
	}
	return rules
}

// markers expands an ordinal list marker format over [from, to] into literal rules.
// format must contain a single %d verb.
func markers(format string, from, to int, repl string) []Rule {
	rules := make([]Rule, 0, to-from+1)
	for n := from; n <= to; n++ {
		rules = append(rules, Literal{Old: fmt.Sprintf(format, n), New: repl})
	}
	return rules
}

func concat(groups ...[]Rule) []Rule {
	var out []Rule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func one(rules ...Rule) []Rule { return rules }

func quote(s string) string {
	return "\"" + strings.NewReplacer("\n", `\n`, "\t", `\t`).Replace(s) + "\""
}
