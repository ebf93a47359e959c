package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	numToken  = "#NUM#"
	timeToken = "#TIME#"

	// ratioWindow is how many preceding words are checked for "ratio" before
	// reading an H:MM word as a time.
	ratioWindow = 3
)

// ffaPunct is deleted character by character from every ffa_ir sentence.
const ffaPunct = "!\"$%&'()+.,/:;?@[\\]^_`{|}"

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	wordRe     = regexp.MustCompile(`\S+`)
	clockRe    = regexp.MustCompile(`^(\d{1,2}):(\d{1,2})`)
)

// ffaFirstPass prepares raw angiography reports: list prefix, PD units,
// ideographic commas, newlines and operator spacing.
func ffaFirstPass() []Rule {
	return concat(
		one(
			TrimPrefix{Prefix: "1. "},
			Literal{Old: ";1", New: " 1"},
			pattern("space before PD unit", `(\d+(\.\d+)?)PD`, "${1} PD"),
			Literal{Old: "、", New: "."},
			Literal{Old: "\n", New: " "},
		),
		pad("=", "<", ">", "~", "*"),
	)
}

// ffaNumbers abstracts numeric values. Order matters: fractions and durations
// go before the generic decimal and integer rules.
func ffaNumbers() []Rule {
	return []Rule{
		pattern("fraction", `\d+/\d+`, numToken),
		pattern("decimal seconds", `\d+\.\d+s`, numToken+" seconds"),
		pattern("integer seconds", `\d+s`, numToken+" seconds"),
		pattern("decimal", `\d+\.\d+`, numToken),
		Func{Label: "standalone integer", Fn: standaloneIntegers},
	}
}

func ffaTime() []Rule {
	return []Rule{Func{Label: "clock time", Fn: abstractTimes}}
}

// ffaStructure removes list scaffolding and collapses placeholder runs.
func ffaStructure() []Rule {
	return concat(
		one(Literal{Old: "\n", New: " "}),
		pad("=", "<", ">", "~"),
		collapseRules("_", " ", "."),
		one(Literal{Old: "1. ", New: " "}),
		markers(". %d. ", 2, 10, ". "),
		markers(" %d, ", 1, 10, ". "),
		markers(" %d. ", 1, 10, ". "),
		one(Literal{Old: ".1.", New: ""}),
		markers(".%d.", 2, 10, ". "),
		markers("%d.", 1, 10, ""),
		one(
			pattern("doubled placeholder", `(?i)#num##num#`, numToken),
			pattern("placeholder range", `(?i)#num#-#num#`, numToken),
			Literal{Old: "/", New: " "},
		),
	)
}

func ffaIRPipeline() *Pipeline {
	return &Pipeline{
		Report: concat(ffaFirstPass(), ffaNumbers(), ffaTime(), ffaStructure()),
		Sentence: []Rule{
			DeleteChars{Set: ffaPunct},
		},
		Final: []Rule{
			Literal{Old: ".", New: ""},
			collapse(" "),
			Func{Label: "trim", Fn: strings.TrimSpace},
		},
	}
}

// standaloneIntegers replaces whitespace-delimited words made only of digits.
func standaloneIntegers(s string) string {
	return wordRe.ReplaceAllStringFunc(s, func(w string) string {
		if digitsOnly.MatchString(w) {
			return numToken
		}
		return w
	})
}

// abstractTimes rewrites H:MM and HH:MM words. A word preceded by "ratio"
// within ratioWindow words is a ratio, not a time. Out of range clock values
// pass through. The output is re-joined with single spaces.
func abstractTimes(s string) string {
	words := strings.Fields(s)
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w
		m := clockRe.FindStringSubmatch(w)
		if m == nil {
			continue
		}
		if precededByRatio(words, i) {
			out[i] = numToken
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
			out[i] = timeToken
		}
	}
	return strings.Join(out, " ")
}

func precededByRatio(words []string, i int) bool {
	start := i - ratioWindow
	if start < 0 {
		start = 0
	}
	for _, w := range words[start:i] {
		if w == "ratio" {
			return true
		}
	}
	return false
}
