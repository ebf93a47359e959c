package normalize

import "strings"

// chestPunct is the per-sentence deletion class shared by the chest X-ray
// profiles. ":-\[" is a character range and also covers "<=>?@" and A-Z.
const chestPunct = `[.,?;*!%^&_+():-\[\]{}]`

func chestListMarkers() []Rule {
	return concat(
		collapseRules("."),
		one(Literal{Old: "1. ", New: ""}),
		markers(". %d. ", 2, 5, ". "),
		markers(" %d. ", 2, 5, ". "),
	)
}

func chestSentenceRules() []Rule {
	return []Rule{
		Literal{Old: `"`, New: ""},
		Literal{Old: "/", New: ""},
		Literal{Old: `\`, New: ""},
		Literal{Old: "'", New: ""},
		Func{Label: "trim and lowercase", Fn: func(s string) string {
			return strings.ToLower(strings.TrimSpace(s))
		}},
		pattern("delete chest punctuation", chestPunct, ""),
	}
}

func iuXrayPipeline() *Pipeline {
	return &Pipeline{
		Report:   chestListMarkers(),
		Sentence: chestSentenceRules(),
	}
}

func mimicCXRPipeline() *Pipeline {
	report := concat(
		one(
			Literal{Old: "\n", New: " "},
			collapse("_"),
			collapse(" "),
		),
		chestListMarkers(),
	)
	return &Pipeline{
		Report:   report,
		Sentence: chestSentenceRules(),
	}
}

func collapseRules(chars ...string) []Rule {
	rules := make([]Rule, 0, len(chars))
	for _, c := range chars {
		rules = append(rules, collapse(c))
	}
	return rules
}
