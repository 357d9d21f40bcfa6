package router

import "strings"

// Rule associates a keyword set with an outcome. Rules are evaluated in
// declaration order and the first match wins; overlaps always resolve
// to the earlier rule, which keeps priority auditable.
type Rule struct {
	// Name identifies the rule for logging and tests.
	Name string

	// Keywords are matched by substring containment. Latin keywords
	// match case-insensitively; Korean keywords match exactly.
	Keywords []string
}

// Matches reports whether the text contains any of the rule's keywords.
func (r Rule) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range r.Keywords {
		if isLatin(kw) {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return true
			}
		} else if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Match evaluates an ordered rule table against text and returns the
// name of the first matching rule, or "" when nothing matches.
func Match(rules []Rule, text string) string {
	for _, r := range rules {
		if r.Matches(text) {
			return r.Name
		}
	}
	return ""
}

// isLatin reports whether a keyword is plain ASCII, in which case it is
// matched case-insensitively.
func isLatin(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

// Topic names produced by the sheet routing table.
const (
	TopicParent    = "parent"
	TopicDevice    = "device"
	TopicInterview = "interview"
	TopicDefault   = "default"
)

// sheetRules is the routing table for question text. Parent terms are
// declared before device terms: a question mentioning both routes to
// the parent sheet.
var sheetRules = []Rule{
	{
		Name:     TopicParent,
		Keywords: []string{"학부모", "부모님", "보호자", "parent"},
	},
	{
		Name:     TopicDevice,
		Keywords: []string{"아이패드", "태블릿", "패드", "ipad", "tablet"},
	},
	{
		Name:     TopicInterview,
		Keywords: []string{"인터뷰", "면담", "interview"},
	},
}

// countingRules detects questions that ask for counts or totals.
var countingRules = []Rule{
	{
		Name: "counting",
		Keywords: []string{
			"몇 명", "몇명", "몇 개", "몇개", "총", "인원",
			"명인가", "명이야", "수는",
			"how many", "count", "total",
		},
	},
}

// IsCountingQuestion reports whether the question asks for counts, in
// which case the assembler injects an authoritative count summary.
func IsCountingQuestion(question string) bool {
	return Match(countingRules, question) != ""
}
