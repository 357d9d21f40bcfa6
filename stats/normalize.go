package stats

import (
	"regexp"
	"strings"
)

// numberedPrefix matches the "NN. label" answer format some forms
// export (e.g. "01. 중2").
var numberedPrefix = regexp.MustCompile(`^\d+\.\s*`)

// gradeCategories collapses per-year grades into school levels.
var gradeCategories = map[string]string{
	"초1": "초등학생", "초2": "초등학생", "초3": "초등학생",
	"초4": "초등학생", "초5": "초등학생", "초6": "초등학생",
	"중1": "중학생", "중2": "중학생", "중3": "중학생",
	"고1": "고등학생", "고2": "고등학생", "고3": "고등학생",
}

// StripAnswerPrefix removes a leading "NN. " marker from a form answer.
func StripAnswerPrefix(value string) string {
	return strings.TrimSpace(numberedPrefix.ReplaceAllString(strings.TrimSpace(value), ""))
}

// NormalizeGrade maps a raw grade answer to its school-level category:
// 초1..초6 to 초등학생, 중1..중3 to 중학생, 고1..고3 to 고등학생.
// Unrecognized values (대1, N수생, ...) pass through verbatim so they
// still form their own category.
func NormalizeGrade(raw string) string {
	v := StripAnswerPrefix(raw)
	if v == "" {
		return ""
	}
	if category, ok := gradeCategories[v]; ok {
		return category
	}
	return v
}
