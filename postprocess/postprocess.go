// Package postprocess normalizes model answers before they reach the
// user. Every answer must open with a survey-provenance phrase, date
// qualified when the submission month of the underlying sheet is known.
package postprocess

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

// CanonicalPhrase opens answers when no survey month is known.
const CanonicalPhrase = "최근 진행된 조사 결과에 따르면"

// datedPhrasePattern matches an already date-qualified opening.
var datedPhrasePattern = regexp.MustCompile(`^\d{4}년 \d{1,2}월 진행된 조사 결과에 따르면`)

// partialPhrases are model openings that signal survey provenance but
// drop the date. They get replaced with the qualified phrase. Order
// matters: longer phrases first so a shorter one never shadows them.
var partialPhrases = []string{
	"데이터를 분석해보면",
	"조사 결과에 따르면",
	"설문 결과에 따르면",
	"데이터를 보면",
}

// submissionHeaders are the headers the submission timestamp may
// appear under.
var submissionHeaders = []string{"Submitted At", "타임스탬프", "Timestamp"}

// koreanDatePattern matches Google Forms timestamps like
// "2025. 1. 15 오전 10:02:33".
var koreanDatePattern = regexp.MustCompile(`^(\d{4})\.\s*(\d{1,2})\.\s*(\d{1,2})`)

// isoDatePattern matches ISO-style timestamps.
var isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)

// ParseSubmissionMonth extracts "YYYY년 M월" from a raw submission
// timestamp. The second return is false when no date is recognized.
func ParseSubmissionMonth(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	// Korean forms put the 오전/오후 marker after the date part.
	if i := strings.Index(raw, " 오"); i > 0 {
		raw = strings.TrimSpace(raw[:i])
	}

	for _, pattern := range []*regexp.Regexp{koreanDatePattern, isoDatePattern} {
		if m := pattern.FindStringSubmatch(raw); m != nil {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if month < 1 || month > 12 {
				return "", false
			}
			return fmt.Sprintf("%d년 %d월", year, month), true
		}
	}
	return "", false
}

// SurveyMonth scans a dataset's submission timestamps and returns the
// most recent recognizable "YYYY년 M월", or "" when none parse.
func SurveyMonth(ds *record.Dataset) string {
	best := ""
	bestKey := 0
	for _, r := range ds.Records {
		for _, h := range submissionHeaders {
			raw := r.Get(h)
			if raw == "" {
				continue
			}
			month, ok := ParseSubmissionMonth(raw)
			if !ok {
				continue
			}
			var y, m int
			fmt.Sscanf(month, "%d년 %d월", &y, &m)
			if key := y*100 + m; key > bestKey {
				bestKey = key
				best = month
			}
		}
	}
	return best
}

// DatedPhrase builds the date-qualified opening for a survey month.
func DatedPhrase(month string) string {
	if month == "" {
		return CanonicalPhrase
	}
	return month + " 진행된 조사 결과에 따르면"
}

// EnforceLeadingPhrase rewrites an answer so it opens with the survey
// provenance phrase. Answers that already carry the canonical or a
// date-qualified opening pass through unchanged; recognized dateless
// openings are upgraded in place; everything else gets the phrase
// prepended.
func EnforceLeadingPhrase(answer, month string) string {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		return answer
	}

	if strings.HasPrefix(trimmed, CanonicalPhrase) || datedPhrasePattern.MatchString(trimmed) {
		return trimmed
	}

	desired := DatedPhrase(month)
	for _, partial := range partialPhrases {
		if strings.HasPrefix(trimmed, partial) {
			return desired + trimmed[len(partial):]
		}
	}

	return desired + ", " + trimmed
}
