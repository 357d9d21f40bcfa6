package prompt

import (
	"fmt"
	"strings"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

const (
	// longFormTrigger switches the sample to long-form rendering when
	// any sampled value exceeds this many characters.
	longFormTrigger = 200

	// tableCellLimit truncates cells in tabular rendering.
	tableCellLimit = 100

	// longFormValueLimit truncates values in long-form rendering.
	longFormValueLimit = 500
)

// interviewMarkers flag fields whose names indicate interview-style
// free text, which forces long-form rendering regardless of length.
var interviewMarkers = []string{"인터뷰", "스크립트", "interview", "script"}

// crossTabCue pairs a question phrasing like "학년별로" with the
// attribute whose field should be surfaced early in the sample. The
// slice is ordered so multi-cue questions pick fields deterministically.
type crossTabCue struct {
	cue  string
	attr record.Attribute
}

var crossTabCues = []crossTabCue{
	{"학년별", record.AttrGrade},
	{"성별별", record.AttrGender},
	{"성별로", record.AttrGender},
	{"지역별", record.AttrRegion},
	{"도구별", record.AttrToolUsage},
}

// essentialAttrs are always surfaced first so the model can identify
// and segment respondents.
var essentialAttrs = []record.Attribute{
	record.AttrName,
	record.AttrGender,
	record.AttrGrade,
	record.AttrRegion,
}

// selectFields orders the dataset's headers for rendering: resolved
// identity fields first, then any field a cross-tab cue in the
// question names, then the remaining headers in sheet order. The
// provenance field is excluded from tabular columns; long-form
// rendering shows it in the record heading instead.
func selectFields(ds *record.Dataset, resolver *record.Resolver, question string) []string {
	picked := make([]string, 0, len(ds.Headers))
	seen := make(map[string]bool)
	add := func(field string) {
		if field == "" || field == record.SheetNameField || seen[field] {
			return
		}
		seen[field] = true
		picked = append(picked, field)
	}

	for _, attr := range essentialAttrs {
		add(resolver.Field(attr))
	}
	for _, c := range crossTabCues {
		if strings.Contains(question, c.cue) {
			add(resolver.Field(c.attr))
		}
	}
	for _, h := range ds.Headers {
		add(h)
	}
	return picked
}

// chooseLayout inspects the sampled records and selected fields.
// Interview-style field names or any value longer than the trigger
// force long-form rendering.
func chooseLayout(sample []record.Record, fields []string) Layout {
	for _, f := range fields {
		lower := strings.ToLower(f)
		for _, marker := range interviewMarkers {
			if strings.Contains(lower, marker) {
				return LayoutLongForm
			}
		}
	}
	for _, r := range sample {
		for _, f := range fields {
			if len([]rune(r.Get(f))) > longFormTrigger {
				return LayoutLongForm
			}
		}
	}
	return LayoutTable
}

// truncateRunes cuts s to at most limit runes, appending a marker with
// the original length when truncation happened.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return fmt.Sprintf("%s... (이하 생략, 총 %d자)", string(runes[:limit]), len(runes))
}

// flattenCell prepares a value for a pipe-delimited row.
func flattenCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "/")
	return truncateRunes(strings.TrimSpace(s), tableCellLimit)
}

// renderTable renders the sample as a pipe-delimited table.
func renderTable(sample []record.Record, fields []string) string {
	var b strings.Builder
	b.WriteString(strings.Join(fields, " | "))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", 50))
	b.WriteString("\n")
	for _, r := range sample {
		cells := make([]string, len(fields))
		for i, f := range fields {
			cells[i] = flattenCell(r.Get(f))
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

// renderLongForm renders one record per block with each field on its
// own line. Long values keep their line breaks and are truncated at
// the long-form limit.
func renderLongForm(sample []record.Record, fields []string) string {
	var b strings.Builder
	for i, r := range sample {
		fmt.Fprintf(&b, "--- 응답 #%d", i+1)
		if sheet := r.SheetName(); sheet != "" {
			fmt.Fprintf(&b, " (%s)", sheet)
		}
		b.WriteString(" ---\n")
		for _, f := range fields {
			v := strings.TrimSpace(r.Get(f))
			if v == "" {
				continue
			}
			if len([]rune(v)) > longFormTrigger {
				fmt.Fprintf(&b, "[%s]\n%s\n", f, truncateRunes(v, longFormValueLimit))
			} else {
				fmt.Fprintf(&b, "%s: %s\n", f, v)
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
