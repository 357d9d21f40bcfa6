package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/churryboy/sheet-llm-chatbot/record"
	"github.com/churryboy/sheet-llm-chatbot/search"
	"github.com/churryboy/sheet-llm-chatbot/stats"
)

// Options bound the assembled context.
type Options struct {
	// SampleCap is the maximum number of raw records rendered.
	SampleCap int

	// MaxChars is the ceiling on the rendered context length. When
	// exceeded, the sample shrinks; statistics are never trimmed.
	MaxChars int

	// SearchResultCap bounds the web-search section.
	SearchResultCap int
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{SampleCap: 50, MaxChars: 60000, SearchResultCap: 5}
}

// Input is everything the assembler consumes for one question.
type Input struct {
	Question string

	// Dataset is the full fetched dataset. Statistics in Summary must
	// already cover all of it; the assembler only bounds the sample.
	Dataset *record.Dataset

	// Summary is the full-dataset statistical summary.
	Summary *stats.Summary

	// Counting marks the question as a counting question, which
	// injects a pre-computed count block the model is told to use.
	Counting bool

	// SearchResults is the optional web enrichment, already fetched.
	SearchResults []search.Result
}

// Assembler builds the bounded prompt context.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AssemblerOption {
	return func(a *Assembler) { a.logger = l }
}

// NewAssembler creates an Assembler. Zero-valued Options fields fall
// back to defaults.
func NewAssembler(opts Options, aopts ...AssemblerOption) *Assembler {
	def := DefaultOptions()
	if opts.SampleCap <= 0 {
		opts.SampleCap = def.SampleCap
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = def.MaxChars
	}
	if opts.SearchResultCap <= 0 {
		opts.SearchResultCap = def.SearchResultCap
	}
	a := &Assembler{opts: opts, logger: slog.Default()}
	for _, o := range aopts {
		o(a)
	}
	return a
}

// Build assembles the context for one question. The sample section is
// capped at SampleCap records and shrunk further if the rendered
// context would exceed MaxChars; every other section is kept intact.
func (a *Assembler) Build(in Input) *Context {
	ds := in.Dataset
	resolver := record.NewResolver(ds)
	fields := selectFields(ds, resolver, in.Question)

	shown := ds.Len()
	if shown > a.opts.SampleCap {
		shown = a.opts.SampleCap
	}

	ctx := a.build(in, fields, shown)
	for ctx.Len() > a.opts.MaxChars && shown > 1 {
		// Shrink the sample by a quarter per pass until the ceiling
		// holds. Statistics stay complete.
		next := shown * 3 / 4
		if next == shown {
			next = shown - 1
		}
		shown = next
		ctx = a.build(in, fields, shown)
	}

	if ctx.Len() > a.opts.MaxChars {
		a.logger.Warn("prompt context exceeds ceiling even at minimum sample",
			"chars", ctx.Len(), "ceiling", a.opts.MaxChars)
	}
	a.logger.Debug("prompt context assembled",
		"records_total", ds.Len(),
		"records_shown", shown,
		"layout", ctx.Layout,
		"chars", ctx.Len())
	return ctx
}

func (a *Assembler) build(in Input, fields []string, shown int) *Context {
	ds := in.Dataset
	sample := ds.Records
	if len(sample) > shown {
		sample = sample[:shown]
	}
	layout := chooseLayout(sample, fields)

	ctx := &Context{
		Layout:       layout,
		TotalRecords: ds.Len(),
		SampleShown:  len(sample),
		Counting:     in.Counting,
	}

	statsTitle := "전체 응답 통계"
	if in.Summary.Denominator == stats.DenominatorSubset {
		statsTitle = "필터된 응답 통계"
	}
	ctx.Sections = append(ctx.Sections, Section{
		Name:  SectionStatistics,
		Title: statsTitle,
		Body:  renderStatistics(in.Summary),
	})
	ctx.Sections = append(ctx.Sections, Section{
		Name:  SectionColumns,
		Title: "데이터 컬럼",
		Body:  renderColumns(ds),
	})
	ctx.Sections = append(ctx.Sections, Section{
		Name:  SectionSample,
		Title: "응답 데이터",
		Body:  a.renderSample(sample, fields, layout, ds.Len()),
	})
	if in.Counting {
		ctx.Sections = append(ctx.Sections, Section{
			Name:  SectionCounts,
			Title: "수치 요약",
			Body:  renderCounts(ds, in.Summary),
		})
	}
	if len(in.SearchResults) > 0 {
		ctx.Sections = append(ctx.Sections, Section{
			Name:  SectionSearch,
			Title: "웹 검색 결과",
			Body:  renderSearchResults(in.SearchResults, a.opts.SearchResultCap),
		})
	}
	ctx.Sections = append(ctx.Sections, Section{
		Name:  SectionInstructions,
		Title: "답변 지침",
		Body:  renderInstructions(in.Counting, len(in.SearchResults) > 0),
	})
	return ctx
}

// renderStatistics emits the summary's distributions. The opening line
// names the denominator so full-dataset and filtered-subset figures
// cannot be confused. Percentages come pre-rounded from the summary.
func renderStatistics(s *stats.Summary) string {
	var b strings.Builder
	if s.Denominator == stats.DenominatorSubset {
		fmt.Fprintf(&b, "필터 조건에 해당하는 응답 수: %d명 (아래 수치는 필터된 응답만을 기준으로 계산되었습니다)\n", s.TotalRecords)
	} else {
		fmt.Fprintf(&b, "전체 응답 수: %d명\n", s.TotalRecords)
	}
	for _, attr := range stats.TrackedAttributes {
		dist, ok := s.Distributions[attr]
		if !ok || dist.Counted() == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s:\n", stats.AttributeTitle(attr))
		for _, label := range dist.Labels {
			fmt.Fprintf(&b, "- %s: %d명 (%.1f%%)\n", label, dist.Count(label), dist.Percent(label))
		}
	}
	return b.String()
}

// renderColumns lists every header so the model knows what was asked,
// including fields the sample may not surface.
func renderColumns(ds *record.Dataset) string {
	var b strings.Builder
	for _, h := range ds.Headers {
		if h == record.SheetNameField {
			continue
		}
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}

func (a *Assembler) renderSample(sample []record.Record, fields []string, layout Layout, total int) string {
	var b strings.Builder
	if len(sample) < total {
		fmt.Fprintf(&b, "전체 %d개 응답 중 %d개만 표시합니다. 위의 통계는 전체 %d개 응답을 기준으로 계산되었습니다.\n\n",
			total, len(sample), total)
	}
	if layout == LayoutLongForm {
		b.WriteString(renderLongForm(sample, fields))
	} else {
		b.WriteString(renderTable(sample, fields))
	}
	return b.String()
}

// renderCounts emits the pre-computed counting block: the exact total,
// school-level breakdown with percentages, and per-year counts.
func renderCounts(ds *record.Dataset, s *stats.Summary) string {
	var b strings.Builder
	if s.Denominator == stats.DenominatorSubset {
		fmt.Fprintf(&b, "필터 조건에 해당하는 응답자 수: %d명\n", s.TotalRecords)
	} else {
		fmt.Fprintf(&b, "전체 응답자 수: %d명\n", s.TotalRecords)
	}

	if dist, ok := s.Distributions[record.AttrGrade]; ok && dist.Counted() > 0 {
		b.WriteString("\n학교급별 인원:\n")
		for _, label := range dist.Labels {
			fmt.Fprintf(&b, "- %s: %d명 (%.1f%%)\n", label, dist.Count(label), dist.Percent(label))
		}
	}

	yearCounts := stats.GradeYearCounts(ds)
	if len(yearCounts) > 0 {
		b.WriteString("\n학년별 인원:\n")
		for _, year := range orderedGradeYears {
			if n, ok := yearCounts[year]; ok {
				fmt.Fprintf(&b, "- %s: %d명\n", year, n)
			}
		}
	}

	b.WriteString("\n인원 수 질문에는 반드시 위 수치를 그대로 사용하세요. 표시된 응답 행을 직접 세어 답하지 마세요.\n")
	return b.String()
}

// orderedGradeYears fixes the per-year display order.
var orderedGradeYears = []string{
	"초1", "초2", "초3", "초4", "초5", "초6",
	"중1", "중2", "중3",
	"고1", "고2", "고3",
}

// renderSearchResults formats deduplicated hits, capped.
func renderSearchResults(results []search.Result, limit int) string {
	var b strings.Builder
	seen := make(map[string]bool, len(results))
	n := 0
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		n++
		fmt.Fprintf(&b, "[%d] %s\n", n, r.Title)
		if r.DisplaySource != "" {
			fmt.Fprintf(&b, "출처: %s\n", r.DisplaySource)
		}
		if r.Snippet != "" {
			fmt.Fprintf(&b, "요약: %s\n", r.Snippet)
		}
		fmt.Fprintf(&b, "링크: %s\n\n", r.URL)
		if n == limit {
			break
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// renderInstructions emits the footer. Variants depend on whether a
// counting block or web results are present.
func renderInstructions(counting, hasSearch bool) string {
	var b strings.Builder
	b.WriteString("- 위 데이터에 근거하여 한국어로 답변하세요.\n")
	b.WriteString("- 비율이나 분포를 말할 때는 응답 통계 섹션의 수치를 사용하세요.\n")
	if counting {
		b.WriteString("- 인원 수는 '수치 요약' 섹션의 값을 그대로 인용하세요.\n")
	}
	if hasSearch {
		b.WriteString("- 웹 검색 결과를 인용할 때는 [번호]와 출처를 함께 표기하세요.\n")
	}
	b.WriteString("- 데이터에 없는 내용은 추측하지 말고 확인할 수 없다고 답하세요.\n")
	return b.String()
}
