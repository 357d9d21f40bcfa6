package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churryboy/sheet-llm-chatbot/record"
	"github.com/churryboy/sheet-llm-chatbot/search"
	"github.com/churryboy/sheet-llm-chatbot/stats"
)

const (
	nameHeader   = "이름을 적어주세요"
	gradeHeader  = "현재 학년이 어떻게 되나요?"
	answerHeader = "학습에서 가장 어려운 점은 무엇인가요?"
)

func testDataset(n int, answer string) *record.Dataset {
	ds := &record.Dataset{Headers: []string{answerHeader, nameHeader, gradeHeader}}
	for i := 0; i < n; i++ {
		ds.Records = append(ds.Records, record.Record{
			nameHeader:            fmt.Sprintf("학생%d", i+1),
			gradeHeader:           "중2",
			answerHeader:          answer,
			record.SheetNameField: "설문지",
		})
	}
	return ds
}

func buildContext(t *testing.T, ds *record.Dataset, in Input) *Context {
	t.Helper()
	in.Dataset = ds
	if in.Summary == nil {
		in.Summary = stats.Summarize(ds)
	}
	return NewAssembler(Options{}).Build(in)
}

func TestBuild_TabularLayoutForShortValues(t *testing.T) {
	ds := testDataset(10, strings.Repeat("가", 150))
	ctx := buildContext(t, ds, Input{Question: "어려운 점이 뭐야?"})

	assert.Equal(t, LayoutTable, ctx.Layout)
	sample := ctx.Section(SectionSample)
	require.NotNil(t, sample)
	assert.Contains(t, sample.Body, " | ")
}

func TestBuild_LongFormWhenValueExceedsTrigger(t *testing.T) {
	ds := testDataset(10, strings.Repeat("가", 300))
	ctx := buildContext(t, ds, Input{Question: "어려운 점이 뭐야?"})

	assert.Equal(t, LayoutLongForm, ctx.Layout)
	sample := ctx.Section(SectionSample)
	require.NotNil(t, sample)
	assert.Contains(t, sample.Body, "--- 응답 #1 (설문지) ---")
}

func TestBuild_LongFormForInterviewFieldNames(t *testing.T) {
	ds := &record.Dataset{
		Headers: []string{nameHeader, "인터뷰 스크립트"},
		Records: []record.Record{
			{nameHeader: "학생1", "인터뷰 스크립트": "짧은 답"},
		},
	}
	ctx := buildContext(t, ds, Input{Question: "인터뷰 내용 요약해줘"})

	assert.Equal(t, LayoutLongForm, ctx.Layout)
}

func TestBuild_SampleCapWithProvenanceNote(t *testing.T) {
	ds := testDataset(120, "짧은 답변")
	ctx := buildContext(t, ds, Input{Question: "뭐가 어려워?"})

	assert.Equal(t, 120, ctx.TotalRecords)
	assert.Equal(t, 50, ctx.SampleShown)

	sample := ctx.Section(SectionSample)
	require.NotNil(t, sample)
	assert.Contains(t, sample.Body, "전체 120개 응답 중 50개만 표시합니다")
	assert.Contains(t, sample.Body, "전체 120개 응답을 기준으로")

	// The statistics section still reflects the full dataset.
	statsSection := ctx.Section(SectionStatistics)
	require.NotNil(t, statsSection)
	assert.Contains(t, statsSection.Body, "전체 응답 수: 120명")
}

func TestBuild_NoNoteWhenEverythingShown(t *testing.T) {
	ds := testDataset(5, "짧은 답변")
	ctx := buildContext(t, ds, Input{Question: "뭐가 어려워?"})

	assert.Equal(t, 5, ctx.SampleShown)
	assert.NotContains(t, ctx.Section(SectionSample).Body, "만 표시합니다")
}

func TestBuild_CeilingShrinksSampleNotStats(t *testing.T) {
	ds := testDataset(50, strings.Repeat("가", 150))
	summary := stats.Summarize(ds)

	a := NewAssembler(Options{SampleCap: 50, MaxChars: 4000})
	ctx := a.Build(Input{Question: "뭐가 어려워?", Dataset: ds, Summary: summary})

	assert.LessOrEqual(t, ctx.Len(), 4000)
	assert.Less(t, ctx.SampleShown, 50)
	assert.Contains(t, ctx.Section(SectionStatistics).Body, "전체 응답 수: 50명")
}

func TestBuild_SubsetStatisticsNameTheirDenominator(t *testing.T) {
	ds := testDataset(5, "짧은 답변")
	subset := stats.SummarizeSubset(ds.Records[:3], record.NewResolver(ds))

	ctx := buildContext(t, ds, Input{Question: "중학생은 어때?", Summary: subset})

	statsSection := ctx.Section(SectionStatistics)
	require.NotNil(t, statsSection)
	assert.Equal(t, "필터된 응답 통계", statsSection.Title)
	assert.Contains(t, statsSection.Body, "필터 조건에 해당하는 응답 수: 3명")
	assert.Contains(t, statsSection.Body, "필터된 응답만을 기준으로")
	assert.NotContains(t, statsSection.Body, "전체 응답 수")
}

func TestBuild_CountingSection(t *testing.T) {
	ds := testDataset(7, "답변")
	ctx := buildContext(t, ds, Input{Question: "중학생 몇 명이야?", Counting: true})

	counts := ctx.Section(SectionCounts)
	require.NotNil(t, counts)
	assert.Contains(t, counts.Body, "전체 응답자 수: 7명")
	assert.Contains(t, counts.Body, "중학생: 7명 (100.0%)")
	assert.Contains(t, counts.Body, "중2: 7명")
	assert.Contains(t, counts.Body, "직접 세어 답하지 마세요")

	instructions := ctx.Section(SectionInstructions)
	require.NotNil(t, instructions)
	assert.Contains(t, instructions.Body, "수치 요약")
}

func TestBuild_NoCountingSectionByDefault(t *testing.T) {
	ds := testDataset(3, "답변")
	ctx := buildContext(t, ds, Input{Question: "어려운 점 알려줘"})

	assert.Nil(t, ctx.Section(SectionCounts))
}

func TestBuild_SearchSection(t *testing.T) {
	ds := testDataset(3, "답변")
	results := []search.Result{
		{Title: "기사 A", URL: "https://news.example/a", Snippet: "요약 A", DisplaySource: "news.example"},
		{Title: "기사 A 중복", URL: "https://news.example/a", Snippet: "중복"},
		{Title: "기사 B", URL: "https://news.example/b", Snippet: "요약 B", DisplaySource: "news.example"},
	}
	ctx := buildContext(t, ds, Input{Question: "학원비 평균이 얼마야?", SearchResults: results})

	section := ctx.Section(SectionSearch)
	require.NotNil(t, section)
	assert.Contains(t, section.Body, "[1] 기사 A")
	assert.Contains(t, section.Body, "[2] 기사 B")
	assert.NotContains(t, section.Body, "중복")
	assert.Contains(t, section.Body, "출처: news.example")
	assert.Contains(t, section.Body, "링크: https://news.example/a")

	assert.Contains(t, ctx.Section(SectionInstructions).Body, "웹 검색 결과를 인용할 때")
}

func TestBuild_FieldOrderPutsIdentityFirst(t *testing.T) {
	ds := testDataset(2, "답변")
	resolver := record.NewResolver(ds)
	fields := selectFields(ds, resolver, "학년별로 알려줘")

	require.NotEmpty(t, fields)
	assert.Equal(t, nameHeader, fields[0])
	assert.Equal(t, gradeHeader, fields[1])
	assert.NotContains(t, fields, record.SheetNameField)
}

func TestSelectFields_CueOrderIsStable(t *testing.T) {
	toolHeader := "사용 도구"
	ds := &record.Dataset{Headers: []string{answerHeader, toolHeader, nameHeader, gradeHeader}}
	ds.Records = append(ds.Records, record.Record{
		nameHeader:  "학생1",
		gradeHeader: "중2",
		toolHeader:  "태블릿",
	})
	resolver := record.NewResolver(ds)

	// A question hitting several cues must yield the same field order
	// on every call: identity fields, then cue fields, then the rest.
	want := selectFields(ds, resolver, "성별별 도구별 차이가 있어?")
	assert.Equal(t, []string{nameHeader, gradeHeader, toolHeader, answerHeader}, want)
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, selectFields(ds, resolver, "성별별 도구별 차이가 있어?"))
	}
}

func TestTruncateRunes(t *testing.T) {
	long := strings.Repeat("나", 600)
	out := truncateRunes(long, 500)
	assert.Contains(t, out, "이하 생략, 총 600자")
	assert.True(t, strings.HasPrefix(out, strings.Repeat("나", 500)))

	short := "그대로"
	assert.Equal(t, short, truncateRunes(short, 500))
}

func TestRenderTable_CellSanitization(t *testing.T) {
	sample := []record.Record{
		{nameHeader: "학생1", answerHeader: "줄바꿈\n있음 | 구분자"},
	}
	out := renderTable(sample, []string{nameHeader, answerHeader})
	assert.Contains(t, out, "줄바꿈 있음 / 구분자")
}

func TestContext_Render(t *testing.T) {
	ctx := &Context{Sections: []Section{
		{Name: "a", Title: "첫 섹션", Body: "본문"},
		{Name: "b", Body: "제목 없는 본문"},
	}}
	out := ctx.Render()
	assert.Contains(t, out, "=== 첫 섹션 ===\n본문\n")
	assert.Contains(t, out, "제목 없는 본문\n")
	assert.NotContains(t, out, "===  ===")
}
