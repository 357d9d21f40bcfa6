package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churryboy/sheet-llm-chatbot/llm"
	"github.com/churryboy/sheet-llm-chatbot/prompt"
	"github.com/churryboy/sheet-llm-chatbot/record"
	"github.com/churryboy/sheet-llm-chatbot/router"
	"github.com/churryboy/sheet-llm-chatbot/search"
	"github.com/churryboy/sheet-llm-chatbot/source"
)

const gradeHeader = "현재 학년이 어떻게 되나요?"

type stubTables struct {
	dataset *record.Dataset
	err     error
}

func (s *stubTables) FetchTable(ctx context.Context, desc source.Descriptor) (*record.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.dataset, nil
}

type stubModel struct {
	answer   string
	err      error
	messages []llm.Message
}

func (s *stubModel) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.messages = req.Messages
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.answer, RequestID: "req-1"}, nil
}

type stubSearcher struct {
	results []search.Result
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	return s.results, s.err
}

func surveyDataset(grades ...string) *record.Dataset {
	ds := &record.Dataset{Headers: []string{gradeHeader, "Submitted At"}}
	for _, g := range grades {
		ds.Records = append(ds.Records, record.Record{
			gradeHeader:           g,
			"Submitted At":        "2025. 1. 15 오전 10:00:00",
			record.SheetNameField: "설문지",
		})
	}
	return ds
}

func testRouter() *router.Router {
	return router.New(router.Defaults{
		Default: source.Descriptor{Kind: source.KindSurvey, GID: "0", DisplayName: "설문지"},
	}, nil, slog.Default())
}

func newTestService(tables source.TableFetcher, model Completer, opts ...ServiceOption) *Service {
	assembler := prompt.NewAssembler(prompt.DefaultOptions())
	return NewService(testRouter(), tables, model, assembler, opts...)
}

func TestAsk_AnswersWithDatedPhrase(t *testing.T) {
	model := &stubModel{answer: "데이터를 분석해보면, 중학생 비율이 높습니다."}
	svc := newTestService(&stubTables{dataset: surveyDataset("중1", "중2", "고1")}, model)

	resp, err := svc.Ask(context.Background(), Request{Question: "학년 분포 알려줘"})
	require.NoError(t, err)

	assert.Equal(t, "2025년 1월 진행된 조사 결과에 따르면, 중학생 비율이 높습니다.", resp.Answer)
	assert.Equal(t, 3, resp.RecordsConsidered)
	assert.Equal(t, []string{"설문지"}, resp.Sources)
	assert.Equal(t, "req-1", resp.RequestID)

	// The user message carries the assembled context plus the question.
	require.NotEmpty(t, model.messages)
	assert.Equal(t, "system", model.messages[0].Role)
	last := model.messages[len(model.messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Contains(t, last.Content, "전체 응답 통계")
	assert.Contains(t, last.Content, "질문: 학년 분포 알려줘")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")}, &stubModel{answer: "x"})

	_, err := svc.Ask(context.Background(), Request{Question: "   "})
	assert.ErrorIs(t, err, ErrNoQuestion)
}

func TestAsk_NoModelConfigured(t *testing.T) {
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")}, nil)

	_, err := svc.Ask(context.Background(), Request{Question: "질문"})
	assert.ErrorIs(t, err, ErrModelUnconfigured)
}

func TestAsk_AllSourcesFailed(t *testing.T) {
	fetchErr := source.NewUnavailable("설문지", source.RemediationSheetSharing, errors.New("status 403"))
	svc := newTestService(&stubTables{err: fetchErr}, &stubModel{answer: "x"})

	_, err := svc.Ask(context.Background(), Request{Question: "질문"})
	require.Error(t, err)
	assert.True(t, IsSourcesError(err))

	// The sharing-settings remediation survives aggregation.
	unavailable, ok := source.AsUnavailable(err)
	require.True(t, ok)
	assert.Equal(t, source.RemediationSheetSharing, unavailable.Remediation)
}

func TestAsk_ModelCallError(t *testing.T) {
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")},
		&stubModel{err: errors.New("boom")})

	_, err := svc.Ask(context.Background(), Request{Question: "질문"})
	require.Error(t, err)
	assert.True(t, IsModelCallError(err))
}

func TestAsk_FilterRestrictsRecords(t *testing.T) {
	model := &stubModel{answer: "답변"}
	svc := newTestService(&stubTables{dataset: surveyDataset("중1", "중3", "고1", "초4")}, model)

	resp, err := svc.Ask(context.Background(), Request{
		Question: "이 학생들은 몇 명이야?",
		Filter:   &Filter{Attribute: record.AttrGrade, Value: "중학생"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.RecordsConsidered)

	// The statistics sent to the model must say the figures cover the
	// filtered subset, not the full dataset.
	require.NotEmpty(t, model.messages)
	promptText := model.messages[len(model.messages)-1].Content
	assert.Contains(t, promptText, "필터 조건에 해당하는 응답 수: 2명")
	assert.NotContains(t, promptText, "전체 응답 수")
}

func TestAsk_SearchFailureIsNonFatal(t *testing.T) {
	model := &stubModel{answer: "답변"}
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")}, model,
		WithSearcher(&stubSearcher{err: errors.New("quota")}))

	resp, err := svc.Ask(context.Background(), Request{Question: "질문", EnableWebSearch: true})
	require.NoError(t, err)
	assert.Empty(t, resp.SearchResults)
}

func TestAsk_SearchResultsIncluded(t *testing.T) {
	model := &stubModel{answer: "답변"}
	results := []search.Result{{Title: "기사", URL: "https://n.example/1", Snippet: "요약"}}
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")}, model,
		WithSearcher(&stubSearcher{results: results}))

	resp, err := svc.Ask(context.Background(), Request{Question: "학원비 평균?", EnableWebSearch: true})
	require.NoError(t, err)
	assert.Equal(t, results, resp.SearchResults)

	last := model.messages[len(model.messages)-1]
	assert.Contains(t, last.Content, "웹 검색 결과")
}

func TestAsk_HistoryThreaded(t *testing.T) {
	model := &stubModel{answer: "답변"}
	svc := newTestService(&stubTables{dataset: surveyDataset("중1")}, model)

	_, err := svc.Ask(context.Background(), Request{
		Question: "그럼 몇 명이야?",
		History: []Turn{
			{Role: "user", Content: "학년 분포 알려줘"},
			{Role: "assistant", Content: "중학생이 많습니다."},
			{Role: "tool", Content: "무시되어야 함"},
		},
	})
	require.NoError(t, err)

	require.Len(t, model.messages, 4) // system + 2 history + user
	assert.Equal(t, "학년 분포 알려줘", model.messages[1].Content)
	assert.Equal(t, "assistant", model.messages[2].Role)
}

func TestInterviewDataset(t *testing.T) {
	transcript := strings.Join([]string{
		"인터뷰어: 자기소개 부탁해요.",
		"지민: 안녕하세요, 중2이고 한별중학교에 다녀요.",
		"인터뷰어: 공부는 어떻게 하고 있어요?",
		"지민: 주로 태블릿으로 해요.",
		"현우: 저는 고1이에요.",
	}, "\n")

	ds := interviewDataset(transcript, source.Descriptor{
		Kind: source.KindInterview, DisplayName: "인터뷰",
	})

	require.Equal(t, 2, ds.Len())
	assert.Equal(t, "지민", ds.Records[0].Get("이름"))
	assert.Equal(t, "중2", ds.Records[0].Get("학년"))
	assert.Equal(t, "현우", ds.Records[1].Get("이름"))
	assert.Equal(t, "인터뷰", ds.Records[0].SheetName())
	assert.Contains(t, ds.Records[0].Get("인터뷰 스크립트"), "태블릿으로 해요")
	assert.Empty(t, ds.Records[1].Get("인터뷰 스크립트"))
}

func TestInterviewDataset_NoParticipants(t *testing.T) {
	ds := interviewDataset("메모만 있는 문서입니다.", source.Descriptor{DisplayName: "인터뷰"})
	require.Equal(t, 1, ds.Len())
	assert.Equal(t, "메모만 있는 문서입니다.", ds.Records[0].Get("인터뷰 스크립트"))
}

func TestApplyFilter_GradeNormalization(t *testing.T) {
	ds := surveyDataset("01. 중1", "중3", "고1")
	filtered := applyFilter(ds, &Filter{Attribute: record.AttrGrade, Value: "중학생"})
	assert.Equal(t, 2, filtered.Len())
}

func TestSheetNames_Distinct(t *testing.T) {
	ds := &record.Dataset{Records: []record.Record{
		{record.SheetNameField: "A"},
		{record.SheetNameField: "B"},
		{record.SheetNameField: "A"},
		{},
	}}
	assert.Equal(t, []string{"A", "B"}, sheetNames(ds))
}

func TestDemographics(t *testing.T) {
	svc := newTestService(&stubTables{dataset: surveyDataset("중1", "중2", "고1")}, &stubModel{answer: "x"})

	summary, err := svc.Demographics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecords)
	assert.Equal(t, 2, summary.Distributions[record.AttrGrade].Count("중학생"))
}

func TestSourcesError_Message(t *testing.T) {
	err := &SourcesError{Failures: []SourceFailure{
		{Name: "설문지", Err: fmt.Errorf("403")},
		{Name: "인터뷰", Err: fmt.Errorf("timeout")},
	}}
	assert.Contains(t, err.Error(), "설문지: 403")
	assert.Contains(t, err.Error(), "인터뷰: timeout")
}
