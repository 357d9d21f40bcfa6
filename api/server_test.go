package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churryboy/sheet-llm-chatbot/chat"
	"github.com/churryboy/sheet-llm-chatbot/record"
	"github.com/churryboy/sheet-llm-chatbot/registry"
	"github.com/churryboy/sheet-llm-chatbot/source"
	"github.com/churryboy/sheet-llm-chatbot/stats"
)

type stubService struct {
	askResp  *chat.Response
	askErr   error
	sources  []source.Descriptor
	summary  *stats.Summary
	demosErr error
	lastReq  chat.Request
}

func (s *stubService) Ask(_ context.Context, req chat.Request) (*chat.Response, error) {
	s.lastReq = req
	return s.askResp, s.askErr
}

func (s *stubService) Sources(context.Context) ([]source.Descriptor, error) {
	return s.sources, nil
}

func (s *stubService) Demographics(context.Context) (*stats.Summary, error) {
	return s.summary, s.demosErr
}

func newTestRepo(t *testing.T) registry.Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := registry.NewFileRepository(
		filepath.Join(dir, "sources.json"),
		filepath.Join(dir, "titles.json"),
		nil,
	)
	require.NoError(t, err)
	return repo
}

func doRequest(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	svc := &stubService{askResp: &chat.Response{
		Answer:            "최근 진행된 조사 결과에 따르면, 중학생이 많습니다.",
		RecordsConsidered: 42,
		Sources:           []string{"설문지"},
	}}
	handler := NewServer(svc).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/chat", map[string]any{
		"question":          "학년 분포 알려줘",
		"enable_web_search": true,
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "학년 분포 알려줘", svc.lastReq.Question)
	assert.True(t, svc.lastReq.EnableWebSearch)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.RecordsConsidered)
}

func TestHandleChat_ErrorMapping(t *testing.T) {
	fetchErr := source.NewUnavailable("설문지", source.RemediationSheetSharing, errors.New("403"))

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"no question", chat.ErrNoQuestion, http.StatusBadRequest},
		{"model unconfigured", chat.ErrModelUnconfigured, http.StatusServiceUnavailable},
		{"sources failed", &chat.SourcesError{Failures: []chat.SourceFailure{{Name: "설문지", Err: fetchErr}}}, http.StatusBadGateway},
		{"model call failed", &chat.ModelCallError{}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewServer(&stubService{askErr: tt.err}).Handler()
			rec := doRequest(t, handler, http.MethodPost, "/api/chat", map[string]string{"question": "q"})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestHandleChat_RemediationSurfaced(t *testing.T) {
	fetchErr := source.NewUnavailable("설문지", source.RemediationSheetSharing, errors.New("403"))
	svc := &stubService{askErr: &chat.SourcesError{
		Failures: []chat.SourceFailure{{Name: "설문지", Err: fetchErr}},
	}}
	handler := NewServer(svc).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/chat", map[string]string{"question": "q"})
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error       string `json:"error"`
		Remediation string `json:"remediation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, source.RemediationSheetSharing, body.Remediation)
}

func TestHandleHealth(t *testing.T) {
	handler := NewServer(&stubService{}).Handler()
	rec := doRequest(t, handler, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleListSources(t *testing.T) {
	svc := &stubService{sources: []source.Descriptor{
		{Kind: source.KindSurvey, GID: "0", DisplayName: "설문지", IsDefault: true},
	}}
	handler := NewServer(svc).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/data-sources", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Sources []source.Descriptor `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "설문지", body.Sources[0].DisplayName)
}

func TestHandleAddSource(t *testing.T) {
	repo := newTestRepo(t)
	handler := NewServer(&stubService{}, WithRepository(repo)).Handler()

	rec := doRequest(t, handler, http.MethodPost, "/api/data-sources", map[string]string{
		"gid":          "555",
		"display_name": "신규 설문",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	sources, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, source.KindSurvey, sources[0].Kind, "kind defaults to survey")

	// Duplicate registration conflicts.
	rec = doRequest(t, handler, http.MethodPost, "/api/data-sources", map[string]string{
		"gid":          "555",
		"display_name": "중복",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleAddSource_NoRepo(t *testing.T) {
	handler := NewServer(&stubService{}).Handler()
	rec := doRequest(t, handler, http.MethodPost, "/api/data-sources", map[string]string{
		"gid": "1", "display_name": "x",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleRenameSource_Custom(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.Add(context.Background(), source.Descriptor{GID: "555", DisplayName: "old"}))
	handler := NewServer(&stubService{}, WithRepository(repo)).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/api/data-sources/555", map[string]string{
		"display_name": "새 이름",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sources, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "새 이름", sources[0].DisplayName)
}

func TestHandleRenameSource_DefaultGetsTitleOverride(t *testing.T) {
	repo := newTestRepo(t)
	svc := &stubService{sources: []source.Descriptor{
		{Kind: source.KindSurvey, GID: "0", DisplayName: "설문지", IsDefault: true},
	}}
	handler := NewServer(svc, WithRepository(repo)).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/api/data-sources/0", map[string]string{
		"display_name": "개명된 설문지",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	titles, err := repo.Titles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "개명된 설문지", titles["0"])
}

func TestHandleRenameSource_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	handler := NewServer(&stubService{}, WithRepository(repo)).Handler()

	rec := doRequest(t, handler, http.MethodPatch, "/api/data-sources/999", map[string]string{
		"display_name": "x",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func demoDataset() *record.Dataset {
	header := "현재 학년이 어떻게 되나요?"
	ds := &record.Dataset{Headers: []string{header}}
	for _, g := range []string{"중1", "중2", "중3", "고1"} {
		ds.Records = append(ds.Records, record.Record{header: g})
	}
	return ds
}

func TestHandleDemographics(t *testing.T) {
	summary := stats.Summarize(demoDataset())
	handler := NewServer(&stubService{summary: summary}).Handler()

	rec := doRequest(t, handler, http.MethodGet, "/api/demographics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TotalRecords  int `json:"total_records"`
		Distributions map[string][]struct {
			Label   string  `json:"label"`
			Count   int     `json:"count"`
			Percent float64 `json:"percent"`
		} `json:"distributions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 4, body.TotalRecords)

	grades := body.Distributions["grade"]
	require.NotEmpty(t, grades)
	assert.Equal(t, "중학생", grades[0].Label)
	assert.Equal(t, 3, grades[0].Count)
	assert.Equal(t, 75.0, grades[0].Percent)
}

func TestCORSPreflight(t *testing.T) {
	handler := NewServer(&stubService{}, WithAllowedOrigins([]string{"https://app.example"})).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
