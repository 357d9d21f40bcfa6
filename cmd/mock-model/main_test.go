package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postCompletion(t *testing.T, s *server, model string) *chatResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": "질문"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleCompletions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestHandleCompletions_Fixture(t *testing.T) {
	dir := t.TempDir()
	fixture := `{"content": "2025년 1월 진행된 조사 결과에 따르면, 중학생이 많습니다."}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "survey-analyst.json"), []byte(fixture), 0644))

	s := &server{fixtureDir: dir}
	resp := postCompletion(t, s, "survey-analyst")

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "2025년 1월 진행된 조사 결과에 따르면, 중학생이 많습니다.", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, "survey-analyst", resp.Model)
}

func TestHandleCompletions_RawFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw.json"), []byte("그냥 텍스트 답변"), 0644))

	s := &server{fixtureDir: dir}
	resp := postCompletion(t, s, "raw")
	assert.Equal(t, "그냥 텍스트 답변", resp.Choices[0].Message.Content)
}

func TestHandleCompletions_FallbackWhenMissing(t *testing.T) {
	s := &server{fixtureDir: t.TempDir()}
	resp := postCompletion(t, s, "unknown-model")
	assert.Equal(t, fallbackAnswer, resp.Choices[0].Message.Content)
}

func TestHandleCompletions_RejectsGet(t *testing.T) {
	s := &server{}
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	s.handleCompletions(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleCompletions_BadBody(t *testing.T) {
	s := &server{}
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	s.handleCompletions(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
