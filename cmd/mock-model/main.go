// Package main implements a mock completion server for offline
// development. It serves OpenAI-compatible /v1/chat/completions
// responses from JSON fixture files keyed by model name, so the
// chatbot can be exercised without credentials or network access.
//
// Usage:
//
//	mock-model -fixtures ./fixtures -port 11434
//
// A request for model "survey-analyst" returns the content of
// "survey-analyst.json" as the assistant message. Missing fixtures get
// a canned Korean survey answer so the pipeline still completes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const fallbackAnswer = "최근 진행된 조사 결과에 따르면, 목업 응답입니다. 픽스처 파일을 추가해 실제 답변을 구성하세요."

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type server struct {
	fixtureDir string
}

// answerFor resolves the assistant message for a model: the fixture
// file if one exists, the fallback otherwise.
func (s *server) answerFor(model string) string {
	if s.fixtureDir == "" || model == "" {
		return fallbackAnswer
	}
	// Model names can contain path-hostile characters; keep lookups
	// inside the fixture directory.
	name := strings.ReplaceAll(model, string(os.PathSeparator), "_")
	data, err := os.ReadFile(filepath.Join(s.fixtureDir, name+".json"))
	if err != nil {
		return fallbackAnswer
	}
	var fixture struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &fixture); err == nil && fixture.Content != "" {
		return fixture.Content
	}
	return strings.TrimSpace(string(data))
}

func (s *server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	answer := s.answerFor(req.Model)
	log.Printf("completion model=%s messages=%d answer_chars=%d", req.Model, len(req.Messages), len(answer))

	var resp chatResponse
	resp.ID = fmt.Sprintf("mock-%d", time.Now().UnixNano())
	resp.Object = "chat.completion"
	resp.Created = time.Now().Unix()
	resp.Model = req.Model
	resp.Choices = make([]struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}, 1)
	resp.Choices[0].Message.Role = "assistant"
	resp.Choices[0].Message.Content = answer
	resp.Choices[0].FinishReason = "stop"
	resp.Usage.CompletionTokens = len(answer) / 4
	resp.Usage.TotalTokens = resp.Usage.CompletionTokens

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func main() {
	fixtures := flag.String("fixtures", "", "Directory of JSON answer fixtures keyed by model name")
	port := flag.Int("port", 11434, "Listen port")
	flag.Parse()

	s := &server{fixtureDir: *fixtures}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleCompletions)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock completion server listening on %s (fixtures: %s)", addr, *fixtures)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
