// Package chat orchestrates one question through the full pipeline:
// route to sources, fetch them concurrently, summarize the complete
// dataset, assemble the bounded context, call the completion service,
// and post-process the answer.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/churryboy/sheet-llm-chatbot/llm"
	"github.com/churryboy/sheet-llm-chatbot/metrics"
	"github.com/churryboy/sheet-llm-chatbot/postprocess"
	"github.com/churryboy/sheet-llm-chatbot/prompt"
	"github.com/churryboy/sheet-llm-chatbot/record"
	"github.com/churryboy/sheet-llm-chatbot/router"
	"github.com/churryboy/sheet-llm-chatbot/search"
	"github.com/churryboy/sheet-llm-chatbot/source"
	"github.com/churryboy/sheet-llm-chatbot/stats"
)

// systemPrompt frames the model as a survey analyst answering in Korean.
const systemPrompt = "당신은 설문조사와 인터뷰 데이터를 분석하는 한국어 데이터 분석 어시스턴트입니다. " +
	"제공된 데이터와 통계에 근거해서만 답변하고, 근거가 없는 내용은 추측하지 마세요."

// interviewScriptField carries the raw transcript in interview datasets.
const interviewScriptField = "인터뷰 스크립트"

// Turn is one prior exchange in the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Filter restricts the dataset to records whose attribute matches a
// value. Follow-up questions like "그 중에 중학생만" carry the filter
// as explicit state instead of re-parsing earlier answers.
type Filter struct {
	// Attribute is the logical attribute to filter on.
	Attribute record.Attribute `json:"attribute"`

	// Value is the wanted value. Grade values are compared after
	// school-level normalization, so "중학생" matches 중1 through 중3.
	Value string `json:"value"`
}

// Request is one chat question.
type Request struct {
	// Question is the user's question.
	Question string `json:"question"`

	// SheetGID explicitly selects a source, bypassing topic routing.
	SheetGID string `json:"sheet_gid,omitempty"`

	// History is the prior conversation, oldest first.
	History []Turn `json:"history,omitempty"`

	// EnableWebSearch turns on the web enrichment for this question.
	EnableWebSearch bool `json:"enable_web_search,omitempty"`

	// Filter optionally restricts the dataset.
	Filter *Filter `json:"filter,omitempty"`
}

// Response is the answered question.
type Response struct {
	// Answer is the post-processed model answer.
	Answer string `json:"answer"`

	// RecordsConsidered is the full dataset size the statistics cover.
	RecordsConsidered int `json:"records_considered"`

	// Sources names the sheets that contributed data.
	Sources []string `json:"sources"`

	// SearchResults are the web hits included in the context, if any.
	SearchResults []search.Result `json:"search_results,omitempty"`

	// RequestID correlates the completion call in logs.
	RequestID string `json:"request_id,omitempty"`
}

// Completer sends a completion request. Satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Service orchestrates the pipeline.
type Service struct {
	router    *router.Router
	tables    source.TableFetcher
	docs      source.DocumentFetcher
	searcher  search.Searcher
	model     Completer
	assembler *prompt.Assembler

	temperature float64
	maxTokens   int

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDocumentFetcher wires the interview transcript source.
func WithDocumentFetcher(d source.DocumentFetcher) ServiceOption {
	return func(s *Service) { s.docs = d }
}

// WithSearcher wires the optional web search collaborator.
func WithSearcher(sr search.Searcher) ServiceOption {
	return func(s *Service) { s.searcher = sr }
}

// WithMetrics wires Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithSampling sets completion temperature and token limit.
func WithSampling(temperature float64, maxTokens int) ServiceOption {
	return func(s *Service) {
		s.temperature = temperature
		s.maxTokens = maxTokens
	}
}

// NewService creates the orchestrator. model may be nil, in which case
// every Ask fails with ErrModelUnconfigured.
func NewService(rt *router.Router, tables source.TableFetcher, model Completer, assembler *prompt.Assembler, opts ...ServiceOption) *Service {
	s := &Service{
		router:      rt,
		tables:      tables,
		model:       model,
		assembler:   assembler,
		temperature: 0.7,
		maxTokens:   1000,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers one question. Statistics cover the full fetched dataset,
// or the filtered subset when a Filter is supplied; only the raw sample
// in the prompt is size-bounded.
func (s *Service) Ask(ctx context.Context, req Request) (*Response, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		s.metrics.ChatRequest("bad_request")
		return nil, ErrNoQuestion
	}
	if s.model == nil {
		s.metrics.ChatRequest("bad_request")
		return nil, ErrModelUnconfigured
	}

	descriptors, err := s.router.Select(ctx, question, req.SheetGID)
	if err != nil {
		s.metrics.ChatRequest("bad_request")
		return nil, err
	}

	dataset, failures := s.fetchAll(ctx, descriptors)
	if dataset.Len() == 0 && len(failures) > 0 {
		s.metrics.ChatRequest("source_error")
		return nil, &SourcesError{Failures: failures}
	}
	for _, f := range failures {
		s.logger.Warn("source fetch failed, continuing with partial data",
			"source", f.Name, "error", f.Err)
	}

	if req.Filter != nil {
		dataset = applyFilter(dataset, req.Filter)
	}

	counting := router.IsCountingQuestion(question)
	var summary *stats.Summary
	if req.Filter != nil {
		// A filtered question counts the subset; the summary records
		// that denominator so the rendered figures say so.
		summary = stats.SummarizeSubset(dataset.Records, record.NewResolver(dataset))
	} else {
		summary = stats.Summarize(dataset)
	}

	var results []search.Result
	if req.EnableWebSearch && s.searcher != nil {
		results, err = s.searcher.Search(ctx, question, 0)
		if err != nil {
			// Search is best-effort enrichment, never chat-fatal.
			s.metrics.SearchFailure()
			s.logger.Warn("web search failed, answering without it", "error", err)
			results = nil
		}
	}

	pctx := s.assembler.Build(prompt.Input{
		Question:      question,
		Dataset:       dataset,
		Summary:       summary,
		Counting:      counting,
		SearchResults: results,
	})
	s.metrics.ObserveContext(pctx.Len(), dataset.Len())

	messages := s.buildMessages(question, pctx, req.History)

	start := time.Now()
	temp := s.temperature
	resp, err := s.model.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   s.maxTokens,
	})
	s.metrics.ObserveModelCall(time.Since(start).Seconds())
	if err != nil {
		s.metrics.ChatRequest("model_error")
		return nil, &ModelCallError{err: err}
	}

	month := postprocess.SurveyMonth(dataset)
	answer := postprocess.EnforceLeadingPhrase(resp.Content, month)

	s.metrics.ChatRequest("ok")
	s.logger.Info("chat answered",
		"request_id", resp.RequestID,
		"records", dataset.Len(),
		"sample_shown", pctx.SampleShown,
		"counting", counting,
		"search_results", len(results))

	return &Response{
		Answer:            answer,
		RecordsConsidered: dataset.Len(),
		Sources:           sheetNames(dataset),
		SearchResults:     results,
		RequestID:         resp.RequestID,
	}, nil
}

// Sources lists every queryable source.
func (s *Service) Sources(ctx context.Context) ([]source.Descriptor, error) {
	return s.router.All(ctx)
}

// Demographics fetches the default source and returns its full-dataset
// summary.
func (s *Service) Demographics(ctx context.Context) (*stats.Summary, error) {
	descriptors, err := s.router.Select(ctx, "", "")
	if err != nil {
		return nil, err
	}
	dataset, failures := s.fetchAll(ctx, descriptors)
	if dataset.Len() == 0 && len(failures) > 0 {
		return nil, &SourcesError{Failures: failures}
	}
	return stats.Summarize(dataset), nil
}

// fetchAll fetches every descriptor concurrently and merges the
// results. Failures are collected, not fatal: callers decide whether
// partial data suffices.
func (s *Service) fetchAll(ctx context.Context, descriptors []source.Descriptor) (*record.Dataset, []SourceFailure) {
	var (
		mu       sync.Mutex
		datasets = make([]*record.Dataset, len(descriptors))
		failures []SourceFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range descriptors {
		g.Go(func() error {
			ds, err := s.fetchOne(gctx, desc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.metrics.FetchFailure(string(desc.Kind))
				failures = append(failures, SourceFailure{Name: desc.DisplayName, Err: err})
				return nil
			}
			datasets[i] = ds
			return nil
		})
	}
	g.Wait()

	merged := &record.Dataset{}
	for _, ds := range datasets {
		if ds != nil {
			merged.Merge(ds)
		}
	}
	return merged, failures
}

// fetchOne dispatches on source kind. Interview documents become a
// dataset of detected participants with the transcript attached.
func (s *Service) fetchOne(ctx context.Context, desc source.Descriptor) (*record.Dataset, error) {
	switch desc.Kind {
	case source.KindInterview:
		if s.docs == nil {
			return nil, fmt.Errorf("no document fetcher configured")
		}
		text, err := s.docs.FetchDocument(ctx, desc.DocumentID)
		if err != nil {
			return nil, err
		}
		return interviewDataset(text, desc), nil
	default:
		return s.tables.FetchTable(ctx, desc)
	}
}

// interviewDataset converts a transcript into records: one per detected
// participant, with the raw transcript carried on the first record so
// long-form rendering surfaces it.
func interviewDataset(text string, desc source.Descriptor) *record.Dataset {
	ds := &record.Dataset{
		Headers: []string{"이름", "학년", "나이", "학교", interviewScriptField},
	}

	participants := source.ExtractParticipants(text)
	for _, p := range participants {
		r := record.Record{
			"이름":                  p.Name,
			record.SheetNameField: desc.DisplayName,
		}
		if p.Grade != "" {
			r["학년"] = p.Grade
		}
		if p.Age > 0 {
			r["나이"] = fmt.Sprintf("%d", p.Age)
		}
		if p.School != "" {
			r["학교"] = p.School
		}
		ds.Records = append(ds.Records, r)
	}

	if len(ds.Records) == 0 {
		ds.Records = append(ds.Records, record.Record{
			record.SheetNameField: desc.DisplayName,
		})
	}
	ds.Records[0][interviewScriptField] = strings.TrimSpace(text)
	return ds
}

// applyFilter keeps records whose attribute matches the filter value.
// Grade comparisons normalize to school level first.
func applyFilter(ds *record.Dataset, f *Filter) *record.Dataset {
	resolver := record.NewResolver(ds)
	want := strings.TrimSpace(f.Value)

	filtered := &record.Dataset{Headers: ds.Headers}
	for _, r := range ds.Records {
		got := resolver.Value(r, f.Attribute)
		if f.Attribute == record.AttrGrade {
			got = stats.NormalizeGrade(got)
		}
		if got == want {
			filtered.Records = append(filtered.Records, r)
		}
	}
	return filtered
}

// buildMessages threads the system prompt, prior turns, and the
// context-bearing user message.
func (s *Service) buildMessages(question string, pctx *prompt.Context, history []Turn) []llm.Message {
	messages := []llm.Message{{Role: "system", Content: systemPrompt}}
	for _, turn := range history {
		if turn.Role != "user" && turn.Role != "assistant" {
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{
		Role:    "user",
		Content: pctx.Render() + "\n질문: " + question,
	})
	return messages
}

// sheetNames returns the distinct sheet names present in the dataset.
func sheetNames(ds *record.Dataset) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range ds.Records {
		name := r.SheetName()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
