// Package api exposes the chat pipeline over HTTP: the chat endpoint,
// source management, demographics, health, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/churryboy/sheet-llm-chatbot/chat"
	"github.com/churryboy/sheet-llm-chatbot/registry"
	"github.com/churryboy/sheet-llm-chatbot/router"
	"github.com/churryboy/sheet-llm-chatbot/source"
	"github.com/churryboy/sheet-llm-chatbot/stats"
)

// ChatService is the pipeline surface the API depends on. Satisfied by
// *chat.Service.
type ChatService interface {
	Ask(ctx context.Context, req chat.Request) (*chat.Response, error)
	Sources(ctx context.Context) ([]source.Descriptor, error)
	Demographics(ctx context.Context) (*stats.Summary, error)
}

// Server is the HTTP surface.
type Server struct {
	service  ChatService
	repo     registry.Repository
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	origins  []string
}

// Option configures a Server.
type Option func(*Server)

// WithRepository wires the source registry for mutations.
func WithRepository(repo registry.Repository) Option {
	return func(s *Server) { s.repo = repo }
}

// WithGatherer exposes a Prometheus registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAllowedOrigins sets the CORS origin allowlist. Empty allows all.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer creates the HTTP surface over a chat service.
func NewServer(service ChatService, opts ...Option) *Server {
	s := &Server{
		service: service,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/health", s.handleHealth)
		r.Get("/demographics", s.handleDemographics)
		r.Get("/data-sources", s.handleListSources)
		r.Post("/data-sources", s.handleAddSource)
		r.Patch("/data-sources/{gid}", s.handleRenameSource)
	})

	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// errorBody is the JSON error shape.
type errorBody struct {
	Error       string `json:"error"`
	Remediation string `json:"remediation,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	resp, err := s.service.Ask(r.Context(), req)
	if err != nil {
		s.writeChatError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeChatError maps pipeline errors onto HTTP statuses. Source
// failures surface the remediation hint so the user can fix sharing
// settings themselves.
func (s *Server) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrNoQuestion):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, chat.ErrModelUnconfigured):
		s.writeError(w, http.StatusServiceUnavailable, err.Error(), "")
	case errors.Is(err, router.ErrUnknownSource):
		s.writeError(w, http.StatusNotFound, err.Error(), "")
	case chat.IsSourcesError(err):
		remediation := ""
		if u, ok := source.AsUnavailable(err); ok {
			remediation = u.Remediation
		}
		s.writeError(w, http.StatusBadGateway, err.Error(), remediation)
	case chat.IsModelCallError(err):
		s.writeError(w, http.StatusBadGateway, err.Error(), "")
	default:
		s.logger.Error("chat request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// demographicsResponse flattens a stats.Summary for JSON.
type demographicsResponse struct {
	TotalRecords  int                           `json:"total_records"`
	Distributions map[string][]categoryResponse `json:"distributions"`
}

type categoryResponse struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

func (s *Server) handleDemographics(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Demographics(r.Context())
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	resp := demographicsResponse{
		TotalRecords:  summary.TotalRecords,
		Distributions: make(map[string][]categoryResponse, len(summary.Distributions)),
	}
	for attr, dist := range summary.Distributions {
		categories := make([]categoryResponse, 0, len(dist.Labels))
		for _, label := range dist.Labels {
			categories = append(categories, categoryResponse{
				Label:   label,
				Count:   dist.Count(label),
				Percent: dist.Percent(label),
			})
		}
		resp.Distributions[string(attr)] = categories
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.service.Sources(r.Context())
	if err != nil {
		s.logger.Error("listing sources failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "source registry is not configured", "")
		return
	}

	var desc source.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if desc.Kind == "" {
		desc.Kind = source.KindSurvey
	}

	if err := s.repo.Add(r.Context(), desc); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			s.writeError(w, http.StatusConflict, err.Error(), "")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusCreated, desc)
}

// handleRenameSource renames a custom source, or stores a title
// override when the GID belongs to a default source.
func (s *Server) handleRenameSource(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.writeError(w, http.StatusServiceUnavailable, "source registry is not configured", "")
		return
	}

	gid := chi.URLParam(r, "gid")
	var body struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DisplayName == "" {
		s.writeError(w, http.StatusBadRequest, "display_name is required", "")
		return
	}

	err := s.repo.Update(r.Context(), gid, body.DisplayName)
	if errors.Is(err, registry.ErrNotFound) {
		if s.isDefaultSource(r.Context(), gid) {
			err = s.repo.SetTitle(r.Context(), gid, body.DisplayName)
		} else {
			s.writeError(w, http.StatusNotFound, err.Error(), "")
			return
		}
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"gid": gid, "display_name": body.DisplayName})
}

func (s *Server) isDefaultSource(ctx context.Context, gid string) bool {
	sources, err := s.service.Sources(ctx)
	if err != nil {
		return false
	}
	for _, d := range sources {
		if d.IsDefault && d.GID == gid {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, remediation string) {
	s.writeJSON(w, status, errorBody{Error: msg, Remediation: remediation})
}
