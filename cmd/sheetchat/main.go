// Package main provides the sheetchat binary entry point. Sheetchat
// answers natural-language questions about survey and interview data
// held in shared spreadsheets and documents.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/churryboy/sheet-llm-chatbot/llm/providers"

	"github.com/churryboy/sheet-llm-chatbot/api"
	"github.com/churryboy/sheet-llm-chatbot/chat"
	"github.com/churryboy/sheet-llm-chatbot/config"
	"github.com/churryboy/sheet-llm-chatbot/llm"
	"github.com/churryboy/sheet-llm-chatbot/metrics"
	"github.com/churryboy/sheet-llm-chatbot/prompt"
	"github.com/churryboy/sheet-llm-chatbot/registry"
	"github.com/churryboy/sheet-llm-chatbot/router"
	"github.com/churryboy/sheet-llm-chatbot/search"
	"github.com/churryboy/sheet-llm-chatbot/source"
)

const (
	Version = "0.1.0"
	appName = "sheetchat"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Survey data chatbot server",
		Long: `Sheetchat serves a chat API over shared survey spreadsheets and
interview documents. Questions are routed to the topical sheet, the
full dataset is summarized, and a size-bounded context is sent to the
configured completion service.

Configuration is read from ` + config.DefaultFile + ` (override with
` + config.FileEnv + `) with credentials supplied via environment
variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(logLevel)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(logLevel string) error {
	logger := newLogger(logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	registryReg := prometheus.NewRegistry()
	pipelineMetrics := metrics.New(registryReg)

	repo, err := registry.NewFileRepository(cfg.Registry.SourcesPath, cfg.Registry.TitlesPath, logger)
	if err != nil {
		return fmt.Errorf("open source registry: %w", err)
	}
	if cfg.Registry.Watch {
		if err := repo.Watch(); err != nil {
			logger.Warn("registry watch unavailable", "error", err)
		} else {
			defer repo.Close()
		}
	}

	tables := newTableFetcher(cfg, logger)
	docs := source.NewDocsClient(cfg.Document.APIKey, cfg.Document.FetchTimeout,
		source.WithDocsLogger(logger))

	rt := router.New(routerDefaults(cfg), repo, logger)

	model := llm.NewClient(llm.Endpoint{
		Provider: cfg.Model.Provider,
		Model:    cfg.Model.Model,
		URL:      cfg.Model.Endpoint,
	}, llm.WithLogger(logger), llm.WithTimeout(cfg.Model.Timeout))

	assembler := prompt.NewAssembler(prompt.Options{
		SampleCap:       cfg.Prompt.SampleCap,
		MaxChars:        cfg.Prompt.MaxChars,
		SearchResultCap: cfg.Prompt.SearchResultCap,
	}, prompt.WithLogger(logger))

	opts := []chat.ServiceOption{
		chat.WithDocumentFetcher(docs),
		chat.WithMetrics(pipelineMetrics),
		chat.WithLogger(logger),
		chat.WithSampling(cfg.Model.Temperature, cfg.Model.MaxTokens),
	}
	searcher := search.NewClient(cfg.Search.APIKey, cfg.Search.EngineID, search.WithLogger(logger))
	if searcher.Configured() {
		opts = append(opts, chat.WithSearcher(searcher))
	} else {
		logger.Info("web search disabled, no credentials configured")
	}

	service := chat.NewService(rt, tables, model, assembler, opts...)

	server := api.NewServer(service,
		api.WithRepository(repo),
		api.WithGatherer(registryReg),
		api.WithLogger(logger),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sheetchat listening",
			"version", Version,
			"addr", cfg.Server.Addr,
			"provider", cfg.Model.Provider,
			"model", cfg.Model.Model)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newTableFetcher picks local XLSX fixtures when configured, otherwise
// the live sheets export client.
func newTableFetcher(cfg *config.Config, logger *slog.Logger) source.TableFetcher {
	if len(cfg.Sheets.LocalXLSX) > 0 {
		logger.Info("serving tables from local XLSX fixtures", "files", len(cfg.Sheets.LocalXLSX))
		return source.NewXLSXFetcher(cfg.Sheets.LocalXLSX)
	}
	return source.NewSheetsClient(cfg.Sheets.FetchTimeout, source.WithSheetsLogger(logger))
}

func routerDefaults(cfg *config.Config) router.Defaults {
	return router.Defaults{
		Default: source.Descriptor{
			Kind:          source.KindSurvey,
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			GID:           cfg.Sheets.DefaultGID,
			DisplayName:   "설문지",
		},
		Device: source.Descriptor{
			Kind:          source.KindSurvey,
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			GID:           cfg.Sheets.DeviceGID,
			DisplayName:   "아이패드 설문",
		},
		Parent: source.Descriptor{
			Kind:          source.KindSurvey,
			SpreadsheetID: cfg.Sheets.SpreadsheetID,
			GID:           cfg.Sheets.ParentGID,
			DisplayName:   "학부모 설문",
		},
		Interview: source.Descriptor{
			Kind:        source.KindInterview,
			DocumentID:  cfg.Document.DocumentID,
			DisplayName: "인터뷰",
		},
	}
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
