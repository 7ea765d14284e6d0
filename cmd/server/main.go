// Command server starts the survey analysis HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/ai"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/ai/openai"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/auth/okta"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/app"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/config"
	"github.com/fairyhunter13/ai-survey-analyzer/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	surveyRepo := postgres.NewSurveyRepo(pool)
	analysisRepo := postgres.NewAnalysisRepo(pool)

	completer := ai.NewRetryClient(openai.New(cfg), cfg.LLMMaxAttempts, cfg.LLMRetryDelay)
	pipeline := ai.NewPipeline(completer)
	surveys := usecase.NewSurveyService(surveyRepo, analysisRepo, pipeline)

	verifier := okta.NewVerifier(cfg)

	srv := httpserver.NewServer(cfg, surveys, pool.Ping)
	handler := app.BuildRouter(cfg, srv, verifier)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
