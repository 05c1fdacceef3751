package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/z-analyst/backend/internal/config"
	"github.com/zhouzirui/z-analyst/backend/internal/handler"
	"github.com/zhouzirui/z-analyst/backend/internal/integrations/openai"
	"github.com/zhouzirui/z-analyst/backend/internal/integrations/paramstore"
	"github.com/zhouzirui/z-analyst/backend/internal/logging"
	"github.com/zhouzirui/z-analyst/backend/internal/model/persona"
	"github.com/zhouzirui/z-analyst/backend/internal/observability"
	"github.com/zhouzirui/z-analyst/backend/internal/service/ai"
	"github.com/zhouzirui/z-analyst/backend/internal/service/chat"
	"github.com/zhouzirui/z-analyst/backend/internal/service/document"
	"github.com/zhouzirui/z-analyst/backend/internal/service/reveal"
	"github.com/zhouzirui/z-analyst/backend/internal/service/turn"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, continuing with system environment variables only")
	}

	if cfg.Credential.SSMParameter != "" {
		key, err := loadAPIKeyFromSSM(ctx, cfg.Credential.SSMParameter)
		if err != nil {
			log.Warn().Err(err).Str("parameter", cfg.Credential.SSMParameter).Msg("failed to load API key from SSM")
		} else {
			cfg.AI.APIKey = key
			log.Info().Str("parameter", cfg.Credential.SSMParameter).Msg("API key loaded from SSM")
		}
	}
	if !cfg.AI.HasCredential() {
		log.Warn().Msg("未配置服务端 API Key，客户端需要为每个会话提供自己的 Key")
	}

	metrics := observability.NewMetrics("zanalyst", prometheus.DefaultRegisterer)

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService()
	aiService := ai.NewService(newCompleter(cfg.AI), ai.NewPromptRegistry(personaStore), cfg.AI, ai.WithRecorder(metrics))
	runner := turn.NewRunner(chatService, aiService, cfg.AI)

	log.Info().
		Str("provider", cfg.AI.Provider).
		Str("model", cfg.AI.Model).
		Str("endpoint", cfg.AI.BaseURL).
		Dur("timeout", cfg.AI.Timeout).
		Msg("AI service initialized")

	router := handler.NewRouter(handler.Dependencies{
		Personas:  personaStore,
		Chat:      chatService,
		Runner:    runner,
		Extractor: document.NewExtractor(cfg.Document.MaxBytes),
		Pacer:     reveal.Pacer{ChunkSize: cfg.Reveal.ChunkSize, Delay: cfg.Reveal.Delay},
		MaxUpload: cfg.Document.MaxBytes,
		Metrics:   metrics,
		Gatherer:  prometheus.DefaultGatherer,
	})

	startServer(ctx, cfg.Server, router)
}

func newCompleter(cfg config.AIConfig) ai.Completer {
	if cfg.Provider == config.ProviderArk {
		return ai.NewArkCompleter(cfg.Region)
	}
	return openai.NewClient()
}

func loadAPIKeyFromSSM(ctx context.Context, parameter string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	client, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	return paramstore.ResolveAPIKey(ctx, client, parameter)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Z Analyst backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
