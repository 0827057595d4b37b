// Command atapbot runs the Atap Cerdas customer chat service.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/config"
	"github.com/atapcerdas/atapbot/internal/embedding"
	"github.com/atapcerdas/atapbot/internal/generator"
	"github.com/atapcerdas/atapbot/internal/handler"
	"github.com/atapcerdas/atapbot/internal/intent"
	"github.com/atapcerdas/atapbot/internal/knowledge"
	"github.com/atapcerdas/atapbot/internal/llm"
	"github.com/atapcerdas/atapbot/internal/middleware"
	"github.com/atapcerdas/atapbot/internal/orchestrator"
	"github.com/atapcerdas/atapbot/internal/retriever"
	"github.com/atapcerdas/atapbot/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer st.Close()

	backend, err := embedding.NewBackend(cfg.Embedding, logger)
	if err != nil {
		logger.Fatal("embedding backend init failed", zap.Error(err))
	}
	if err := st.Initialize(ctx, backend.Dimensions()); err != nil {
		logger.Fatal("schema initialization failed", zap.Error(err))
	}

	gateway := embedding.NewGateway(backend, embedding.GatewayOptions{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		WavePause:   cfg.Embedding.WavePause,
		CacheSize:   cfg.Embedding.CacheSize,
	}, logger)

	provider := llm.NewClient(llm.Options{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	pipeline := orchestrator.New(
		intent.NewClassifier(provider, cfg.Pipeline.HistoryWindow, logger),
		intent.NewRouter(provider, st, logger),
		// The matcher reports at its own 0.5 cutoff; the stricter
		// qa_match threshold gates only the pipeline short-circuit.
		knowledge.NewMatcher(st, 0, logger),
		&retriever.VectorRetriever{Embed: gateway, Store: st, TopK: cfg.Pipeline.TopK},
		generator.New(provider, cfg.Pipeline.HistoryWindow, logger),
		st,
		orchestrator.Thresholds{
			IntentConfidence: cfg.Pipeline.IntentConfidence,
			OffTopic:         cfg.Pipeline.OffTopic,
			QAMatch:          cfg.Pipeline.QAMatch,
			TopK:             cfg.Pipeline.TopK,
		},
		logger,
	)

	chat := handler.NewChatHandler(pipeline, logger)
	ws := handler.NewWebSocketHandler(pipeline, logger)
	admin := handler.NewAdminHandler(st, logger)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS())

	r.GET("/health", admin.Health)
	r.POST("/api/chat", chat.Chat)
	r.GET("/ws/chat", ws.Handle)
	r.POST("/api/classify", chat.Classify)
	r.POST("/api/qa/match", chat.MatchKnowledge)

	adminGroup := r.Group("/api/admin")
	{
		adminGroup.GET("/qa", admin.ListQA)
		adminGroup.POST("/qa", admin.CreateQA)
		adminGroup.PUT("/qa/:id", admin.UpdateQA)
		adminGroup.DELETE("/qa/:id", admin.DeleteQA)
		adminGroup.GET("/documents", admin.ListDocuments)
		adminGroup.GET("/logs", admin.ListQueryLogs)
		adminGroup.GET("/contacts", admin.GetContacts)
		adminGroup.PUT("/contacts", admin.SetContact)
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}
