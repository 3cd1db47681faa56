package main

import (
	"net/http"

	"github.com/calliope-ai/calliope/internal/api"
	"github.com/calliope-ai/calliope/internal/config"
	"github.com/calliope-ai/calliope/internal/llm"
	"github.com/calliope-ai/calliope/internal/store"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer st.Close()

	completer, err := llm.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if err != nil {
		logger.Fatal("failed to initialize LLM service", zap.Error(err))
	}

	handler := api.NewHandler(st, completer, cfg.APIToken, logger)

	logger.Info("Starting gateway", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, handler.Routes()); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
