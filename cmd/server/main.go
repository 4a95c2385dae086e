package main

import (
	"flag"
	"net/http"

	"github.com/bluevi/agent/internal/agent"
	"github.com/bluevi/agent/internal/api"
	"github.com/bluevi/agent/internal/config"
	"github.com/bluevi/agent/internal/db"
	"github.com/bluevi/agent/internal/history"
	"github.com/bluevi/agent/internal/llm"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "optional path to a config file")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.Database.Path))
	}
	defer database.Close()

	var counter history.TokenCounter = history.WordCount
	if cfg.History.Tokenizer != "" && cfg.History.Tokenizer != "words" {
		counter, err = history.NewTiktokenCounter(cfg.History.Tokenizer)
		if err != nil {
			logger.Fatal("failed to initialize tokenizer",
				zap.Error(err),
				zap.String("tokenizer", cfg.History.Tokenizer))
		}
	}

	runtime, err := llm.New(
		cfg.Model.BaseURL,
		cfg.Model.APIKey,
		cfg.Model.Name,
		logger,
		llm.WithTimeout(cfg.Model.Timeout),
		llm.WithTokenBudget(cfg.History.TokenBudget),
		llm.WithTokenCounter(counter),
	)
	if err != nil {
		logger.Fatal("failed to initialize model runtime", zap.Error(err))
	}

	conversationAgent := agent.New(runtime, database, logger,
		agent.WithWindowSize(cfg.History.WindowSize),
		agent.WithTokenBudget(cfg.History.TokenBudget),
		agent.WithTokenCounter(counter),
	)

	handler := api.NewHandler(database, conversationAgent, runtime, logger, cfg.Model.Embeddings)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", handler.HandleChat)
	mux.HandleFunc("/api/anonymize", handler.HandleAnonymize)
	mux.HandleFunc("/api/conversations", handler.HandleConversations)
	mux.HandleFunc("/api/conversations/end", handler.HandleEndConversation)
	mux.HandleFunc("/api/messages", handler.HandleMessages)

	logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
	if err := http.ListenAndServe(cfg.Server.Addr, api.Chain(logger, cfg.Server.BearerToken, mux)); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
