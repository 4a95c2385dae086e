package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server   `mapstructure:"server"`
	Model    Model    `mapstructure:"model"`
	Database Database `mapstructure:"database"`
	History  History  `mapstructure:"history"`
}

type Server struct {
	Addr        string `mapstructure:"addr"`
	BearerToken string `mapstructure:"bearer_token"`
}

type Model struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Name       string        `mapstructure:"name"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Embeddings bool          `mapstructure:"embeddings"`
}

type Database struct {
	Path string `mapstructure:"path"`
}

type History struct {
	WindowSize  int `mapstructure:"window_size"`
	TokenBudget int `mapstructure:"token_budget"`
	// Tokenizer selects how history token counts are approximated: "words"
	// for whitespace-split counting, or a tiktoken encoding name such as
	// "cl100k_base" for real subword counts.
	Tokenizer string `mapstructure:"tokenizer"`
}

// Load reads configuration from an optional config file and the environment.
// Environment variables use underscores for nesting, e.g. SERVER_ADDR,
// MODEL_BASE_URL. A .env file in the working directory is honoured if present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("server.addr", ":8100")
	// Secrets have no usable default, but registering the keys lets
	// AutomaticEnv find them during Unmarshal.
	v.SetDefault("server.bearer_token", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "http://localhost:11434/v1/")
	v.SetDefault("model.name", "llama3.1:8b")
	v.SetDefault("model.timeout", 60*time.Second)
	v.SetDefault("model.embeddings", false)
	v.SetDefault("database.path", "bluevi.db")
	v.SetDefault("history.window_size", 20)
	v.SetDefault("history.token_budget", 512)
	v.SetDefault("history.tokenizer", "words")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Server.BearerToken == "" {
		return nil, fmt.Errorf("server.bearer_token (SERVER_BEARER_TOKEN) is required")
	}
	return &cfg, nil
}
