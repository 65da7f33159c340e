package main

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/korylprince/streamchat/chatbot"
	"github.com/sirupsen/logrus"
)

//Config represents options given in the environment
type Config struct {
	ListenAddr string //addr format used for net.Dial; default: :3000
	Prefix     string //url prefix to mount api to without trailing slash; default: /api

	Provider     string //gemini, anthropic, bedrock or openai; default: gemini
	Model        string //default model; requests may override it
	SystemPrompt string //default system prompt; requests may override it

	//credentials are also read without the CHAT_ prefix
	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	BedrockToken    string `envconfig:"AWS_BEARER_TOKEN_BEDROCK"`
	BedrockRegion   string `envconfig:"AWS_BEDROCK_REGION"` //default: us-east-1
	OpenAIAPIKey    string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `envconfig:"OPENAI_BASE_URL"`

	MockDelay int     //in milliseconds; default: 30; negative disables pacing
	KeepAlive int     //in seconds; default: 15; negative disables keepalives
	RateLimit float64 //chat requests per second; 0 disables limiting
	RateBurst int

	SQLDriver string //transcript archive; optional
	SQLDSN    string

	LogLevel    string   //default: info
	CORSOrigins []string //default: *
}

var config = &Config{}

//apiKey returns the credential for the configured provider
func (c *Config) apiKey() string {
	switch strings.ToLower(c.Provider) {
	case chatbot.ProviderGemini:
		return c.GeminiAPIKey
	case chatbot.ProviderAnthropic:
		return c.AnthropicAPIKey
	case chatbot.ProviderBedrock:
		return c.BedrockToken
	case chatbot.ProviderOpenAI:
		return c.OpenAIAPIKey
	}
	return ""
}

//upstreamConfig returns the chatbot.Config for c
func (c *Config) upstreamConfig(log logrus.FieldLogger) chatbot.Config {
	cfg := chatbot.Config{
		Provider:     c.Provider,
		APIKey:       c.apiKey(),
		Model:        c.Model,
		SystemPrompt: c.SystemPrompt,
		MockDelay:    time.Duration(c.MockDelay) * time.Millisecond,
		Logger:       log,
	}
	switch strings.ToLower(c.Provider) {
	case chatbot.ProviderBedrock:
		cfg.Region = c.BedrockRegion
	case chatbot.ProviderOpenAI:
		cfg.BaseURL = c.OpenAIBaseURL
	}
	return cfg
}

func init() {
	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Fatal("Error reading .env.local")
	}

	err := envconfig.Process("CHAT", config)
	if err != nil {
		logrus.WithError(err).Fatal("Error reading configuration from environment")
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":3000"
	}
	if config.Prefix == "" {
		config.Prefix = "/api"
	}
	if config.Provider == "" {
		config.Provider = chatbot.ProviderGemini
	}
	if config.BedrockRegion == "" {
		config.BedrockRegion = "us-east-1"
	}
	if config.MockDelay == 0 {
		config.MockDelay = 30
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = 15
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if len(config.CORSOrigins) == 0 {
		config.CORSOrigins = []string{"*"}
	}

	if (config.SQLDriver == "") != (config.SQLDSN == "") {
		logrus.Fatal("CHAT_SQLDRIVER and CHAT_SQLDSN must be configured together")
	}

	if config.SQLDriver == "mysql" && !strings.Contains(config.SQLDSN, "parseTime=true") {
		logrus.Fatal("mysql DSN must contain \"parseTime=true\"")
	}
}
