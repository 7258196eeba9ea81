package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Evidence    EvidenceConfig    `yaml:"evidence" mapstructure:"evidence"`
	Results     ResultsConfig     `yaml:"results" mapstructure:"results"`
	Inference   InferenceConfig   `yaml:"inference" mapstructure:"inference"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Corrections CorrectionsConfig `yaml:"corrections" mapstructure:"corrections"`
	Sites       SitesConfig       `yaml:"sites" mapstructure:"sites"`
	StreetView  StreetViewConfig  `yaml:"streetview" mapstructure:"streetview"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Resize      ResizeConfig      `yaml:"resize" mapstructure:"resize"`
	Pricing     PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// EvidenceConfig selects where site photos are read from.
type EvidenceConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver" validate:"oneof=local gcs"`
	Dir    string `yaml:"dir" mapstructure:"dir" validate:"required_if=Driver local"`
	Bucket string `yaml:"bucket" mapstructure:"bucket" validate:"required_if=Driver gcs"`
	Prefix string `yaml:"prefix" mapstructure:"prefix"`
}

// ResultsConfig configures the append-only results table.
type ResultsConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver" validate:"oneof=csv xlsx"`
	Path   string `yaml:"path" mapstructure:"path" validate:"required"`
	Sheet  string `yaml:"sheet" mapstructure:"sheet"`
}

// InferenceConfig picks the backend and prompt variant.
type InferenceConfig struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=openai gemini anthropic"`
	Prompt  string `yaml:"prompt" mapstructure:"prompt" validate:"required"`
}

// OpenAIConfig holds OpenAI chat completions settings.
type OpenAIConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	Model     string `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
}

// GeminiConfig holds Gemini settings. JSONMode requests application/json
// output; when off, responses go through the lenient parser.
type GeminiConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	Model    string `yaml:"model" mapstructure:"model" validate:"required"`
	JSONMode bool   `yaml:"json_mode" mapstructure:"json_mode"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model" validate:"required"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens" validate:"min=1"`
}

// PipelineConfig configures the classify loop.
type PipelineConfig struct {
	RequestTimeoutSecs int     `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs" validate:"min=1"`
	RequestsPerMinute  float64 `yaml:"requests_per_minute" mapstructure:"requests_per_minute" validate:"min=0"`
	Limit              int     `yaml:"limit" mapstructure:"limit" validate:"min=0"`
}

// CorrectionsConfig configures the brand-correction store.
type CorrectionsConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required"`
}

// SitesConfig points at the site metadata CSV.
type SitesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// StreetViewConfig holds Maps Embed API settings.
type StreetViewConfig struct {
	Key    string `yaml:"key" mapstructure:"key"`
	FOV    int    `yaml:"fov" mapstructure:"fov" validate:"min=10,max=120"`
	Width  int    `yaml:"width" mapstructure:"width" validate:"min=1"`
	Height int    `yaml:"height" mapstructure:"height" validate:"min=1"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port" validate:"min=0,max=65535"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ResizeConfig configures the image resize command.
type ResizeConfig struct {
	Width int `yaml:"width" mapstructure:"width" validate:"min=1"`
}

// PricingConfig holds per-model token pricing (USD per million tokens).
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing.
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// MonitoringConfig holds run alert thresholds. Zero disables a check.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold" validate:"min=0,max=1"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd" validate:"min=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FORECOURT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("evidence.driver", "local")
	v.SetDefault("evidence.dir", "static/images")
	v.SetDefault("evidence.bucket", "")
	v.SetDefault("evidence.prefix", "")
	v.SetDefault("results.driver", "csv")
	v.SetDefault("results.path", "chatgpt_output.csv")
	v.SetDefault("results.sheet", "results")
	v.SetDefault("inference.backend", "openai")
	v.SetDefault("inference.prompt", "basic")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash-001")
	v.SetDefault("gemini.json_mode", false)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("pipeline.request_timeout_secs", 120)
	v.SetDefault("pipeline.requests_per_minute", 0)
	v.SetDefault("pipeline.limit", 0)
	v.SetDefault("corrections.driver", "sqlite")
	v.SetDefault("corrections.database_url", "corrections.db")
	v.SetDefault("sites.path", "streetview_uk_updated.csv")
	v.SetDefault("streetview.key", "")
	v.SetDefault("streetview.fov", 80)
	v.SetDefault("streetview.width", 600)
	v.SetDefault("streetview.height", 450)
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("resize.width", 1600)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.cost_threshold_usd", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Pricing.Models == nil {
		cfg.Pricing.Models = DefaultPricing()
	}

	return &cfg, nil
}

// DefaultPricing returns list prices for the default models.
func DefaultPricing() map[string]ModelPricing {
	return map[string]ModelPricing{
		"gpt-4o":                     {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":                {Input: 0.15, Output: 0.60},
		"gemini-2.0-flash-001":       {Input: 0.10, Output: 0.40},
		"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
	}
}

// Validate checks value ranges and driver names.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return eris.Wrap(err, "config: validate")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
