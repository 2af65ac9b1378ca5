package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

// Supported completion providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Supported history backends.
const (
	HistorySQLite = "sqlite"
	HistoryMemory = "memory"
)

// ErrMissingCredential is returned when the selected provider has no API key.
var ErrMissingCredential = errors.New("model api credential is required")

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	History HistoryConfig
	Auth    AuthConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Addr string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"openai"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4"`

	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`

	Temperature float32 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int     `env:"LLM_MAX_TOKENS" envDefault:"1000"`

	PersonaPath string `env:"ASSISTANT_PROFILE_PATH"`
}

// HistoryConfig 描述会话历史存储配置。
type HistoryConfig struct {
	Driver   string `env:"HISTORY_DRIVER" envDefault:"sqlite"`
	DBPath   string `env:"HISTORY_DB_PATH" envDefault:"data/friday.db"`
	Window   int    `env:"HISTORY_WINDOW" envDefault:"10"`
	PageSize int    `env:"HISTORY_PAGE_SIZE" envDefault:"20"`
}

// AuthConfig 描述第三方登录配置。凭证缺失时登录功能降级为禁用模式。
type AuthConfig struct {
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`
	SessionTTL         time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`
	StateTTL           time.Duration `env:"AUTH_STATE_TTL" envDefault:"10m"`
	CookieSecure       bool          `env:"AUTH_COOKIE_SECURE" envDefault:"false"`
	JanitorSpec        string        `env:"AUTH_JANITOR_SPEC" envDefault:"@every 5m"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom parses the supplied variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return load(env.Options{Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	if err := cfg.AI.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.History.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// listenAddr 解析服务器监听地址。
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Validate ensures the selected provider can be constructed. The process
// refuses to start without a model credential.
func (c AIConfig) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingCredential)
		}
	case ProviderArk:
		if c.Model == "" {
			return fmt.Errorf("%w: set ARK_MODEL", ErrMissingCredential)
		}
		if c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "") {
			return fmt.Errorf("%w: set ARK_API_KEY or ARK_ACCESS_KEY + ARK_SECRET_KEY", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}

	if c.MaxTokens < 0 {
		return fmt.Errorf("invalid LLM_MAX_TOKENS value %d", c.MaxTokens)
	}
	return nil
}

// ModelName returns the model identifier of the selected provider.
func (c AIConfig) ModelName() string {
	if c.Provider == ProviderArk {
		return c.Model
	}
	return c.OpenAIModel
}

func (c HistoryConfig) validate() error {
	switch c.Driver {
	case HistorySQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("HISTORY_DB_PATH is required for the sqlite history driver")
		}
	case HistoryMemory:
	default:
		return fmt.Errorf("unknown HISTORY_DRIVER %q", c.Driver)
	}

	if c.Window < 1 {
		return fmt.Errorf("invalid HISTORY_WINDOW value %d", c.Window)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("invalid HISTORY_PAGE_SIZE value %d", c.PageSize)
	}
	return nil
}

// Enabled 表示是否提供了 Google 登录凭证。
func (c AuthConfig) Enabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
