package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Doubao    DoubaoConfig    `mapstructure:"doubao"`
	Qwen      QwenConfig      `mapstructure:"qwen"`
	Session   SessionConfig   `mapstructure:"session"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Preview   PreviewConfig   `mapstructure:"preview"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type ModelConfig struct {
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type DoubaoConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type QwenConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type SessionConfig struct {
	SystemPrompt   string        `mapstructure:"system_prompt"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// StorageConfig selects the persistence gateway backend: memory, disk, sqlite or remote.
type StorageConfig struct {
	Type      string        `mapstructure:"type"`
	DataDir   string        `mapstructure:"data_dir"`
	DSN       string        `mapstructure:"dsn"`
	RemoteURL string        `mapstructure:"remote_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

type PreviewConfig struct {
	MinLength    int               `mapstructure:"min_length"`
	Template     string            `mapstructure:"template"`
	Directive    string            `mapstructure:"directive"`
	AutoRun      bool              `mapstructure:"auto_run"`
	AutoReload   bool              `mapstructure:"auto_reload"`
	Dependencies map[string]string `mapstructure:"dependencies"`
}

var cfg *Config

// Load reads configPath (when it exists) on top of the built-in defaults.
// Environment variables prefixed with PAGEGEN_ override both.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", configPath, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, err
	}

	// the config file wins; the vendor variables only fill empty keys
	if loaded.OpenAI.APIKey == "" {
		loaded.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if loaded.Doubao.APIKey == "" {
		if apiKey := os.Getenv("DOUBAO_API_KEY"); apiKey != "" {
			loaded.Doubao.APIKey = apiKey
		}
		if apiKey := os.Getenv("ARK_API_KEY"); apiKey != "" {
			loaded.Doubao.APIKey = apiKey
		}
	}
	if loaded.Qwen.APIKey == "" {
		loaded.Qwen.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	if err := loaded.Validate(); err != nil {
		return nil, err
	}

	cfg = loaded
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "disk", "sqlite":
	case "remote":
		if c.Storage.RemoteURL == "" {
			return errors.New("storage.remote_url is required for remote storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	if c.Preview.MinLength < 0 {
		return errors.New("preview.min_length must not be negative")
	}
	if c.Session.SystemPrompt == "" {
		return errors.New("session.system_prompt must not be empty")
	}
	return nil
}

func Get() *Config {
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout", 2*time.Minute)
	v.SetDefault("doubao.timeout", 2*time.Minute)
	v.SetDefault("qwen.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("qwen.model", "qwen-plus")
	v.SetDefault("qwen.max_tokens", 4096)
	v.SetDefault("qwen.temperature", 0.2)
	v.SetDefault("qwen.top_p", 0.9)
	v.SetDefault("qwen.timeout", 2*time.Minute)

	v.SetDefault("session.system_prompt", DefaultSystemPrompt)
	v.SetDefault("session.turn_timeout", 5*time.Minute)
	v.SetDefault("session.persist_timeout", 10*time.Second)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 30)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("storage.type", "disk")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.dsn", "./data/pagegen.db")
	v.SetDefault("storage.timeout", 10*time.Second)

	v.SetDefault("registry.path", "./data/projects.yaml")

	v.SetDefault("preview.min_length", 5)
	v.SetDefault("preview.template", "nextjs")
	v.SetDefault("preview.directive", `"use client";`)
	v.SetDefault("preview.auto_run", true)
	v.SetDefault("preview.auto_reload", true)
}
