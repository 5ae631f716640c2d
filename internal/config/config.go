package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath    = "config.toml"
	DefaultHTTPAddr      = ":8080"
	DefaultDataRoot      = "data"
	DefaultPGHost        = "127.0.0.1"
	DefaultPGPort        = 5432
	DefaultPGUser        = "postgres"
	DefaultPGDatabase    = "zapdesk"
	DefaultPGSSLMode     = "disable"
	DefaultPGMaxConns    = 10
	DefaultDeepgramModel = "nova-2"
	DefaultDeepgramLang  = "pt-BR"
	DefaultSyncSchedule  = "@every 10m"
)

type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Media      MediaConfig      `toml:"media"`
	Evolution  EvolutionConfig  `toml:"evolution"`
	Assistant  AssistantConfig  `toml:"assistant"`
	Deepgram   DeepgramConfig   `toml:"deepgram"`
	Sync       SyncConfig       `toml:"sync"`
	Onboarding OnboardingConfig `toml:"onboarding"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"gt=0"`
	User     string `toml:"user" validate:"required"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int    `toml:"max_conns" validate:"gt=0"`
}

type MediaConfig struct {
	DataRoot string `toml:"data_root" validate:"required"`
}

// EvolutionConfig holds gateway-wide defaults; per-instance base URL and
// API key stored alongside the instance take precedence.
type EvolutionConfig struct {
	BaseURL        string `toml:"base_url" validate:"omitempty,url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

type AssistantConfig struct {
	BaseURL        string `toml:"base_url" validate:"omitempty,url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=0"`
}

type DeepgramConfig struct {
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

// SyncConfig controls the periodic instance connection-info refresh.
type SyncConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"`
}

// OnboardingConfig controls the greeting sent when a brand-new contact
// opens their first session.
type OnboardingConfig struct {
	WelcomeEnabled bool   `toml:"welcome_enabled"`
	WelcomeText    string `toml:"welcome_text"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
			MaxConns: DefaultPGMaxConns,
		},
		Media: MediaConfig{
			DataRoot: DefaultDataRoot,
		},
		Evolution: EvolutionConfig{
			TimeoutSeconds: 30,
		},
		Assistant: AssistantConfig{
			TimeoutSeconds: 120,
		},
		Deepgram: DeepgramConfig{
			Model:    DefaultDeepgramModel,
			Language: DefaultDeepgramLang,
		},
		Sync: SyncConfig{
			Enabled:  true,
			Schedule: DefaultSyncSchedule,
		},
		Onboarding: OnboardingConfig{
			WelcomeEnabled: false,
			WelcomeText:    "Olá! Como posso ajudar?",
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks structural constraints on the loaded config.
func (c Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
