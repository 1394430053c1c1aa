package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from the environment,
// optionally seeded from a .env file in development.
type Config struct {
	Env          string
	Port         string
	LogLevel     string
	LexiconPath  string
	AutoAnnotate bool
	TwitterToken string
	DB           DBConfig
	LLM          LLMConfig
}

type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type LLMConfig struct {
	Provider       string // "openai", "gemini" or empty to disable
	APIKey         string
	BaseURL        string // optional OpenAI-compatible gateway
	Model          string
	EmbeddingModel string
	MaxConcurrent  int
	MaxRetries     int
	Timeout        time.Duration
}

var defaults = map[string]any{
	"env":                "development",
	"port":               "8080",
	"log_level":          "info",
	"lexicon_path":       "",
	"auto_annotate":      false,
	"twitter_token":      "",
	"db_host":            "localhost",
	"db_port":            "5432",
	"db_user":            "pulse",
	"db_password":        "",
	"db_name":            "pulse",
	"db_sslmode":         "prefer",
	"db_timezone":        "UTC",
	"db_max_idle_conns":  10,
	"db_max_open_conns":  100,
	"db_conn_max_life":   time.Hour,
	"llm_provider":       "",
	"llm_api_key":        "",
	"llm_base_url":       "",
	"llm_model":          "gpt-4o-mini",
	"llm_embed_model":    "text-embedding-3-small",
	"llm_max_concurrent": 5,
	"llm_max_retries":    3,
	"llm_timeout":        15 * time.Second,
}

// Load reads configuration from the environment. In development a .env file
// in the working directory is loaded first if present.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if v.GetString("env") == "development" {
		_ = godotenv.Load()
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:          v.GetString("env"),
		Port:         v.GetString("port"),
		LogLevel:     v.GetString("log_level"),
		LexiconPath:  v.GetString("lexicon_path"),
		AutoAnnotate: v.GetBool("auto_annotate"),
		TwitterToken: v.GetString("twitter_token"),
		DB: DBConfig{
			Host:            v.GetString("db_host"),
			Port:            v.GetString("db_port"),
			User:            v.GetString("db_user"),
			Password:        v.GetString("db_password"),
			Name:            v.GetString("db_name"),
			SSLMode:         v.GetString("db_sslmode"),
			TimeZone:        v.GetString("db_timezone"),
			MaxIdleConns:    v.GetInt("db_max_idle_conns"),
			MaxOpenConns:    v.GetInt("db_max_open_conns"),
			ConnMaxLifetime: v.GetDuration("db_conn_max_life"),
		},
		LLM: LLMConfig{
			Provider:       strings.ToLower(v.GetString("llm_provider")),
			APIKey:         v.GetString("llm_api_key"),
			BaseURL:        v.GetString("llm_base_url"),
			Model:          v.GetString("llm_model"),
			EmbeddingModel: v.GetString("llm_embed_model"),
			MaxConcurrent:  v.GetInt("llm_max_concurrent"),
			MaxRetries:     v.GetInt("llm_max_retries"),
			Timeout:        v.GetDuration("llm_timeout"),
		},
	}

	switch cfg.LLM.Provider {
	case "", "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("unknown LLM_PROVIDER %q (supported: openai, gemini)", cfg.LLM.Provider)
	}
	if cfg.LLM.Provider != "" && cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=%s", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxConcurrent < 1 {
		cfg.LLM.MaxConcurrent = 1
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c LLMConfig) Enabled() bool {
	return c.Provider != "" && c.APIKey != ""
}

// DSN renders the Postgres connection string used by the gorm driver.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone,
	)
}
