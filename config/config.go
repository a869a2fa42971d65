package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the planning backend.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Planner   PlannerConfig   `mapstructure:"planner"`
}

// GeneralConfig contains server-wide settings.
type GeneralConfig struct {
	Listen    string `mapstructure:"listen"`
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Env       string `mapstructure:"env"`
}

// ProvidersConfig holds external capability backends.
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the OpenAI-backed generation and embedding client.
type OpenAIConfig struct {
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	CompletionModel     string        `mapstructure:"completion_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig groups the storage backends.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig configures the relational store.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a Postgres connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig configures the lock/cache store.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// PlannerConfig tunes the content plan synthesizer and dedup guard.
type PlannerConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	DedupThreshold  float64       `mapstructure:"dedup_threshold"`
	SeedConcurrency int           `mapstructure:"seed_concurrency"`
	SummaryCacheTTL time.Duration `mapstructure:"summary_cache_ttl"`
}

func (p PlannerConfig) Validate() error {
	if p.BatchSize <= 0 {
		return fmt.Errorf("planner.batch_size must be > 0")
	}
	if p.DedupThreshold <= 0 || p.DedupThreshold > 1 {
		return fmt.Errorf("planner.dedup_threshold must be in (0,1]")
	}
	if p.SeedConcurrency <= 0 {
		return fmt.Errorf("planner.seed_concurrency must be > 0")
	}
	return nil
}

// LoadConfig reads configuration from file and PLANORA_* environment variables.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":10020")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("providers.openai.completion_model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.embedding_model", "text-embedding-3-small")
	viper.SetDefault("providers.openai.embedding_dimensions", 1536)
	viper.SetDefault("providers.openai.temperature", 0.2)
	viper.SetDefault("providers.openai.max_tokens", 4096)
	viper.SetDefault("providers.openai.timeout", "60s")
	viper.SetDefault("planner.batch_size", 30)
	viper.SetDefault("planner.dedup_threshold", 0.85)
	viper.SetDefault("planner.seed_concurrency", 5)
	viper.SetDefault("planner.summary_cache_ttl", "5m")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PLANORA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional when everything arrives via env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Planner.Validate(); err != nil {
		panic(err)
	}
	return &config
}
