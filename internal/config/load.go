package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "STUDYGUIDE"

// defaults lists every configuration key. Viper only maps environment
// variables onto keys it knows about, so each key needs an entry here.
var defaults = map[string]any{
	"server.port":            8080,
	"server.log_level":       "info",
	"server.allowed_origins": []string{"*"},
	"server.max_upload_mb":   25,

	"store.backend": StoreBackendFile,
	"store.dir":     "./data/guides",

	"database.url": "",

	"firestore.project_id": "",
	"firestore.collection": "study_guides",

	"cache.redis_url":   "",
	"cache.ttl_seconds": 300,

	"archive.bucket": "",

	"auth.jwt_secret": "",
	"auth.required":   false,

	"auth.token_lifetime_minutes": 1440,

	"llm.gemini_api_key":       "",
	"llm.model_name":           "gemini-2.5-flash-lite",
	"llm.max_retries":          3,
	"llm.retry_delay_seconds":  2,
	"llm.max_transcript_chars": 50000,
	"llm.requests_per_minute":  0,
	"llm.timeout_seconds":      120,
	"llm.transcribe_media":     true,
}

// Load configuration from environment variables only.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration from the given YAML file (if path is not
// empty) and then from environment variables, which take precedence.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// GEMINI_API_KEY is accepted as the conventional name for the default key.
	if err := v.BindEnv("llm.gemini_api_key", EnvPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind gemini api key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation plus the cross-section rules that struct
// tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var problems []error
	switch cfg.Store.Backend {
	case StoreBackendPostgres:
		if cfg.Database.URL == "" {
			problems = append(problems, errors.New("database.url is required for the postgres store"))
		}
	case StoreBackendFirestore:
		if cfg.Firestore.ProjectID == "" {
			problems = append(problems, errors.New("firestore.project_id is required for the firestore store"))
		}
	case StoreBackendFile:
		if cfg.Store.Dir == "" {
			problems = append(problems, errors.New("store.dir is required for the file store"))
		}
	}
	if cfg.Auth.Required && cfg.Auth.JWTSecret == "" {
		problems = append(problems, errors.New("auth.required needs auth.jwt_secret"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %w", errors.Join(problems...))
	}
	return nil
}
