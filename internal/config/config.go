package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
}

// Supported guide store backends.
const (
	StoreBackendFile      = "file"
	StoreBackendPostgres  = "postgres"
	StoreBackendFirestore = "firestore"
)

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel       string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxUploadMB caps the multipart upload size.
	MaxUploadMB int `mapstructure:"max_upload_mb" validate:"gte=1,lte=512"`
}

// StoreConfig selects the guide store implementation.
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=file postgres firestore"`
	// Dir is the directory used by the file backend.
	Dir string `mapstructure:"dir"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// FirestoreConfig configures the Firestore guide store.
type FirestoreConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	Collection string `mapstructure:"collection" validate:"required"`
}

// CacheConfig configures the optional Redis read-through cache.
type CacheConfig struct {
	RedisURL   string `mapstructure:"redis_url" validate:"omitempty,url"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=1"`
}

// ArchiveConfig configures the optional GCS copy of uploaded sources.
type ArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// AuthConfig contains owner identity settings. An empty JWTSecret disables
// bearer token verification.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	Required  bool   `mapstructure:"required"`
	// TokenLifetimeMinutes is the lifetime of tokens issued by the token command.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	// GeminiAPIKey is the fallback credential used when a request carries none.
	GeminiAPIKey       string `mapstructure:"gemini_api_key"`
	ModelName          string `mapstructure:"model_name" validate:"required"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=1,lte=10"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=1"`
	MaxTranscriptChars int    `mapstructure:"max_transcript_chars" validate:"gte=1000"`
	RequestsPerMinute  int    `mapstructure:"requests_per_minute" validate:"gte=0"`
	TimeoutSeconds     int    `mapstructure:"timeout_seconds" validate:"gte=1"`
	TranscribeMedia    bool   `mapstructure:"transcribe_media"`
}
