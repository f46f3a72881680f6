package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTesting     Environment = "testing"
)

func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvProduction, EnvTesting:
		return true
	}
	return false
}

// Session backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Server     Server
	Database   Database
	Security   Security
	RateLimit  RateLimit
	Redis      Redis
	OAuth      OAuth
	Token      Token
	Session    Session
	Storage    Storage
	Summarizer Summarizer
	Log        Log
	BaseURL    string `env:"BASE_URL" validate:"omitempty,url"`
}

type Server struct {
	Port           int           `env:"SERVER_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	Environment    Environment   `env:"SERVER_ENVIRONMENT" envDefault:"development" validate:"oneof=development production testing"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"60s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxHeaderBytes int           `env:"SERVER_MAX_HEADER_BYTES" envDefault:"1048576"`
}

func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

// GetBaseURL returns the configured base URL or constructs one from server config
func (c Config) GetBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}

	scheme := "http"
	if c.Server.IsProduction() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%d", scheme, c.Server.Port)
}

type Database struct {
	URL             string        `env:"DB_URL"`
	MaxOpenConns    int32         `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int32         `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"5m"`
}

type Security struct {
	EnableHSTS            bool   `env:"SECURITY_ENABLE_HSTS" envDefault:"true"`
	HSTSMaxAge            int    `env:"SECURITY_HSTS_MAX_AGE" envDefault:"31536000"`
	HSTSIncludeSubdomains bool   `env:"SECURITY_HSTS_INCLUDE_SUBDOMAINS" envDefault:"true"`
	ContentSecurityPolicy string `env:"SECURITY_CSP" envDefault:"default-src 'self'; img-src 'self' data: https:; connect-src 'self'; frame-ancestors 'none'"`
	ReferrerPolicy        string `env:"SECURITY_REFERRER_POLICY" envDefault:"strict-origin-when-cross-origin"`
	PermissionsPolicy     string `env:"SECURITY_PERMISSIONS_POLICY" envDefault:"geolocation=(), microphone=(), camera=(), payment=(), usb=()"`
}

type RateLimit struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	AuthRequests   int           `env:"RATE_LIMIT_AUTH_REQUESTS" envDefault:"10" validate:"min=1"`
	APIRequests    int           `env:"RATE_LIMIT_API_REQUESTS" envDefault:"120" validate:"min=1"`
	PublicRequests int           `env:"RATE_LIMIT_PUBLIC_REQUESTS" envDefault:"60" validate:"min=1"`
	WindowDuration time.Duration `env:"RATE_LIMIT_WINDOW_DURATION" envDefault:"1m"`
}

type Redis struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`
	Prefix   string `env:"REDIS_PREFIX" envDefault:"drawer:"`
}

type OAuth struct {
	ClientID     string   `env:"OAUTH_CLIENT_ID,required" validate:"required"`
	ClientSecret string   `env:"OAUTH_CLIENT_SECRET,required" validate:"required"`
	AuthURL      string   `env:"OAUTH_AUTH_URL" envDefault:"https://www.dropbox.com/oauth2/authorize" validate:"url"`
	TokenURL     string   `env:"OAUTH_TOKEN_URL" envDefault:"https://api.dropboxapi.com/oauth2/token" validate:"url"`
	RedirectURL  string   `env:"OAUTH_REDIRECT_URL,required" validate:"url"`
	Scopes       []string `env:"OAUTH_SCOPES" envSeparator:" "`
	// AuthParams are extra authorize URL parameters, e.g. token_access_type:offline.
	AuthParams   map[string]string `env:"OAUTH_AUTH_PARAMS" envDefault:"token_access_type:offline"`
	SubjectField string            `env:"OAUTH_SUBJECT_FIELD" envDefault:"account_id"`
}

type Token struct {
	ExpiryMargin   time.Duration `env:"TOKEN_EXPIRY_MARGIN" envDefault:"0s" validate:"gte=0"`
	RefreshTimeout time.Duration `env:"TOKEN_REFRESH_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	LockPoll       time.Duration `env:"TOKEN_LOCK_POLL" envDefault:"100ms" validate:"gt=0"`
}

type Session struct {
	Backend string        `env:"SESSION_BACKEND" envDefault:"memory" validate:"oneof=memory redis postgres"`
	Secret  string        `env:"SESSION_SECRET,required" validate:"min=32"`
	TTL     time.Duration `env:"SESSION_TTL" envDefault:"720h" validate:"gt=0"`
	// CleanupInterval is how often expired sessions are purged from memory and postgres.
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m" validate:"gt=0"`
}

type Storage struct {
	APIURL         string `env:"STORAGE_API_URL" envDefault:"https://api.dropboxapi.com" validate:"url"`
	ContentURL     string `env:"STORAGE_CONTENT_URL" envDefault:"https://content.dropboxapi.com" validate:"url"`
	AppFolder      string `env:"STORAGE_APP_FOLDER" envDefault:"/.drawer" validate:"startswith=/"`
	MaxUploadBytes int64  `env:"STORAGE_MAX_UPLOAD_BYTES" envDefault:"157286400" validate:"min=1"`
}

type Summarizer struct {
	URL           string `env:"SUMMARIZER_URL" envDefault:"https://api.openai.com/v1/chat/completions" validate:"url"`
	APIKey        string `env:"SUMMARIZER_API_KEY"`
	Model         string `env:"SUMMARIZER_MODEL" envDefault:"gpt-4o-mini"`
	MaxInputBytes int64  `env:"SUMMARIZER_MAX_INPUT_BYTES" envDefault:"65536" validate:"min=1"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
}

// New creates a new configuration, exiting the process when it is invalid.
func New() Config {
	config, err := Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return config
}

// Load parses the configuration from the environment and validates it.
func Load() (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return config, apperrors.ConfigError("parse config", err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.ConfigError("invalid config: "+verrs.Error(), err)
		}
		return apperrors.ConfigError("invalid config", err)
	}

	if c.Session.Backend == BackendPostgres && c.Database.URL == "" {
		return apperrors.ConfigError("invalid config: DB_URL is required when SESSION_BACKEND is postgres", nil)
	}
	return nil
}
