package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig `envPrefix:"DB_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	LLM      LLMConfig
	Vendors  VendorConfig
	Email    EmailConfig   `envPrefix:"EMAIL_"`
	Scraper  ScraperConfig `envPrefix:"SCRAPER_"`
	Secrets  SecretsConfig
	CORS     CORSConfig `envPrefix:"CORS_"`
}

type AppConfig struct {
	AppName     string `env:"APP_NAME" envDefault:"apply-codes"`
	Environment string `env:"APP_ENV" envDefault:"development"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogJSON     bool   `env:"LOG_JSON" envDefault:"false"`
	LogDebug    bool   `env:"LOG_DEBUG" envDefault:"false"`
}

// DatabaseConfig is optional; an empty Host runs the service on the in-memory store.
type DatabaseConfig struct {
	DBHost     string `env:"HOST"`
	DBPort     string `env:"PORT" envDefault:"5432"`
	DBName     string `env:"NAME" envDefault:"apply_codes"`
	DBUser     string `env:"USER" envDefault:"postgres"`
	DBPassword string `env:"PASSWORD"`
	DBSSLMode  string `env:"SSL_MODE" envDefault:"disable"`

	ConnectTimeout        time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
	PoolMaxConns          int32         `env:"POOL_MAX_CONNS" envDefault:"10"`
	PoolMinConns          int32         `env:"POOL_MIN_CONNS" envDefault:"0"`
	PoolMaxConnLifetime   time.Duration `env:"POOL_MAX_CONN_LIFETIME" envDefault:"1h"`
	PoolMaxConnIdleTime   time.Duration `env:"POOL_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	PoolHealthCheckPeriod time.Duration `env:"POOL_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
}

func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DBHost) != ""
}

type RedisConfig struct {
	Addr     string        `env:"ADDR" envDefault:"localhost:6379"`
	Password string        `env:"PASSWORD"`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"10m"`
	Disabled bool          `env:"DISABLED" envDefault:"false"`
}

const (
	AuthProviderOIDC = "oidc"
	AuthProviderHMAC = "hmac"
)

type AuthConfig struct {
	Provider   string        `env:"PROVIDER" envDefault:"hmac"`
	Issuer     string        `env:"ISSUER"`
	Audience   string        `env:"AUDIENCE"`
	HMACSecret string        `env:"HMAC_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
}

type LLMConfig struct {
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	DefaultModel    string `env:"GEMINI_DEFAULT_MODEL" envDefault:"gemini-2.0-flash"`
	ComplexModel    string `env:"GEMINI_COMPLEX_MODEL" envDefault:"gemini-2.5-pro"`
	MaxRetries      int    `env:"LLM_MAX_RETRIES" envDefault:"3"`
	MaxPromptTokens int    `env:"LLM_MAX_PROMPT_TOKENS" envDefault:"12000"`
}

type VendorConfig struct {
	PDLAPIKey  string `env:"PDL_API_KEY"`
	PDLBaseURL string `env:"PDL_BASE_URL" envDefault:"https://api.peopledatalabs.com"`

	ClearbitAPIKey         string `env:"CLEARBIT_API_KEY"`
	ClearbitPersonBaseURL  string `env:"CLEARBIT_PERSON_BASE_URL" envDefault:"https://person.clearbit.com"`
	ClearbitCompanyBaseURL string `env:"CLEARBIT_COMPANY_BASE_URL" envDefault:"https://company.clearbit.com"`

	HunterAPIKey  string `env:"HUNTER_API_KEY"`
	HunterBaseURL string `env:"HUNTER_BASE_URL" envDefault:"https://api.hunter.io"`

	GitHubToken   string `env:"GITHUB_TOKEN"`
	GitHubBaseURL string `env:"GITHUB_BASE_URL" envDefault:"https://api.github.com"`

	GoogleCSEAPIKey  string `env:"GOOGLE_CSE_API_KEY"`
	GoogleCSEID      string `env:"GOOGLE_CSE_ID"`
	GoogleCSEBaseURL string `env:"GOOGLE_CSE_BASE_URL" envDefault:"https://www.googleapis.com"`

	GoogleMapsAPIKey  string `env:"GOOGLE_MAPS_API_KEY"`
	GoogleMapsBaseURL string `env:"GOOGLE_MAPS_BASE_URL" envDefault:"https://maps.googleapis.com"`

	PerplexityAPIKey  string `env:"PERPLEXITY_API_KEY"`
	PerplexityBaseURL string `env:"PERPLEXITY_BASE_URL" envDefault:"https://api.perplexity.ai"`
	PerplexityModel   string `env:"PERPLEXITY_MODEL" envDefault:"sonar"`

	FirecrawlAPIKey  string `env:"FIRECRAWL_API_KEY"`
	FirecrawlBaseURL string `env:"FIRECRAWL_BASE_URL" envDefault:"https://api.firecrawl.dev"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeBaseURL       string `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	StripeSuccessURL    string `env:"STRIPE_SUCCESS_URL" envDefault:"http://localhost:5173/billing/success"`
	StripeCancelURL     string `env:"STRIPE_CANCEL_URL" envDefault:"http://localhost:5173/billing/cancel"`

	SendGridAPIKey           string `env:"SENDGRID_API_KEY"`
	SendGridBaseURL          string `env:"SENDGRID_BASE_URL" envDefault:"https://api.sendgrid.com"`
	SendGridFromEmail        string `env:"SENDGRID_FROM_EMAIL" envDefault:"no-reply@apply.codes"`
	SendGridFromName         string `env:"SENDGRID_FROM_NAME" envDefault:"Apply"`
	SendGridWebhookPublicKey string `env:"SENDGRID_WEBHOOK_PUBLIC_KEY"`

	DailyAPIKey  string `env:"DAILY_API_KEY"`
	DailyBaseURL string `env:"DAILY_BASE_URL" envDefault:"https://api.daily.co"`

	HTTPTimeout time.Duration `env:"VENDOR_HTTP_TIMEOUT" envDefault:"30s"`
}

type EmailConfig struct {
	BatchSize  int           `env:"BATCH_SIZE" envDefault:"100"`
	BatchDelay time.Duration `env:"BATCH_DELAY" envDefault:"1s"`
}

type ScraperConfig struct {
	Headless  bool   `env:"HEADLESS" envDefault:"false"`
	UserAgent string `env:"USER_AGENT" envDefault:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"`
}

type SecretsConfig struct {
	EncryptionKey string   `env:"SECRETS_ENCRYPTION_KEY"`
	ClientAPIKeys []string `env:"CLIENT_API_KEYS" envSeparator:"," envDefault:"googleMaps"`
}

type CORSConfig struct {
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Sanitize()

	if missing := cfg.missing(); len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.Auth.Provider = strings.ToLower(strings.TrimSpace(c.Auth.Provider))
	if c.Auth.Provider == "" {
		c.Auth.Provider = AuthProviderHMAC
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = time.Hour
	}

	if c.Email.BatchSize < 1 {
		c.Email.BatchSize = 1
	}
	if c.Email.BatchSize > 1000 {
		c.Email.BatchSize = 1000
	}
	if c.Email.BatchDelay < 0 {
		c.Email.BatchDelay = 0
	}

	if c.LLM.MaxRetries < 1 {
		c.LLM.MaxRetries = 1
	}
	if c.LLM.MaxRetries > 6 {
		c.LLM.MaxRetries = 6
	}
	if c.LLM.MaxPromptTokens <= 0 {
		c.LLM.MaxPromptTokens = 12000
	}

	if c.Redis.TTL <= 0 {
		c.Redis.TTL = 10 * time.Minute
	}
	if c.Vendors.HTTPTimeout <= 0 {
		c.Vendors.HTTPTimeout = 30 * time.Second
	}

	origins := c.CORS.AllowOrigins[:0]
	for _, o := range c.CORS.AllowOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.CORS.AllowOrigins = origins
}

func (c Config) missing() []string {
	var missing []string
	switch c.Auth.Provider {
	case AuthProviderHMAC:
		if strings.TrimSpace(c.Auth.HMACSecret) == "" {
			missing = append(missing, "AUTH_HMAC_SECRET")
		}
	case AuthProviderOIDC:
		if strings.TrimSpace(c.Auth.Issuer) == "" {
			missing = append(missing, "AUTH_ISSUER")
		}
		if strings.TrimSpace(c.Auth.Audience) == "" {
			missing = append(missing, "AUTH_AUDIENCE")
		}
	default:
		missing = append(missing, "AUTH_PROVIDER (oidc|hmac)")
	}
	if strings.TrimSpace(c.App.HTTPPort) == "" {
		missing = append(missing, "HTTP_PORT")
	}
	return missing
}
